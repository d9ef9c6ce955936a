package kubeerr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Kind classifies every failure surfaced by litekube
type Kind int

const (
	Unknown Kind = iota
	NotFound
	AlreadyExists
	AuthenticationDenied
	ImagePullFailed
	RuntimeFailure
	InvalidSelector
	InvalidResourceBody
	Timeout
)

var kindNames = map[Kind]string{
	Unknown:              "Unknown",
	NotFound:             "NotFound",
	AlreadyExists:        "AlreadyExists",
	AuthenticationDenied: "AuthenticationDenied",
	ImagePullFailed:      "ImagePullFailed",
	RuntimeFailure:       "RuntimeFailure",
	InvalidSelector:      "InvalidSelector",
	InvalidResourceBody:  "InvalidResourceBody",
	Timeout:              "Timeout",
}

// defaultMessages are used when an error is raised without an explicit message
var defaultMessages = map[Kind]string{
	Unknown:              "Unknown error.",
	NotFound:             "Could not find the required resource.",
	AlreadyExists:        "Resource already exists.",
	AuthenticationDenied: "Unauthorized to perform this action.",
	ImagePullFailed:      "Could not pull the required image.",
	RuntimeFailure:       "The resource got a running error.",
	InvalidSelector:      "Invalid field selector.",
	InvalidResourceBody:  "Invalid resource's body.",
	Timeout:              "Timed out.",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrUnknown              = &Error{Kind: Unknown}
	ErrNotFound             = &Error{Kind: NotFound}
	ErrAlreadyExists        = &Error{Kind: AlreadyExists}
	ErrAuthenticationDenied = &Error{Kind: AuthenticationDenied}
	ErrImagePullFailed      = &Error{Kind: ImagePullFailed}
	ErrRuntimeFailure       = &Error{Kind: RuntimeFailure}
	ErrInvalidSelector      = &Error{Kind: InvalidSelector}
	ErrInvalidResourceBody  = &Error{Kind: InvalidResourceBody}
	ErrTimeout              = &Error{Kind: Timeout}
)

// Error is the single error type returned across the public surface
type Error struct {
	// Kind is the taxonomy bucket of the failure
	Kind Kind

	// Reason is the machine-readable reason reported by the API server, if any
	Reason string

	// Message is the human-readable description
	Message string

	// Op names the operation that failed, e.g. "get pod default/web-0"
	Op string

	// Err is an underlying litekube error, e.g. the last attempt of a retry.
	// Raw transport errors are never stored here.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	b.WriteString(msg)
	if e.Reason != "" {
		fmt.Fprintf(&b, " (reason: %s)", e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Op == "" && t.Reason == "" && t.Err == nil && t.Kind == e.Kind
}

// New creates an error of the given kind. An empty message uses the kind's default.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind that records cause as its underlying error
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Translate converts an API call failure into exactly one *Error.
// Errors that are already *Error are returned untouched.
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var domain *Error
	if errors.As(err, &domain) {
		return err
	}

	var status apierrors.APIStatus
	if errors.As(err, &status) {
		st := status.Status()
		reason := string(st.Reason)
		message := st.Message
		if message == "" {
			message = err.Error()
		}
		return &Error{
			Kind:    kindForReason(reason),
			Reason:  reason,
			Message: message,
			Op:      op,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: Timeout, Message: err.Error(), Op: op}
	}

	return &Error{Kind: Unknown, Message: err.Error(), Op: op}
}

// kindForReason maps an API status reason onto the taxonomy
func kindForReason(reason string) Kind {
	switch {
	case reason == "":
		return Unknown
	case strings.Contains(reason, "NotFound"):
		return NotFound
	case strings.Contains(reason, "AlreadyExists"):
		return AlreadyExists
	case strings.Contains(reason, "Unauthorized"), strings.Contains(reason, "Forbidden"):
		return AuthenticationDenied
	case strings.Contains(reason, "Invalid"):
		return InvalidResourceBody
	default:
		return Unknown
	}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsNotFound reports whether err is a NotFound error
func IsNotFound(err error) bool {
	return IsKind(err, NotFound)
}

// IsTimeout reports whether err is a Timeout error
func IsTimeout(err error) bool {
	return IsKind(err, Timeout)
}

// IgnoreNotFound returns nil for NotFound errors and err otherwise
func IgnoreNotFound(err error) error {
	if IsNotFound(err) {
		return nil
	}
	return err
}
