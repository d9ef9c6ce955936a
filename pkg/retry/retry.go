// Package retry re-runs flaky operations a bounded number of times with a
// fixed delay. Unlike package wait it models "the operation itself failed and
// should be tried again", not "external state has not changed yet".
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/metrics"
)

// Operation is one attempt. Returning false or an error of the transient kind
// requests another attempt.
type Operation func(ctx context.Context) (bool, error)

// Config contains the retry settings
type Config struct {
	// Attempts is the total number of attempts, including the first one
	// Default: 3
	Attempts int

	// Delay is the fixed pause between attempts
	// Default: 1 second
	Delay time.Duration

	// Transient is the error kind that is retried; every other kind is fatal
	// Default: NotFound
	Transient kubeerr.Kind
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		Attempts:  3,
		Delay:     1 * time.Second,
		Transient: kubeerr.NotFound,
	}
}

// Retrier runs operations under a Config
type Retrier struct {
	config Config
}

// New creates a Retrier. Attempts below one are raised to one.
func New(config Config) *Retrier {
	if config.Attempts < 1 {
		config.Attempts = 1
	}
	if config.Delay < 0 {
		config.Delay = 0
	}
	return &Retrier{config: config}
}

// errNotYet marks an attempt that completed without error but returned false
var errNotYet = errors.New("operation reported not done")

// Do runs op until it returns true, returns a non-transient error, or all
// attempts are used. The first attempt always runs. Exhaustion yields a
// Timeout error naming the operation and the number of attempts, wrapping
// the last transient error if there was one.
func (r *Retrier) Do(ctx context.Context, name string, op Operation) error {
	logger := log.FromContext(ctx).WithValues("operation", name)
	start := time.Now()
	attempts := 0

	err := retry.Do(
		func() error {
			attempts++
			done, err := op(ctx)
			if err != nil {
				return kubeerr.Translate(name, err)
			}
			if !done {
				return errNotYet
			}
			return nil
		},
		retry.Attempts(uint(r.config.Attempts)),
		retry.Delay(r.config.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(r.retryable),
		retry.OnRetry(func(n uint, err error) {
			if int(n)+1 < r.config.Attempts {
				logger.V(1).Info("Retrying operation", "attempt", n+1, "reason", err.Error())
			}
		}),
	)

	err = r.result(name, attempts, err)
	metrics.RecordRetryAttempts(metrics.ResultFor(err), attempts)
	metrics.RecordWait(metrics.OperationRetry, metrics.ResultFor(err), time.Since(start).Seconds())
	return err
}

func (r *Retrier) retryable(err error) bool {
	return errors.Is(err, errNotYet) || kubeerr.IsKind(err, r.config.Transient)
}

func (r *Retrier) result(name string, attempts int, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return kubeerr.Translate(name, err)
	case !r.retryable(err):
		return err
	}

	var cause error
	if !errors.Is(err, errNotYet) {
		cause = err
	}
	return &kubeerr.Error{
		Kind:    kubeerr.Timeout,
		Op:      name,
		Message: fmt.Sprintf("gave up after %d attempts", attempts),
		Err:     cause,
	}
}
