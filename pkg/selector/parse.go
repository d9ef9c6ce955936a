package selector

import (
	"strconv"
	"strings"

	"github.com/chazu/litekube/pkg/kubeerr"
)

// Operator compares a resolved value with a clause literal
type Operator string

const (
	// NotEquals matches when the value differs from the literal
	NotEquals Operator = "!="

	// Equals matches when the value equals the literal. Written "==" or "=".
	Equals Operator = "=="
)

// operatorTokens are checked in priority order
var operatorTokens = []struct {
	token string
	op    Operator
}{
	{"!=", NotEquals},
	{"==", Equals},
	{"=", Equals},
}

// Segment is one step of an attribute path
type Segment struct {
	Name string

	// Index selects a sequence element when non-nil
	Index *int
}

func (s Segment) String() string {
	if s.Index == nil {
		return s.Name
	}
	return s.Name + "[" + strconv.Itoa(*s.Index) + "]"
}

// Clause is a single path/operator/literal predicate
type Clause struct {
	Path    []Segment
	Op      Operator
	Literal string
}

func (c Clause) String() string {
	parts := make([]string, len(c.Path))
	for i, seg := range c.Path {
		parts[i] = seg.String()
	}
	return strings.Join(parts, ".") + string(c.Op) + c.Literal
}

// Expression is a compiled selector. Its clauses are ANDed; an expression
// without clauses matches everything.
type Expression struct {
	Clauses []Clause
}

func (e Expression) String() string {
	parts := make([]string, len(e.Clauses))
	for i, c := range e.Clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Empty reports whether the expression matches everything
func (e Expression) Empty() bool {
	return len(e.Clauses) == 0
}

// Parse compiles a selector string
func Parse(selector string) (Expression, error) {
	if strings.TrimSpace(selector) == "" {
		return Expression{}, nil
	}

	raw := strings.Split(selector, ",")
	clauses := make([]Clause, 0, len(raw))
	for _, part := range raw {
		clause, err := parseClause(strings.TrimSpace(part))
		if err != nil {
			return Expression{}, err
		}
		clauses = append(clauses, clause)
	}
	return Expression{Clauses: clauses}, nil
}

// MustParse is like Parse but panics on error. Intended for selectors built
// from constants.
func MustParse(selector string) Expression {
	expr, err := Parse(selector)
	if err != nil {
		panic(err)
	}
	return expr
}

func parseClause(clause string) (Clause, error) {
	for _, candidate := range operatorTokens {
		path, literal, found := strings.Cut(clause, candidate.token)
		if !found {
			continue
		}
		segments, err := parsePath(strings.TrimSpace(path))
		if err != nil {
			return Clause{}, err
		}
		return Clause{
			Path:    segments,
			Op:      candidate.op,
			Literal: strings.TrimSpace(literal),
		}, nil
	}
	return Clause{}, kubeerr.Newf(kubeerr.InvalidSelector, "invalid field selector %q: no operator", clause)
}

func parsePath(path string) ([]Segment, error) {
	if path == "" {
		return nil, kubeerr.New(kubeerr.InvalidSelector, "invalid field selector: empty path")
	}

	names := strings.Split(path, ".")
	segments := make([]Segment, 0, len(names))
	for _, name := range names {
		seg, err := parseSegment(name)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func parseSegment(raw string) (Segment, error) {
	open := strings.IndexByte(raw, '[')
	if open < 0 {
		if raw == "" || strings.ContainsRune(raw, ']') {
			return Segment{}, kubeerr.Newf(kubeerr.InvalidSelector, "invalid field selector segment %q", raw)
		}
		return Segment{Name: raw}, nil
	}

	name := raw[:open]
	if name == "" || !strings.HasSuffix(raw, "]") {
		return Segment{}, kubeerr.Newf(kubeerr.InvalidSelector, "invalid field selector segment %q", raw)
	}
	idx, err := strconv.Atoi(raw[open+1 : len(raw)-1])
	if err != nil || idx < 0 {
		return Segment{}, kubeerr.Newf(kubeerr.InvalidSelector, "invalid index in field selector segment %q", raw)
	}
	return Segment{Name: name, Index: &idx}, nil
}
