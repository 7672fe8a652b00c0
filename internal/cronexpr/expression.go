package cronexpr

import (
	"errors"
	"fmt"
	"strings"
)

// Field positions, 1-based to match the order they appear in a crontab line.
const (
	Minute     = 1
	Hour       = 2
	DayOfMonth = 3
	Month      = 4
	DayOfWeek  = 5
)

// DefaultExpression fires every minute.
const DefaultExpression = "* * * * *"

var ErrInvalid = errors.New("cronexpr: invalid expression")

// FieldKind classifies the syntax used by one field.
type FieldKind int

const (
	KindLiteral FieldKind = iota
	KindWildcard
	KindList
	KindRange
	KindStep
)

func (k FieldKind) String() string {
	switch k {
	case KindWildcard:
		return "wildcard"
	case KindList:
		return "list"
	case KindRange:
		return "range"
	case KindStep:
		return "step"
	default:
		return "literal"
	}
}

// Expression is an immutable five-field cron expression.
// The zero value behaves like DefaultExpression.
type Expression struct {
	fields [5]string
}

// Default returns the every-minute expression.
func Default() Expression {
	return Expression{fields: [5]string{"*", "*", "*", "*", "*"}}
}

// Parse splits raw on whitespace and validates the result.
// Descriptors such as "@daily" are not accepted; exactly five fields are required.
func Parse(raw string) (Expression, error) {
	parts := strings.Fields(raw)
	if len(parts) != 5 {
		return Expression{}, fmt.Errorf("%w: %q has %d fields, want 5", ErrInvalid, raw, len(parts))
	}
	var e Expression
	copy(e.fields[:], parts)
	if err := e.validate(); err != nil {
		return Expression{}, err
	}
	return e, nil
}

// MustParse is Parse for package-level literals.
func MustParse(raw string) Expression {
	e, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Expression) normalized() Expression {
	if e.fields[0] == "" {
		return Default()
	}
	return e
}

func (e Expression) String() string {
	n := e.normalized()
	return strings.Join(n.fields[:], " ")
}

// Field returns the value at pos (1..5). Out of range positions return "".
func (e Expression) Field(pos int) string {
	if pos < Minute || pos > DayOfWeek {
		return ""
	}
	return e.normalized().fields[pos-1]
}

// Kind classifies the field at pos.
func (e Expression) Kind(pos int) FieldKind {
	return Classify(e.Field(pos))
}

// Splice returns a copy with exactly one field replaced. The receiver is never modified,
// and an invalid result leaves the caller holding the old expression.
func (e Expression) Splice(pos int, value string) (Expression, error) {
	if pos < Minute || pos > DayOfWeek {
		return e, fmt.Errorf("%w: position %d out of range 1..5", ErrInvalid, pos)
	}
	value = strings.TrimSpace(value)
	if value == "" || strings.ContainsAny(value, " \t\n") {
		return e, fmt.Errorf("%w: field value %q", ErrInvalid, value)
	}
	out := e.normalized()
	out.fields[pos-1] = value
	if err := out.validate(); err != nil {
		return e, err
	}
	return out, nil
}

// Equal compares the textual form. Expressions that fire at the same instants
// but are written differently are not equal.
func (e Expression) Equal(o Expression) bool {
	return e.String() == o.String()
}

func (e Expression) validate() error {
	if _, err := parser.Parse(e.String()); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalid, e.String(), err)
	}
	return nil
}

// Classify reports the syntax of a single field value.
func Classify(field string) FieldKind {
	switch {
	case field == "*" || field == "?":
		return KindWildcard
	case strings.Contains(field, "/"):
		return KindStep
	case strings.Contains(field, ","):
		return KindList
	case strings.Contains(field, "-"):
		return KindRange
	default:
		return KindLiteral
	}
}
