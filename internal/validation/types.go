package validation

import (
	"fmt"
	"time"

	"github.com/jmgilman/go/errors"
)

// Severity grades a validation error. Only SeverityError invalidates a result.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// Error is one violation found during validation.
type Error struct {
	Code     errors.ErrorCode `json:"code"`
	Field    string           `json:"field"`
	Message  string           `json:"message"`
	Severity Severity         `json:"severity"`
}

// Error implements the error interface so a violation can be returned as-is.
func (e Error) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Metadata describes how a result was produced.
type Metadata struct {
	ValidatedAt time.Time `json:"validatedAt"`
	Rules       []string  `json:"rules"`
}

// Result is the outcome of validating one subject. A result is built once per
// call and not modified afterwards.
type Result[T any] struct {
	IsValid  bool     `json:"isValid"`
	Data     *T       `json:"data,omitempty"`
	Errors   []Error  `json:"errors"`
	Metadata Metadata `json:"metadata"`
}

// Clone returns a deep copy of r. Caches store and hand out clones so a
// caller never shares Errors, Rules or Data with a stored result.
func (r Result[T]) Clone() Result[T] {
	out := r
	if r.Errors != nil {
		out.Errors = append(make([]Error, 0, len(r.Errors)), r.Errors...)
	}
	if r.Metadata.Rules != nil {
		out.Metadata.Rules = append(make([]string, 0, len(r.Metadata.Rules)), r.Metadata.Rules...)
	}
	if r.Data != nil {
		data := *r.Data
		out.Data = &data
	}
	return out
}

// ErrorsWithSeverity returns the violations of the given severity.
func (r Result[T]) ErrorsWithSeverity(s Severity) []Error {
	var out []Error
	for _, e := range r.Errors {
		if e.Severity == s {
			out = append(out, e)
		}
	}
	return out
}

// Predicate is a rule condition. It returns true when the subject satisfies
// the rule; an error means the rule could not be evaluated.
type Predicate[T any] func(T) (bool, error)

// Check adapts an infallible boolean function to a Predicate.
func Check[T any](f func(T) bool) Predicate[T] {
	return func(subject T) (bool, error) {
		return f(subject), nil
	}
}

// Rule is a declarative check evaluated against a subject of type T.
type Rule[T any] struct {
	// Code is the taxonomy code reported when the rule is violated.
	Code errors.ErrorCode
	// Field is the name of the inspected field.
	Field string
	// Message is a human readable explanation of the violation.
	Message string
	// Severity grades the violation; empty means SeverityError.
	Severity Severity
	// Condition must hold for the subject to pass.
	Condition Predicate[T]
	// Identity tells apart rules whose other fields coincide, such as the
	// expression of a declarative rule. It is optional.
	Identity string
}

// Descriptor identifies the rule for cache key derivation. A Condition
// cannot be compared, so rules sharing code, field, severity and message
// must differ in Identity.
func (r Rule[T]) Descriptor() string {
	d := fmt.Sprintf("%s|%s|%s|%s", r.Code, r.Field, r.severity(), r.Message)
	if r.Identity != "" {
		d += "|" + r.Identity
	}
	return d
}

func (r Rule[T]) severity() Severity {
	if r.Severity == "" {
		return SeverityError
	}
	return r.Severity
}
