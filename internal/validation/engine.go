package validation

import (
	"fmt"
	"log/slog"
	"time"

	"examscore/internal/score"
)

// StructureCheck inspects the shape of a subject before any rule runs.
// It returns nil when the subject is well-formed.
type StructureCheck[T any] func(T) *Error

// Engine evaluates an ordered list of rules against a subject.
//
// Every rule runs, even after a violation, so the caller sees all problems
// at once. A rule that fails to evaluate (returns an error or panics) is
// reported as TRANSFORM_ERROR and does not stop the remaining rules.
type Engine[T any] struct {
	rules     []Rule[T]
	structure StructureCheck[T]
	clock     func() time.Time
	logger    *slog.Logger
}

// NewEngine creates an engine. A nil structure check accepts every subject;
// a nil clock uses time.Now.
func NewEngine[T any](rules []Rule[T], structure StructureCheck[T], clock func() time.Time) *Engine[T] {
	if clock == nil {
		clock = time.Now
	}
	return &Engine[T]{
		rules:     append([]Rule[T](nil), rules...),
		structure: structure,
		clock:     clock,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger used to report failing rules.
func (e *Engine[T]) WithLogger(logger *slog.Logger) *Engine[T] {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// Rules returns a copy of the configured rules.
func (e *Engine[T]) Rules() []Rule[T] {
	return append([]Rule[T](nil), e.rules...)
}

// Codes returns the rule codes in declaration order.
func (e *Engine[T]) Codes() []string {
	codes := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		codes = append(codes, string(r.Code))
	}
	return codes
}

// Validate runs the structure check and then every rule.
// A structurally broken subject is reported as the first error and the
// rules are skipped.
func (e *Engine[T]) Validate(subject T) Result[T] {
	result := Result[T]{
		Errors: make([]Error, 0),
		Metadata: Metadata{
			ValidatedAt: e.clock(),
			Rules:       e.Codes(),
		},
	}

	if e.structure != nil {
		if violation := e.structure(subject); violation != nil {
			v := *violation
			if v.Severity == "" {
				v.Severity = SeverityError
			}
			result.Errors = append(result.Errors, v)
			result.IsValid = v.Severity != SeverityError
			if result.IsValid {
				result.Data = &subject
			}
			return result
		}
	}

	for _, rule := range e.rules {
		ok, err := e.evaluate(rule, subject)
		switch {
		case err != nil:
			e.logger.Warn("rule evaluation failed", "rule", rule.Code, "field", rule.Field, "error", err)
			result.Errors = append(result.Errors, Error{
				Code:     score.CodeTransformError,
				Field:    rule.Field,
				Message:  err.Error(),
				Severity: SeverityError,
			})
		case !ok:
			result.Errors = append(result.Errors, Error{
				Code:     rule.Code,
				Field:    rule.Field,
				Message:  rule.Message,
				Severity: rule.severity(),
			})
		}
	}

	result.IsValid = !hasErrorSeverity(result.Errors)
	result.Data = &subject
	return result
}

func (e *Engine[T]) evaluate(rule Rule[T], subject T) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("rule %s panicked: %v", rule.Code, r)
		}
	}()

	if rule.Condition == nil {
		return false, fmt.Errorf("rule %s has no condition", rule.Code)
	}
	return rule.Condition(subject)
}

func hasErrorSeverity(errs []Error) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}
