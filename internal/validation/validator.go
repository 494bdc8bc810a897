package validation

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"examscore/internal/cache"
	"examscore/internal/score"
)

// Limits bound the accepted score values.
type Limits struct {
	// MaxComponent: upper bound of each exam component.
	MaxComponent float64
	// MaxAggregate: upper bound of the sum of components.
	MaxAggregate float64
}

// DefaultLimits returns 100 per component and 1000 in aggregate.
func DefaultLimits() Limits {
	return Limits{MaxComponent: 100, MaxAggregate: 1000}
}

// DefaultScoreRules returns the built-in rules for a subject score.
func DefaultScoreRules(l Limits) []Rule[score.RawScore] {
	return []Rule[score.RawScore]{
		{
			Code:    score.CodeInvalidNumber,
			Field:   "commonTestValue",
			Message: fmt.Sprintf("common test score must be between 0 and %g", l.MaxComponent),
			Condition: Check(func(s score.RawScore) bool {
				return inRange(s.CommonTestValue, 0, l.MaxComponent)
			}),
		},
		{
			Code:    score.CodeInvalidNumber,
			Field:   "secondaryTestValue",
			Message: fmt.Sprintf("secondary test score must be between 0 and %g", l.MaxComponent),
			Condition: Check(func(s score.RawScore) bool {
				return inRange(s.SecondaryTestValue, 0, l.MaxComponent)
			}),
		},
		{
			Code:    score.CodeTotalExceeded,
			Field:   "total",
			Message: fmt.Sprintf("total score must not exceed %g", l.MaxAggregate),
			Condition: Check(func(s score.RawScore) bool {
				return score.CalculateTotal(s) <= l.MaxAggregate
			}),
		},
	}
}

// TotalRules returns the rules applied to an aggregated subject total.
func TotalRules(l Limits) []Rule[float64] {
	return []Rule[float64]{
		{
			Code:      score.CodeInvalidNumber,
			Field:     "total",
			Message:   "total score must not be negative",
			Condition: Check(func(v float64) bool { return v >= 0 }),
		},
		{
			Code:      score.CodeTotalExceeded,
			Field:     "total",
			Message:   fmt.Sprintf("total score must not exceed %g", l.MaxAggregate),
			Condition: Check(func(v float64) bool { return v <= l.MaxAggregate }),
		},
	}
}

// ScoreStructure rejects scores carrying NaN or infinite components.
func ScoreStructure(s score.RawScore) *Error {
	if !s.Finite() {
		return &Error{
			Code:     score.CodeInvalidNumber,
			Field:    "score",
			Message:  "score components must be finite numbers",
			Severity: SeverityError,
		}
	}
	return nil
}

// NumberStructure rejects NaN and infinite values.
func NumberStructure(v float64) *Error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &Error{
			Code:     score.CodeInvalidNumber,
			Field:    "value",
			Message:  "value must be a finite number",
			Severity: SeverityError,
		}
	}
	return nil
}

// CheckPercentage returns p when it lies in [0, 100]. Otherwise it returns 0
// together with an INVALID_PERCENTAGE error: an out-of-range percentage is
// never silently clamped to a plausible value.
func CheckPercentage(p float64, field string) (float64, *Error) {
	if inRange(p, 0, 100) {
		return p, nil
	}
	return 0, &Error{
		Code:     score.CodeInvalidPercentage,
		Field:    field,
		Message:  fmt.Sprintf("percentage %g is outside [0, 100]", p),
		Severity: SeverityError,
	}
}

// Validator validates subject scores and memoises the results.
type Validator struct {
	engine  *Engine[score.RawScore]
	rules   []Rule[score.RawScore]
	results *cache.Store[Result[score.RawScore]]
	clock   func() time.Time
	logger  *slog.Logger
}

// NewValidator creates a validator over rules. Results are memoised in
// results when it is not nil; the store is owned by the caller.
func NewValidator(rules []Rule[score.RawScore], results *cache.Store[Result[score.RawScore]], clock func() time.Time) *Validator {
	if clock == nil {
		clock = time.Now
	}
	return &Validator{
		engine:  NewEngine(rules, ScoreStructure, clock),
		rules:   append([]Rule[score.RawScore](nil), rules...),
		results: results,
		clock:   clock,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger of the validator and its engine.
func (v *Validator) WithLogger(logger *slog.Logger) *Validator {
	if logger != nil {
		v.logger = logger
		v.engine.WithLogger(logger)
	}
	return v
}

// Rules returns a copy of the validator's rules.
func (v *Validator) Rules() []Rule[score.RawScore] {
	return v.engine.Rules()
}

// Validate checks s against every rule. A nil score is reported as
// INVALID_DATA_FORMAT rather than causing a panic.
func (v *Validator) Validate(s *score.RawScore) Result[score.RawScore] {
	if s == nil {
		return Result[score.RawScore]{
			IsValid: false,
			Errors: []Error{{
				Code:     score.CodeInvalidDataFormat,
				Field:    "score",
				Message:  "score must contain commonTest and secondTest values",
				Severity: SeverityError,
			}},
			Metadata: Metadata{ValidatedAt: v.clock(), Rules: v.engine.Codes()},
		}
	}

	key, keyErr := v.key(s)
	if keyErr == nil && v.results != nil {
		if entry, ok := v.results.Get(key); ok {
			return entry.Value.Clone()
		}
	}

	result := v.engine.Validate(*s)

	if keyErr == nil && v.results != nil {
		if err := v.results.Set(key, result.Clone()); err != nil {
			v.logger.Warn("unable to memoise validation result", "error", err)
		}
	}
	return result
}

// IsValidScore reports whether s passes validation.
func (v *Validator) IsValidScore(s *score.RawScore) bool {
	return v.Validate(s).IsValid
}

// CalculateTotal returns the sum of the components of s, or 0 for nil.
func (v *Validator) CalculateTotal(s *score.RawScore) float64 {
	if s == nil {
		return 0
	}
	return score.CalculateTotal(*s)
}

// ClearCache forgets the memoised result for s, or every result when s is nil.
func (v *Validator) ClearCache(s *score.RawScore) {
	if v.results == nil {
		return
	}
	if s == nil {
		v.results.Flush()
		return
	}
	if key, err := v.key(s); err == nil {
		v.results.Delete(key)
	}
}

func (v *Validator) key(s *score.RawScore) (string, error) {
	if !s.Finite() {
		return "", score.InvalidParams("score is not finite")
	}
	return cache.CreateKey(*s, v.rules)
}

func inRange(v, min, max float64) bool {
	return v >= min && v <= max
}
