package validationcache

import (
	"math"

	"examscore/internal/score"
	"examscore/internal/validation"
)

// shapeRules check a result before it is trusted or persisted.
func shapeRules() []validation.Rule[Result] {
	return []validation.Rule[Result]{
		{
			Code:    score.CodeInvalidDataFormat,
			Field:   "metadata.validatedAt",
			Message: "result has no validation timestamp",
			Condition: validation.Check(func(r Result) bool {
				return !r.Metadata.ValidatedAt.IsZero()
			}),
		},
		{
			Code:    score.CodeInvalidDataFormat,
			Field:   "errors",
			Message: "result errors need a code and a known severity",
			Condition: validation.Check(func(r Result) bool {
				for _, e := range r.Errors {
					if e.Code == "" || !e.Severity.Valid() {
						return false
					}
				}
				return true
			}),
		},
		{
			Code:    score.CodeInvalidDataFormat,
			Field:   "isValid",
			Message: "result validity contradicts its errors",
			Condition: validation.Check(func(r Result) bool {
				return r.IsValid == (len(r.ErrorsWithSeverity(validation.SeverityError)) == 0)
			}),
		},
		{
			Code:    score.CodeInvalidNumber,
			Field:   "data",
			Message: "result data must be a finite number",
			Condition: validation.Check(func(r Result) bool {
				return r.Data == nil || (!math.IsNaN(*r.Data) && !math.IsInf(*r.Data, 0))
			}),
		},
	}
}
