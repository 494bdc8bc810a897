package rule

import (
	"github.com/google/cel-go/cel"

	"examscore/internal/score"
)

// Variables available to rule expressions.
const (
	VarCommonTestValue    = "commonTestValue"
	VarSecondaryTestValue = "secondaryTestValue"
	VarTotal              = "total"
)

// NewScoreEnv creates the CEL environment rule expressions are checked against.
// Numbers of different types compare by value, so "total <= 150" is accepted.
// Arithmetic does not mix types: "total + 1" fails to check, "total + 1.0" does not.
func NewScoreEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.CrossTypeNumericComparisons(true),
		cel.Variable(VarCommonTestValue, cel.DoubleType),
		cel.Variable(VarSecondaryTestValue, cel.DoubleType),
		cel.Variable(VarTotal, cel.DoubleType),
	)
}

// Activation exposes a raw score to a rule expression.
func Activation(s score.RawScore) map[string]any {
	return map[string]any{
		VarCommonTestValue:    s.CommonTestValue,
		VarSecondaryTestValue: s.SecondaryTestValue,
		VarTotal:              score.CalculateTotal(s),
	}
}
