package rule

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	platformerrors "github.com/jmgilman/go/errors"

	"examscore/internal/score"
	"examscore/internal/validation"
)

// Rule is a declarative validation rule read from YAML.
// The When field holds a CEL expression that must evaluate to true for a valid score.
// The CEL program is compiled by Init and used by Eval.
type Rule struct {
	// Code: taxonomy code reported on violation, e.g. INVALID_NUMBER.
	Code string `yaml:"code"`
	// Field: inspected field name.
	Field string `yaml:"field"`
	// When: CEL expression over commonTestValue, secondaryTestValue and total.
	// Must return a boolean value.
	When string `yaml:"when"`
	// Message: text reported on violation.
	Message string `yaml:"message"`
	// Severity: error, warning or info. Defaults to error.
	Severity string `yaml:"severity"`
	// program: compiled CEL program.
	program cel.Program
}

// Init compiles the When expression using env.
// Syntax errors, type errors and non-boolean expressions are returned as errors.
func (r *Rule) Init(env *cel.Env) error {
	if r.Code == "" {
		return errors.New("rule code must be specified")
	}
	if r.Severity != "" && !validation.Severity(r.Severity).Valid() {
		return fmt.Errorf("rule %s: unsupported severity '%s'", r.Code, r.Severity)
	}

	ast, iss := env.Parse(r.When)
	if iss.Err() != nil {
		return iss.Err()
	}

	checked, iss := env.Check(ast)
	if iss.Err() != nil {
		return iss.Err()
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("rule %s: expression must return bool, got %s", r.Code, checked.OutputType())
	}

	var err error
	r.program, err = env.Program(checked)
	if err != nil {
		return err
	}

	return nil
}

// Eval runs the compiled expression against s.
// Unlike a failed condition, an evaluation failure is returned as an error so
// the engine can report it as TRANSFORM_ERROR.
func (r *Rule) Eval(s score.RawScore) (bool, error) {
	if r.program == nil {
		return false, fmt.Errorf("rule %s is not initialized", r.Code)
	}

	result, _, err := r.program.Eval(Activation(s))
	if err != nil {
		return false, err
	}

	passed, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %s returned %T instead of bool", r.Code, result.Value())
	}
	return passed, nil
}

// Validation converts the rule into an engine rule.
func (r *Rule) Validation() validation.Rule[score.RawScore] {
	message := r.Message
	if message == "" {
		message = "rule violated: " + r.When
	}
	return validation.Rule[score.RawScore]{
		Code:      platformerrors.ErrorCode(r.Code),
		Field:     r.Field,
		Message:   message,
		Severity:  validation.Severity(r.Severity),
		Condition: r.Eval,
		Identity:  r.When,
	}
}
