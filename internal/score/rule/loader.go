package rule

import (
	"fmt"
	"os"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"examscore/internal/score"
	"examscore/internal/validation"
)

// Parse reads a YAML list of rules and compiles each one.
//
// The script is a list of rules:
//
//   - code: INVALID_NUMBER
//     field: commonTestValue
//     when: "commonTestValue <= 100.0"
//     message: "common test score is above 100"
//
// An empty script yields no rules.
func Parse(script []byte, envProvider func() (*cel.Env, error)) ([]validation.Rule[score.RawScore], error) {
	rules := []Rule{}
	if err := yaml.Unmarshal(script, &rules); err != nil {
		return nil, err
	}

	result := make([]validation.Rule[score.RawScore], 0, len(rules))
	for i := range rules {
		env, err := envProvider()
		if err != nil {
			return nil, err
		}

		if err := rules[i].Init(env); err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i+1, err)
		}
		result = append(result, rules[i].Validation())
	}
	return result, nil
}

// LoadFromFile reads and compiles the rules stored in file.
func LoadFromFile(file string, envProvider func() (*cel.Env, error)) ([]validation.Rule[score.RawScore], error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(content, envProvider)
}
