package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"examscore/internal/score"
	"examscore/internal/score/rule"
	"examscore/internal/validation"
)

func newRulesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect validation rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Compile a rule file and list its rules",
		Long: `The check command compiles every CEL expression of a rule file and
reports the first error. Without an argument the file configured as
validation.rules is checked.

A rule file is a YAML list:

  - code: TOTAL_EXCEEDED
    field: total
    when: total <= 150
    message: total must not exceed 150
    severity: warning

Scores are doubles. Comparisons accept integer literals, but arithmetic
needs double literals: write total + 1.0 > 100, not total + 1 > 100.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := root.config.Validation.Rules
			if len(args) == 1 {
				file = args[0]
			}
			return runRulesCheck(cmd.OutOrStdout(), file)
		},
	})
	return cmd
}

func runRulesCheck(out io.Writer, file string) error {
	if file == "" {
		return errors.New("no rule file given and validation.rules is not configured")
	}

	rules, err := rule.LoadFromFile(file, rule.NewScoreEnv)
	if err != nil {
		fmt.Fprintf(out, "%s %s\n", errorStyle.Render("✗"), file)
		return err
	}

	fmt.Fprintf(out, "%s %s: %d rules compiled\n", okStyle.Render("✓"), file, len(rules))
	for _, r := range rules {
		printRule(out, r)
	}
	return nil
}

func printRule(out io.Writer, r validation.Rule[score.RawScore]) {
	severity := r.Severity
	if severity == "" {
		severity = validation.SeverityError
	}
	fmt.Fprintf(out, "    %s %s [%s] %s\n", headerStyle.Render(string(r.Code)), r.Field, severity, r.Message)
}
