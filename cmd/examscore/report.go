package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"examscore/internal/score"
)

var errInvalidScores = errors.New("some subjects failed validation")

type reportOptions struct {
	input  string
	format string
	strict bool
}

func newReportCmd(root *rootOptions) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Validate score files and print the score distribution",
		Long: `The report command reads every score file matching --input, validates
each subject and prints each subject's share of the total score.

Score files are YAML (or JSON) maps of subject name to scores:

  Math:
    commonTest: 80
    secondTest: 10
  English:
    commonTest: 70

Patterns support ** (e.g. "scores/**/*.yaml"). A subject found in several
files takes the scores of the last file in path order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "glob pattern of score files")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "console", "output format (console|json)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with an error when a subject fails validation")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runReport(ctx context.Context, out io.Writer, root *rootOptions, opts *reportOptions) error {
	if opts.format != "console" && opts.format != "json" {
		return fmt.Errorf("invalid format: %s. Must be 'console' or 'json'", opts.format)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	subjects, err := loadSubjects(opts.input, root.logger)
	if err != nil {
		return err
	}

	a, err := newApp(root.config, root.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.pipeline.Run(ctx, subjects)
	if err != nil {
		return err
	}

	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	default:
		newConsoleRenderer(out).Render(report)
	}

	if opts.strict && !report.Valid() {
		return errInvalidScores
	}
	return nil
}

// loadSubjects reads every file matching pattern in path order and merges
// their subjects.
func loadSubjects(pattern string, logger *slog.Logger) (score.Subjects, error) {
	files, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("error evaluating pattern %s: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no score files match %s", pattern)
	}
	sort.Strings(files)

	subjects := make(score.Subjects)
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		var fileSubjects score.Subjects
		if err := yaml.Unmarshal(content, &fileSubjects); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		for name, raw := range fileSubjects {
			if _, ok := subjects[name]; ok && logger != nil {
				logger.Warn("subject redefined", "subject", name, "file", file)
			}
			subjects[name] = raw
		}
	}
	return subjects, nil
}
