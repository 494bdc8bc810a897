package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"examscore/internal/aggregate"
	"examscore/internal/cache"
	"examscore/internal/configuration"
	"examscore/internal/journal"
	"examscore/internal/pipeline"
	"examscore/internal/score"
	"examscore/internal/score/rule"
	"examscore/internal/storage"
	"examscore/internal/validation"
	"examscore/internal/validationcache"
)

type rootOptions struct {
	configPath string
	config     *configuration.AppConfig
	logger     *slog.Logger
	logCloser  io.Closer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "examscore",
		Short: "Validate exam scores and build score distributions",
		Long: `examscore validates per-subject exam scores against built-in and
CEL rules, caches validation results and reports each subject's share of
the total score.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := configuration.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.config = config
			opts.logger, opts.logCloser = prepareLogger(config.Logger.Level, config.Logger.File)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logCloser != nil {
				opts.logCloser.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (YAML)")

	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newRulesCmd(opts))
	return cmd
}

// loadRules returns the built-in score rules followed by the rules of the
// configured rule file, if any.
func loadRules(config *configuration.AppConfig) ([]validation.Rule[score.RawScore], error) {
	rules := validation.DefaultScoreRules(limits(config))
	if config.Validation.Rules == "" {
		return rules, nil
	}

	custom, err := rule.LoadFromFile(config.Validation.Rules, rule.NewScoreEnv)
	if err != nil {
		return nil, fmt.Errorf("unable to load rules: %w", err)
	}
	return append(rules, custom...), nil
}

func limits(config *configuration.AppConfig) validation.Limits {
	return validation.Limits{
		MaxComponent: config.Validation.MaxComponent,
		MaxAggregate: config.Validation.MaxAggregate,
	}
}

// app owns every long-lived component of a run.
type app struct {
	memo     *cache.Store[validation.Result[score.RawScore]]
	results  *validationcache.ValidationCache
	journal  journal.Journal
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

func newApp(config *configuration.AppConfig, logger *slog.Logger) (*app, error) {
	rules, err := loadRules(config)
	if err != nil {
		return nil, err
	}

	a := &app{logger: logger, journal: journal.Nop{}}
	a.memo = cache.New[validation.Result[score.RawScore]](
		cache.WithTTL(config.Cache.TTL),
		cache.WithMaxEntries(config.Cache.MaxSize),
		cache.WithCleanupInterval(config.Cache.CleanupInterval),
		cache.WithLogger(logger),
	)

	a.results, err = validationcache.New(
		storage.NewMemoryProvider(time.Now),
		validationcache.Config{TTL: config.Cache.TTL, MaxCacheSize: config.Cache.MaxSize},
		validationcache.WithCleanupInterval(config.Cache.CleanupInterval),
		validationcache.WithLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	if config.Journal.File != "" {
		a.journal = journal.NewJSONJournal(config.Journal.File, config.Journal.Size, config.Journal.Amount)
	}

	a.pipeline, err = pipeline.New(
		validation.NewValidator(rules, a.memo, time.Now).WithLogger(logger),
		a.results,
		aggregate.NewAggregator(
			score.NewCalculator(config.Validation.Decimals),
			aggregate.CategoryMap(config.Aggregation.Subjects()),
			config.Validation.MaxAggregate,
		).WithLogger(logger),
		limits(config),
		pipeline.WithLogger(logger),
		pipeline.WithJournal(a.journal),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the caches and the journal.
func (a *app) Close() {
	if a.results != nil {
		a.results.Dispose()
	}
	if a.memo != nil {
		a.memo.Dispose()
	}
	if err := a.journal.Close(); err != nil {
		a.logger.Error("journal close", "error", err)
	}
}
