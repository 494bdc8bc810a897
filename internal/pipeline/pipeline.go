// Package pipeline validates a set of subject scores, checks their totals
// through the validation cache and builds chart data from the valid ones.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"examscore/internal/aggregate"
	"examscore/internal/journal"
	"examscore/internal/score"
	"examscore/internal/validation"
	"examscore/internal/validationcache"
)

// SubjectReport is the validation outcome of one subject.
type SubjectReport struct {
	Subject    string                            `json:"subject"`
	Score      *score.RawScore                   `json:"score,omitempty"`
	Total      float64                           `json:"total"`
	Valid      bool                              `json:"valid"`
	Validation validation.Result[score.RawScore] `json:"validation"`
	TotalCheck validationcache.Result            `json:"totalCheck"`
	// Cached is true when TotalCheck was served by the validation cache.
	Cached bool `json:"cached"`
}

// Errors returns the violations of both the score and its total.
func (r SubjectReport) Errors() []validation.Error {
	out := make([]validation.Error, 0, len(r.Validation.Errors)+len(r.TotalCheck.Errors))
	out = append(out, r.Validation.Errors...)
	return append(out, r.TotalCheck.Errors...)
}

// Report is the result of one pipeline run.
type Report struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Subjects    []SubjectReport   `json:"subjects"`
	Detailed    aggregate.PieData `json:"detailed"`
	Outer       aggregate.PieData `json:"outer"`
}

// Valid reports whether every subject passed validation.
func (r *Report) Valid() bool {
	for _, s := range r.Subjects {
		if !s.Valid {
			return false
		}
	}
	return true
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the time source.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithJournal records every validated subject in j.
func WithJournal(j journal.Journal) Option {
	return func(p *Pipeline) {
		if j != nil {
			p.journal = j
		}
	}
}

// Pipeline combines the score validator, the validation cache and the
// aggregator. It is safe for concurrent use when its components are.
type Pipeline struct {
	validator  *validation.Validator
	totals     *validation.Engine[float64]
	totalRules []validation.Rule[float64]
	results    *validationcache.ValidationCache
	aggregator *aggregate.Aggregator
	journal    journal.Journal
	clock      func() time.Time
	logger     *slog.Logger
}

// New creates a pipeline. Totals are checked against limits.
func New(
	validator *validation.Validator,
	results *validationcache.ValidationCache,
	aggregator *aggregate.Aggregator,
	limits validation.Limits,
	opts ...Option,
) (*Pipeline, error) {
	if validator == nil || results == nil || aggregator == nil {
		return nil, score.InvalidParams("pipeline: validator, validation cache and aggregator are required")
	}

	p := &Pipeline{
		validator:  validator,
		totalRules: validation.TotalRules(limits),
		results:    results,
		aggregator: aggregator,
		journal:    journal.Nop{},
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.totals = validation.NewEngine(p.totalRules, validation.NumberStructure, p.clock).WithLogger(p.logger)
	return p, nil
}

// Run validates every subject and aggregates the valid ones. Subjects are
// processed in name order. Cache failures are logged and the totals are
// checked directly; only a cancelled context stops the run.
func (p *Pipeline) Run(ctx context.Context, subjects score.Subjects) (*Report, error) {
	if len(subjects) == 0 {
		return nil, score.InvalidParams("pipeline: no subjects to process")
	}

	names := make([]string, 0, len(subjects))
	for name := range subjects {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &Report{
		GeneratedAt: p.clock(),
		Subjects:    make([]SubjectReport, 0, len(names)),
	}
	valid := make(score.Subjects, len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sr := p.subject(ctx, name, subjects[name])
		report.Subjects = append(report.Subjects, sr)
		if sr.Valid {
			valid[name] = subjects[name]
		}

		p.journal.Append(journal.Entry{
			Subject: sr.Subject,
			Total:   sr.Total,
			Valid:   sr.Valid,
			Cached:  sr.Cached,
			Errors:  sr.Errors(),
		})
	}

	report.Detailed = p.aggregator.CreateDetailedPieData(valid)
	report.Outer = p.aggregator.CreateOuterPieData(valid)

	p.logger.Info("scores processed",
		"subjects", len(report.Subjects),
		"valid", len(valid),
		"aggregationErrors", len(report.Outer.Errors),
	)
	return report, nil
}

func (p *Pipeline) subject(ctx context.Context, name string, raw *score.RawScore) SubjectReport {
	sr := SubjectReport{
		Subject:    name,
		Score:      raw,
		Validation: p.validator.Validate(raw),
		Total:      p.validator.CalculateTotal(raw),
	}
	if raw == nil || !raw.Finite() {
		sr.TotalCheck = p.totals.Validate(sr.Total)
		sr.Valid = false
		return sr
	}

	sr.TotalCheck, sr.Cached = p.checkTotal(ctx, sr.Total)
	sr.Valid = sr.Validation.IsValid && sr.TotalCheck.IsValid
	if !sr.Valid {
		p.logger.Debug("subject rejected", "subject", name, "errors", sr.Errors())
	}
	return sr
}

func (p *Pipeline) checkTotal(ctx context.Context, total float64) (validationcache.Result, bool) {
	cached, err := p.results.Get(ctx, total, p.totalRules)
	if err != nil {
		p.logger.Warn("validation cache read failed", "total", total, "error", err)
	}
	if cached != nil {
		return *cached, true
	}

	result := p.totals.Validate(total)
	if err := p.results.Set(ctx, total, p.totalRules, result); err != nil {
		p.logger.Warn("validation cache write failed", "total", total, "error", err)
	}
	return result, false
}
