package aggregate

import (
	"fmt"
	"log/slog"
	"sort"

	"examscore/internal/score"
	"examscore/internal/validation"
)

// Categorizer maps a subject name to its category.
type Categorizer func(subject string) string

// SubjectCategory uses the subject name as its own category.
func SubjectCategory(subject string) string {
	return subject
}

// CategoryMap looks subjects up in m and falls back to the subject name.
func CategoryMap(m map[string]string) Categorizer {
	return func(subject string) string {
		if c, ok := m[subject]; ok && c != "" {
			return c
		}
		return subject
	}
}

// ExtractScores splits a raw score into one record per test type with a
// positive value. It never returns an empty result: a missing score yields a
// MISSING_SCORE error and a score without positive components yields a
// CALCULATION_ERROR naming the subject.
func ExtractScores(raw *score.RawScore, subject string) ([]ScoreRecord, []ScoreError) {
	return extract(raw, subject, SubjectCategory(subject))
}

func extract(raw *score.RawScore, subject, category string) ([]ScoreRecord, []ScoreError) {
	if raw == nil {
		return nil, []ScoreError{{
			Code:    score.CodeMissingScore,
			Subject: subject,
			Message: score.NewScoreNotFoundError(subject).Error(),
		}}
	}

	var records []ScoreRecord
	for _, t := range score.TestTypes {
		if v := raw.Value(t); v > 0 {
			records = append(records, ScoreRecord{
				SubjectName: subject,
				TestType:    t,
				TestTypeID:  t.ID(),
				Value:       v,
				Category:    category,
			})
		}
	}

	if len(records) == 0 {
		return nil, []ScoreError{{
			Code:    score.CodeCalculationError,
			Subject: subject,
			Message: fmt.Sprintf("no valid scores for subject %s", subject),
		}}
	}
	return records, nil
}

// Aggregator turns subject scores into chart data.
//
// One bad subject never blocks the others: its problems are collected in
// PieData.Errors and the remaining subjects are processed as usual.
type Aggregator struct {
	calc         score.Calculator
	categorize   Categorizer
	maxAggregate float64
	logger       *slog.Logger
}

// NewAggregator creates an aggregator. A nil categorizer uses SubjectCategory;
// a non-positive maxAggregate disables the per-subject total check.
func NewAggregator(calc score.Calculator, categorize Categorizer, maxAggregate float64) *Aggregator {
	if categorize == nil {
		categorize = SubjectCategory
	}
	return &Aggregator{
		calc:         calc,
		categorize:   categorize,
		maxAggregate: maxAggregate,
		logger:       slog.Default(),
	}
}

// WithLogger sets the logger.
func (a *Aggregator) WithLogger(logger *slog.Logger) *Aggregator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// ExtractScores is the package-level ExtractScores with the aggregator's categories.
func (a *Aggregator) ExtractScores(raw *score.RawScore, subject string) (records []ScoreRecord, errs []ScoreError) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("score extraction failed", "subject", subject, "panic", r)
			records = nil
			errs = []ScoreError{{
				Code:    score.CodeTransformError,
				Subject: subject,
				Message: fmt.Sprintf("unable to extract scores for subject %s: %v", subject, r),
			}}
		}
	}()
	return extract(raw, subject, a.categorize(subject))
}

// CreateDetailedPieData returns one entry per subject and test type, each
// carrying its share of the grand total.
func (a *Aggregator) CreateDetailedPieData(subjects score.Subjects) PieData {
	records, _, errs := a.collect(subjects)

	data := PieData{Entries: make([]AggregatedScore, 0, len(records)), Errors: errs}
	for _, r := range records {
		data.Total += r.Value
	}

	for _, r := range records {
		entry := AggregatedScore{
			SubjectName: r.SubjectName,
			TestType:    r.TestType,
			TestTypeID:  r.TestTypeID,
			Value:       r.Value,
			Category:    r.Category,
		}
		entry.Percentage, data.Errors = a.percentage(r.Value, data.Total, r.SubjectName, r.TestType, data.Errors)
		data.Entries = append(data.Entries, entry)
	}
	return data
}

// CreateOuterPieData returns one entry per category with the category's
// share of the grand total. Categories appear in the order of their first
// subject by name.
func (a *Aggregator) CreateOuterPieData(subjects score.Subjects) PieData {
	records, included, errs := a.collect(subjects)

	var order []string
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.Category] {
			seen[r.Category] = true
			order = append(order, r.Category)
		}
	}

	totals := make(map[string]float64, len(order))
	data := PieData{Entries: make([]AggregatedScore, 0, len(order)), Errors: errs}
	for _, c := range order {
		category := c
		totals[c] = score.CalculateCategoryTotal(included, func(subject string) bool {
			return a.categorize(subject) == category
		})
		data.Total += totals[c]
	}

	for _, c := range order {
		entry := AggregatedScore{
			SubjectName: c,
			Value:       totals[c],
			Category:    c,
		}
		entry.Percentage, data.Errors = a.percentage(totals[c], data.Total, c, "", data.Errors)
		data.Entries = append(data.Entries, entry)
	}
	return data
}

// collect extracts the records of every subject in name order together with
// the scores of the subjects that produced them. Subjects whose total exceeds
// the aggregate maximum are reported and left out.
func (a *Aggregator) collect(subjects score.Subjects) ([]ScoreRecord, map[string]score.RawScore, []ScoreError) {
	names := make([]string, 0, len(subjects))
	for name := range subjects {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]ScoreRecord, 0, len(names)*len(score.TestTypes))
	included := make(map[string]score.RawScore, len(names))
	errs := make([]ScoreError, 0)
	for _, name := range names {
		raw := subjects[name]
		recs, extractErrs := a.ExtractScores(raw, name)
		errs = append(errs, extractErrs...)
		if len(recs) == 0 {
			continue
		}

		if total := score.CalculateTotal(*raw); a.maxAggregate > 0 && total > a.maxAggregate {
			errs = append(errs, ScoreError{
				Code:    score.CodeTotalExceeded,
				Subject: name,
				Message: fmt.Sprintf("total score %g of subject %s exceeds %g", total, name, a.maxAggregate),
			})
			continue
		}
		records = append(records, recs...)
		included[name] = *raw
	}
	return records, included, errs
}

func (a *Aggregator) percentage(value, total float64, subject string, t score.TestType, errs []ScoreError) (float64, []ScoreError) {
	if total <= 0 {
		return 0, append(errs, ScoreError{
			Code:     score.CodeInvalidPercentage,
			Subject:  subject,
			TestType: t,
			Message:  fmt.Sprintf("cannot compute percentage of subject %s: total is %g", subject, total),
		})
	}

	p, violation := validation.CheckPercentage(a.calc.Percentage(value, total), subject)
	if violation != nil {
		return p, append(errs, ScoreError{
			Code:     violation.Code,
			Subject:  subject,
			TestType: t,
			Message:  violation.Message,
		})
	}
	return p, errs
}
