package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examscore/internal/aggregate"
	"examscore/internal/journal"
	"examscore/internal/score"
	"examscore/internal/storage"
	"examscore/internal/validation"
	"examscore/internal/validationcache"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type recordingJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *recordingJournal) Append(e journal.Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *recordingJournal) Close() error { return nil }

type brokenProvider struct{}

var errUnavailable = stderrors.New("storage unavailable")

func (brokenProvider) Get(context.Context, string) (string, bool, error) {
	return "", false, errUnavailable
}

func (brokenProvider) Set(context.Context, string, string, storage.SetOptions) error {
	return errUnavailable
}

func (brokenProvider) FlushAll(context.Context) error { return errUnavailable }

func newPipeline(t *testing.T, provider storage.Provider) (*Pipeline, *recordingJournal) {
	t.Helper()
	limits := validation.DefaultLimits()

	results, err := validationcache.New(provider, validationcache.DefaultConfig(),
		validationcache.WithClock(clock), validationcache.WithCleanupInterval(0))
	require.NoError(t, err)
	t.Cleanup(results.Dispose)

	j := &recordingJournal{}
	p, err := New(
		validation.NewValidator(validation.DefaultScoreRules(limits), nil, clock),
		results,
		aggregate.NewAggregator(score.NewCalculator(score.DefaultDecimals), nil, limits.MaxAggregate),
		limits,
		WithClock(clock),
		WithJournal(j),
	)
	require.NoError(t, err)
	return p, j
}

func TestNew_RequiresComponents(t *testing.T) {
	_, err := New(nil, nil, nil, validation.DefaultLimits())
	require.Error(t, err)
	assert.Equal(t, score.CodeInvalidParams, errors.GetCode(err))
}

func TestPipeline_Run(t *testing.T) {
	p, j := newPipeline(t, storage.NewMemoryProvider(clock))

	report, err := p.Run(context.Background(), score.Subjects{
		"Math":    {CommonTestValue: 80},
		"English": {CommonTestValue: 70},
	})
	require.NoError(t, err)

	assert.True(t, report.Valid())
	assert.Equal(t, now, report.GeneratedAt)
	require.Len(t, report.Subjects, 2)
	assert.Equal(t, "English", report.Subjects[0].Subject)
	assert.Equal(t, 70.0, report.Subjects[0].Total)
	assert.False(t, report.Subjects[0].Cached)

	require.Len(t, report.Outer.Entries, 2)
	assert.Equal(t, 46.67, report.Outer.Entries[0].Percentage)
	assert.Equal(t, 53.33, report.Outer.Entries[1].Percentage)
	assert.Len(t, report.Detailed.Entries, 2)
	assert.Empty(t, report.Outer.Errors)

	require.Len(t, j.entries, 2)
	assert.Equal(t, "English", j.entries[0].Subject)
	assert.True(t, j.entries[0].Valid)
}

func TestPipeline_TotalsAreCached(t *testing.T) {
	p, _ := newPipeline(t, storage.NewMemoryProvider(clock))
	subjects := score.Subjects{"Math": {CommonTestValue: 80, SecondaryTestValue: 20}}

	first, err := p.Run(context.Background(), subjects)
	require.NoError(t, err)
	assert.False(t, first.Subjects[0].Cached)

	second, err := p.Run(context.Background(), subjects)
	require.NoError(t, err)
	assert.True(t, second.Subjects[0].Cached)
	assert.Equal(t, first.Subjects[0].TotalCheck.IsValid, second.Subjects[0].TotalCheck.IsValid)
}

func TestPipeline_InvalidSubjectsAreNotAggregated(t *testing.T) {
	p, j := newPipeline(t, storage.NewMemoryProvider(clock))

	report, err := p.Run(context.Background(), score.Subjects{
		"Math":    {CommonTestValue: 80},
		"Physics": {CommonTestValue: 150},
		"History": nil,
	})
	require.NoError(t, err)
	assert.False(t, report.Valid())

	byName := map[string]SubjectReport{}
	for _, s := range report.Subjects {
		byName[s.Subject] = s
	}

	require.NotEmpty(t, byName["Physics"].Errors())
	assert.Equal(t, score.CodeInvalidNumber, byName["Physics"].Errors()[0].Code)
	assert.False(t, byName["Physics"].Valid)

	require.NotEmpty(t, byName["History"].Errors())
	assert.Equal(t, score.CodeInvalidDataFormat, byName["History"].Errors()[0].Code)

	require.Len(t, report.Outer.Entries, 1)
	assert.Equal(t, "Math", report.Outer.Entries[0].SubjectName)
	assert.Equal(t, 100.0, report.Outer.Entries[0].Percentage)

	require.Len(t, j.entries, 3)
	for _, e := range j.entries {
		assert.Equal(t, e.Subject == "Math", e.Valid, e.Subject)
	}
}

func TestPipeline_ZeroScoresReportCalculationError(t *testing.T) {
	p, _ := newPipeline(t, storage.NewMemoryProvider(clock))

	report, err := p.Run(context.Background(), score.Subjects{
		"Math": {},
		"Art":  {CommonTestValue: 40},
	})
	require.NoError(t, err)

	require.Len(t, report.Detailed.Errors, 1)
	assert.Equal(t, score.CodeCalculationError, report.Detailed.Errors[0].Code)
	assert.Contains(t, report.Detailed.Errors[0].Message, "Math")
	require.Len(t, report.Detailed.Entries, 1)
	assert.Equal(t, "Art", report.Detailed.Entries[0].SubjectName)
}

func TestPipeline_CacheFailuresDegradeGracefully(t *testing.T) {
	p, _ := newPipeline(t, brokenProvider{})

	report, err := p.Run(context.Background(), score.Subjects{"Math": {CommonTestValue: 80}})
	require.NoError(t, err)
	require.Len(t, report.Subjects, 1)
	assert.True(t, report.Subjects[0].Valid)
	assert.False(t, report.Subjects[0].Cached)
}

func TestPipeline_NoSubjects(t *testing.T) {
	p, _ := newPipeline(t, storage.NewMemoryProvider(clock))

	_, err := p.Run(context.Background(), nil)
	assert.Equal(t, score.CodeInvalidParams, errors.GetCode(err))
}

func TestPipeline_CancelledContext(t *testing.T) {
	p, _ := newPipeline(t, storage.NewMemoryProvider(clock))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, score.Subjects{"Math": {CommonTestValue: 80}})
	assert.ErrorIs(t, err, context.Canceled)
}
