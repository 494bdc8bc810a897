package validationcache

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examscore/internal/cache"
	"examscore/internal/score"
	"examscore/internal/storage"
	"examscore/internal/validation"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingProvider fails every call with err.
type failingProvider struct {
	err error
}

func (p failingProvider) Get(context.Context, string) (string, bool, error) { return "", false, p.err }
func (p failingProvider) Set(context.Context, string, string, storage.SetOptions) error {
	return p.err
}
func (p failingProvider) FlushAll(context.Context) error { return p.err }

var rules = validation.TotalRules(validation.DefaultLimits())

func setup(t *testing.T, config Config) (*ValidationCache, *storage.MemoryProvider, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	// The provider never expires values, so only the cache's own TTL applies.
	provider := storage.NewMemoryProvider(clock.Now)
	c, err := New(looseProvider{provider}, config, WithClock(clock.Now), WithCleanupInterval(0))
	require.NoError(t, err)
	t.Cleanup(c.Dispose)
	return c, provider, clock
}

// looseProvider drops the TTL of every write.
type looseProvider struct {
	*storage.MemoryProvider
}

func (p looseProvider) Set(ctx context.Context, key, value string, _ storage.SetOptions) error {
	return p.MemoryProvider.Set(ctx, key, value, storage.SetOptions{})
}

func validate(value float64) Result {
	return validation.NewEngine(rules, validation.NumberStructure, nil).Validate(value)
}

func TestNew_RequiresProvider(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	require.Error(t, err)
	assert.Equal(t, score.CodeInvalidParams, errors.GetCode(err))
}

func TestValidationCache_SetThenGet(t *testing.T) {
	ctx := context.Background()
	c, provider, clock := setup(t, DefaultConfig())

	require.NoError(t, c.Set(ctx, 150, rules, validate(150)))
	assert.Equal(t, 1, provider.Len())
	assert.Equal(t, int64(1), c.Size())

	got, err := c.Get(ctx, 150, rules)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsValid)
	require.NotNil(t, got.Data)
	assert.Equal(t, 150.0, *got.Data)
	assert.True(t, got.Metadata.ValidatedAt.Equal(clock.Now()), "ValidatedAt is stamped on write")

	// The second read is served by the in-memory tier.
	_, err = c.Get(ctx, 150, rules)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Metrics().Hits)
}

func TestValidationCache_Miss(t *testing.T) {
	c, _, _ := setup(t, DefaultConfig())

	got, err := c.Get(context.Background(), 42, rules)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValidationCache_KeyIgnoresRuleOrder(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t, DefaultConfig())

	require.NoError(t, c.Set(ctx, 150, rules, validate(150)))

	reversed := []validation.Rule[float64]{rules[1], rules[0]}
	got, err := c.Get(ctx, 150, reversed)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestValidationCache_InvalidParams(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t, DefaultConfig())

	_, err := c.Get(ctx, math.NaN(), rules)
	assert.Equal(t, score.CodeInvalidParams, errors.GetCode(err))

	_, err = c.Get(ctx, 10, nil)
	assert.Equal(t, score.CodeInvalidParams, errors.GetCode(err))

	err = c.Set(ctx, math.Inf(1), rules, validate(10))
	assert.Equal(t, score.CodeInvalidParams, errors.GetCode(err))
}

func TestValidationCache_RejectsMalformedResult(t *testing.T) {
	ctx := context.Background()
	c, provider, _ := setup(t, DefaultConfig())

	bad := validate(2000) // invalid result
	bad.IsValid = true    // contradicts its errors

	err := c.Set(ctx, 2000, rules, bad)
	require.Error(t, err)
	assert.Equal(t, score.CodeInvalidParams, errors.GetCode(err))
	assert.Equal(t, 0, provider.Len())
}

func TestValidationCache_TTLDefenceInDepth(t *testing.T) {
	ctx := context.Background()
	ttl := time.Minute
	c, provider, clock := setup(t, Config{TTL: ttl, MaxCacheSize: 10})

	require.NoError(t, c.Set(ctx, 150, rules, validate(150)))

	clock.Advance(ttl - time.Millisecond)
	got, err := c.Get(ctx, 150, rules)
	require.NoError(t, err)
	assert.NotNil(t, got, "fresh at t+ttl-1")

	clock.Advance(2 * time.Millisecond)
	got, err = c.Get(ctx, 150, rules)
	require.NoError(t, err)
	assert.Nil(t, got, "stale at t+ttl+1 even though the provider still holds it")
	assert.Equal(t, 1, provider.Len())
}

func TestValidationCache_CapacityFlush(t *testing.T) {
	ctx := context.Background()
	c, provider, _ := setup(t, Config{TTL: time.Minute, MaxCacheSize: 3})

	for _, v := range []float64{10, 20, 30} {
		require.NoError(t, c.Set(ctx, v, rules, validate(v)))
	}
	assert.Equal(t, int64(3), c.Size())
	assert.Equal(t, 3, provider.Len())

	require.NoError(t, c.Set(ctx, 40, rules, validate(40)))
	assert.Equal(t, int64(1), c.Size(), "size resets to 1 after the overflowing insert")
	assert.Equal(t, 1, provider.Len())

	got, err := c.Get(ctx, 10, rules)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = c.Get(ctx, 40, rules)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestValidationCache_OverwriteDoesNotGrowSize(t *testing.T) {
	ctx := context.Background()
	c, provider, _ := setup(t, Config{TTL: time.Minute, MaxCacheSize: 3})

	for range 5 {
		require.NoError(t, c.Set(ctx, 10, rules, validate(10)))
	}
	assert.Equal(t, int64(1), c.Size())
	assert.Equal(t, 1, provider.Len())

	require.NoError(t, c.Set(ctx, 20, rules, validate(20)))
	require.NoError(t, c.Set(ctx, 30, rules, validate(30)))
	assert.Equal(t, int64(3), c.Size())

	// A known key at capacity is overwritten in place.
	require.NoError(t, c.Set(ctx, 10, rules, validate(10)))
	assert.Equal(t, int64(3), c.Size())
	got, err := c.Get(ctx, 20, rules)
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, c.Set(ctx, 40, rules, validate(40)))
	assert.Equal(t, int64(1), c.Size())
	assert.Equal(t, 1, provider.Len())
}

func TestValidationCache_ResultsAreIsolated(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t, DefaultConfig())

	input := validate(2000)
	require.NotEmpty(t, input.Errors)
	require.NoError(t, c.Set(ctx, 2000, rules, input))
	input.Errors[0].Message = "tampered"

	first, err := c.Get(ctx, 2000, rules) // from the provider
	require.NoError(t, err)
	require.NotNil(t, first)
	message := first.Errors[0].Message
	assert.NotEqual(t, "tampered", message)
	first.Errors[0].Message = "tampered"
	*first.Data = 1
	first.Metadata.Rules[0] = "tampered"

	second, err := c.Get(ctx, 2000, rules) // from memory
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, int64(1), c.Metrics().Hits)
	assert.Equal(t, message, second.Errors[0].Message)
	assert.Equal(t, 2000.0, *second.Data)
	assert.NotEqual(t, "tampered", second.Metadata.Rules[0])

	second.Errors[0].Message = "tampered again"
	third, err := c.Get(ctx, 2000, rules)
	require.NoError(t, err)
	assert.Equal(t, message, third.Errors[0].Message)
}

func TestValidationCache_WriteInvalidatesTag(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t, DefaultConfig())

	require.NoError(t, c.Set(ctx, 10, rules, validate(10)))
	_, err := c.Get(ctx, 10, rules) // pulls the result into memory
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, 20, rules, validate(20)))

	// The in-memory copy of 10 was dropped; the next read misses memory
	// and is served from the provider again.
	before := c.Metrics().Misses
	got, err := c.Get(ctx, 10, rules)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, before+1, c.Metrics().Misses)
}

func TestValidationCache_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	c, _, clock := setup(t, DefaultConfig())

	first := validate(150)
	require.NoError(t, c.Set(ctx, 150, rules, first))
	clock.Advance(time.Second)

	second := validate(150)
	second.Errors = append(second.Errors, validation.Error{
		Code: score.CodeInvalidNumber, Field: "total", Message: "note", Severity: validation.SeverityInfo,
	})
	require.NoError(t, c.Set(ctx, 150, rules, second))

	got, err := c.Get(ctx, 150, rules)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Errors, 1)
	assert.True(t, got.Metadata.ValidatedAt.Equal(clock.Now()))
}

func TestValidationCache_DiscardsUntrustedPayloads(t *testing.T) {
	ctx := context.Background()
	c, provider, clock := setup(t, DefaultConfig())

	key, err := cache.CreateKey(10.0, rules)
	require.NoError(t, err)

	require.NoError(t, provider.Set(ctx, key, "not json", storage.SetOptions{}))
	got, err := c.Get(ctx, 10, rules)
	require.NoError(t, err)
	assert.Nil(t, got, "undecodable payload is ignored")

	malformed := `{"isValid":true,"errors":[{"code":"TOTAL_EXCEEDED","field":"total","severity":"error"}],` +
		`"metadata":{"validatedAt":"` + clock.Now().Format(time.RFC3339Nano) + `","rules":["TOTAL_EXCEEDED"]}}`
	require.NoError(t, provider.Set(ctx, key, malformed, storage.SetOptions{}))
	got, err = c.Get(ctx, 10, rules)
	require.NoError(t, err)
	assert.Nil(t, got, "contradictory payload is ignored")

	require.NoError(t, provider.Set(ctx, key, `{"isValid":true,"errors":[],"metadata":{}}`, storage.SetOptions{}))
	got, err = c.Get(ctx, 10, rules)
	require.NoError(t, err)
	assert.Nil(t, got, "payload without timestamp is ignored")
}

func TestValidationCache_StorageFailuresBecomeCacheErrors(t *testing.T) {
	ctx := context.Background()
	cause := stderrors.New("connection refused")
	c, err := New(failingProvider{err: cause}, DefaultConfig(), WithCleanupInterval(0))
	require.NoError(t, err)
	defer c.Dispose()

	_, err = c.Get(ctx, 10, rules)
	assert.Equal(t, score.CodeCacheError, errors.GetCode(err))
	assert.ErrorIs(t, err, cause)

	err = c.Set(ctx, 10, rules, validate(10))
	assert.Equal(t, score.CodeCacheError, errors.GetCode(err))

	err = c.Clear(ctx)
	assert.Equal(t, score.CodeCacheError, errors.GetCode(err))
}

func TestValidationCache_Clear(t *testing.T) {
	ctx := context.Background()
	c, provider, _ := setup(t, DefaultConfig())

	require.NoError(t, c.Set(ctx, 10, rules, validate(10)))
	require.NoError(t, c.Set(ctx, 20, rules, validate(20)))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, int64(0), c.Size())
	assert.Equal(t, 0, provider.Len())
}

func TestValidationCache_DefaultsAppliedToZeroConfig(t *testing.T) {
	c, err := New(storage.NewMemoryProvider(nil), Config{}, WithCleanupInterval(0))
	require.NoError(t, err)
	defer c.Dispose()

	assert.Equal(t, DefaultConfig(), c.config)
}
