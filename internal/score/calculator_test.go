package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentage_NonPositiveTotal(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(50, 0))
	assert.Equal(t, 0.0, Percentage(50, -10))
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.False(t, math.IsNaN(Percentage(0, 0)), "zero total must not produce NaN")
}

func TestPercentage_NonFiniteInput(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(math.NaN(), 100))
	assert.Equal(t, 0.0, Percentage(10, math.Inf(1)))
}

func TestPercentage_Rounding(t *testing.T) {
	assert.Equal(t, 53.33, Percentage(80, 150))
	assert.Equal(t, 46.67, Percentage(70, 150))
	assert.Equal(t, 100.0, Percentage(150, 150))
	assert.Equal(t, 0.0, Percentage(0, 150))
}

func TestPercentage_WithinRange(t *testing.T) {
	for total := 1.0; total <= 300; total += 7 {
		for value := 0.0; value <= total; value += 3 {
			p := Percentage(value, total)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 100.0)
			assert.Equal(t, Round(p, 2), p, "result should already be rounded to 2 decimals")
		}
	}
}

func TestCalculator_CustomPrecision(t *testing.T) {
	c := NewCalculator(0)
	assert.Equal(t, 53.0, c.Percentage(80, 150))

	c = NewCalculator(3)
	assert.Equal(t, 53.333, c.Percentage(80, 150))

	c = NewCalculator(-1)
	assert.Equal(t, DefaultDecimals, c.Decimals(), "negative precision should fall back to default")
}

func TestRound_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 3.0, Round(2.5, 0))
	assert.Equal(t, -3.0, Round(-2.5, 0))
	assert.Equal(t, 1.24, Round(1.2449, 2))
}

func TestCalculateTotal(t *testing.T) {
	assert.Equal(t, 0.0, CalculateTotal())
	assert.Equal(t, 170.0, CalculateTotal(RawScore{CommonTestValue: 80, SecondaryTestValue: 90}))
	assert.Equal(t, 150.0, CalculateTotal(
		RawScore{CommonTestValue: 80},
		RawScore{CommonTestValue: 70},
	))
}

func TestCalculateCategoryTotal(t *testing.T) {
	scores := map[string]RawScore{
		"math.algebra":  {CommonTestValue: 40, SecondaryTestValue: 10},
		"math.geometry": {CommonTestValue: 30},
		"english":       {CommonTestValue: 70, SecondaryTestValue: 5},
	}

	isMath := func(key string) bool { return len(key) >= 4 && key[:4] == "math" }
	assert.Equal(t, 80.0, CalculateCategoryTotal(scores, isMath))
	assert.Equal(t, 0.0, CalculateCategoryTotal(scores, nil))
	assert.Equal(t, 155.0, CalculateCategoryTotal(scores, func(string) bool { return true }))
}

func TestRawScore_Value(t *testing.T) {
	s := RawScore{CommonTestValue: 12, SecondaryTestValue: 34}
	assert.Equal(t, 12.0, s.Value(TestTypeCommon))
	assert.Equal(t, 34.0, s.Value(TestTypeSecondary))
	assert.Equal(t, 0.0, s.Value(TestType("unknown")))
	assert.True(t, s.Finite())
	assert.False(t, RawScore{CommonTestValue: math.Inf(-1)}.Finite())
}

func TestScoreNotFoundError(t *testing.T) {
	err := NewScoreNotFoundError("Math")
	assert.Equal(t, "scores not found: Math", err.Error())
	assert.Equal(t, CodeMissingScore, err.Code())
}
