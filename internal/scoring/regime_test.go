package scoring

import (
	"testing"

	"ashare-quant/internal/indicator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectRegimeBullAndBear(t *testing.T) {
	bull := flatBars(80)
	for i := range bull {
		bull[i].Close = 100 + float64(i)
		bull[i].High = bull[i].Close
		bull[i].Low = bull[i].Close
	}
	r, err := DetectRegime(bull)
	require.NoError(t, err)
	assert.Equal(t, "bull", r.Trend)
	assert.True(t, r.Tradable)

	bear := flatBars(80)
	for i := range bear {
		bear[i].Close = 200 - float64(i)
		bear[i].High = bear[i].Close
		bear[i].Low = bear[i].Close
	}
	r, err = DetectRegime(bear)
	require.NoError(t, err)
	assert.Equal(t, "bear", r.Trend)
	assert.LessOrEqual(t, r.Multiplier, 0.2)
}

func TestDetectRegimeInsufficientHistory(t *testing.T) {
	_, err := DetectRegime(flatBars(30))
	assert.ErrorIs(t, err, indicator.ErrInsufficientHistory)
}

func TestSoftMultiplierSteps(t *testing.T) {
	assert.Equal(t, 1.0, softMultiplier(1.0))
	assert.Equal(t, 1.0, softMultiplier(0.9))
	assert.Equal(t, 0.8, softMultiplier(0.5))
	assert.Equal(t, 0.5, softMultiplier(0.25))
	assert.Equal(t, 0.3, softMultiplier(0.1))
}

// A regime-scaled V8 score never exceeds its unscaled counterpart.
func TestScoreV8RegimeScaling(t *testing.T) {
	bars := flatBars(80)
	bear := flatBars(80)
	for i := range bear {
		bear[i].Close = 200 - float64(i)
		bear[i].High = bear[i].Close
		bear[i].Low = bear[i].Close
	}

	calm := ScoreV8(Input{TsCode: "600000.SH", Name: "浦发银行", Bars: bars, MarketBars: bars})
	scared := ScoreV8(Input{TsCode: "600000.SH", Name: "浦发银行", Bars: bars, MarketBars: bear})
	require.True(t, calm.Success)
	require.True(t, scared.Success)
	assert.LessOrEqual(t, scared.Score, calm.Score)
	assert.Less(t, scared.RegimeMultiplier, calm.RegimeMultiplier)
}
