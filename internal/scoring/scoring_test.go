package scoring

import (
	"fmt"
	"testing"

	"ashare-quant/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatBars(n int) []entity.DailyBar {
	bars := make([]entity.DailyBar, n)
	for i := range bars {
		bars[i] = entity.DailyBar{
			TsCode:    "600000.SH",
			TradeDate: fmt.Sprintf("2024%04d", i+101),
			Open:      10, High: 10, Low: 10, Close: 10, PreClose: 10,
			Vol: 1000, Amount: 10000, PctChg: 0,
		}
	}
	return bars
}

func TestGateRejectsST(t *testing.T) {
	for _, name := range []string{"ST华信", "*ST海润"} {
		in := Input{TsCode: "600000.SH", Name: name, Bars: flatBars(80)}
		r := ScoreV3(in)
		assert.False(t, r.Success)
		assert.Equal(t, "ST股票", r.FilterReason)
		assert.Zero(t, r.Score)
	}
}

func TestGateRejectsShortHistory(t *testing.T) {
	in := Input{TsCode: "600000.SH", Name: "浦发银行", Bars: flatBars(30)}
	r := ScoreV4(in)
	assert.False(t, r.Success)
	assert.Equal(t, "历史数据不足60天", r.FilterReason)
}

func TestGateFlagOverridesName(t *testing.T) {
	in := Input{TsCode: "600000.SH", Name: "浦发银行", IsST: true, Bars: flatBars(80)}
	r := ScoreV3(in)
	assert.False(t, r.Success)
	assert.Equal(t, "ST股票", r.FilterReason)
}

// A flat series is valid input for every variant: scores stay bounded and no
// synergy combo fires.
func TestAllVariantsOnFlatSeries(t *testing.T) {
	in := Input{
		TsCode:     "600000.SH",
		Name:       "浦发银行",
		Industry:   "银行",
		Bars:       flatBars(80),
		MarketBars: flatBars(80),
	}
	for _, variant := range Variants() {
		scorer, err := Get(variant)
		require.NoError(t, err, variant)

		r := scorer(in)
		assert.True(t, r.Success, variant)
		assert.GreaterOrEqual(t, r.Score, 0.0, variant)
		assert.LessOrEqual(t, r.Score, 100.0, variant)
		assert.GreaterOrEqual(t, r.Stars, 1, variant)
		assert.LessOrEqual(t, r.Stars, 5, variant)
		assert.NotEmpty(t, r.Grade, variant)
		assert.Greater(t, r.SuggestedPosition, 0.0, variant)
	}
}

func TestGetUnknownVariant(t *testing.T) {
	_, err := Get("V99")
	assert.Error(t, err)
}

func TestVariantsSorted(t *testing.T) {
	assert.Equal(t, []string{"V3", "V4", "V6", "V7", "V8"}, Variants())
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(10, 0, 40))
	assert.Equal(t, 100.0, clampScore(95, 20, 0))
	assert.Equal(t, 72.0, clampScore(70, 10, 8))
}

func TestStarsAndRating(t *testing.T) {
	thresholds := [4]float64{85, 75, 65, 55}
	tests := []struct {
		score float64
		stars int
		grade string
		pos   float64
	}{
		{92, 5, "强烈推荐", 0.25},
		{80, 4, "推荐", 0.20},
		{70, 3, "关注", 0.15},
		{60, 2, "观望", 0.10},
		{40, 1, "回避", 0.05},
	}
	for _, tt := range tests {
		r := Result{Score: tt.score}
		applyRating(&r, thresholds)
		assert.Equal(t, tt.stars, r.Stars, "score %.0f", tt.score)
		assert.Equal(t, tt.grade, r.Grade)
		assert.InDelta(t, tt.pos, r.SuggestedPosition, 1e-9)
	}
}
