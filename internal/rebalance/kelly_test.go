package rebalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKellyPosition(t *testing.T) {
	cfg := DefaultSizingConfig()

	// f* = (2*0.6 - 0.4)/2 = 0.4, halved to 0.2.
	assert.InDelta(t, 0.20, KellyPosition(0.6, 2.0, cfg), 1e-9)

	// Negative edge returns zero, never a short.
	assert.Equal(t, 0.0, KellyPosition(0.3, 1.0, cfg))

	// A huge edge still clamps to the single-name cap.
	assert.InDelta(t, 0.25, KellyPosition(0.9, 5.0, cfg), 1e-9)

	// Degenerate odds.
	assert.Equal(t, 0.0, KellyPosition(0.6, 0, cfg))
}

func TestScorePosition(t *testing.T) {
	cfg := DefaultSizingConfig()

	tests := []struct {
		score float64
		stars int
		want  float64
	}{
		{96, 5, 0.25},        // 0.25*1.1 clamps to the cap
		{90, 4, 0.20 * 1.05},
		{70, 3, 0.15},
		{50, 2, 0.10 * 0.9},
		{40, 1, 0.05 * 0.9},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ScorePosition(tt.score, tt.stars, cfg), 1e-9, "score %.0f stars %d", tt.score, tt.stars)
	}

	// Unknown star count falls back to the smallest base.
	assert.InDelta(t, 0.05, ScorePosition(70, 0, cfg), 1e-9)
}

func TestAllocatePortfolioRespectsTotalCap(t *testing.T) {
	cfg := DefaultSizingConfig()
	signals := []Signal{
		{TsCode: "000001.SZ", Score: 90, Stars: 5},
		{TsCode: "000002.SZ", Score: 88, Stars: 5},
		{TsCode: "000003.SZ", Score: 87, Stars: 5},
		{TsCode: "000004.SZ", Score: 86, Stars: 5},
		{TsCode: "000005.SZ", Score: 85, Stars: 5},
	}
	allocs := AllocatePortfolio(signals, cfg)
	require.Len(t, allocs, 5)

	total := 0.0
	for _, a := range allocs {
		total += a.Position
	}
	assert.InDelta(t, cfg.MaxTotalPosition, total, 1e-9)

	// Score-descending: the strongest names get full size, the tail gets the
	// remainder and then nothing.
	assert.Equal(t, "000001.SZ", allocs[0].TsCode)
	assert.InDelta(t, 0.25, allocs[0].Position, 1e-9)
	assert.InDelta(t, 0.25, allocs[1].Position, 1e-9)
	assert.InDelta(t, 0.25, allocs[2].Position, 1e-9)
	assert.InDelta(t, 0.05, allocs[3].Position, 1e-9)
	assert.InDelta(t, 0.0, allocs[4].Position, 1e-9)
}

func TestAllocatePortfolioDoesNotMutateInput(t *testing.T) {
	signals := []Signal{
		{TsCode: "000002.SZ", Score: 70, Stars: 3},
		{TsCode: "000001.SZ", Score: 90, Stars: 5},
	}
	AllocatePortfolio(signals, DefaultSizingConfig())
	assert.Equal(t, "000002.SZ", signals[0].TsCode)
}
