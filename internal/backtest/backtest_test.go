package backtest

import (
	"fmt"
	"testing"

	"ashare-quant/internal/entity"
	"ashare-quant/internal/scoring"
	"ashare-quant/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// series builds n bars at a constant close, with overrides applied by index.
func series(code string, n int, overrides map[int]float64) []entity.DailyBar {
	bars := make([]entity.DailyBar, n)
	for i := range bars {
		close := 10.0
		if v, ok := overrides[i]; ok {
			close = v
		}
		bars[i] = entity.DailyBar{
			TsCode:    code,
			TradeDate: fmt.Sprintf("2024%04d", i+101),
			Open:      close, High: close, Low: close, Close: close,
			Vol: 1000, Amount: 10000,
		}
	}
	return bars
}

func scoreByCode(scores map[string]float64) Evaluator {
	return func(tsCode string, bars []entity.DailyBar) scoring.Result {
		score, ok := scores[tsCode]
		return scoring.Result{TsCode: tsCode, Success: ok, Score: score}
	}
}

func TestRunExitPaths(t *testing.T) {
	// Entry at t = 70-5-1 = 64. Winner jumps 12% the next day; sleeper never
	// moves; loser drops 10% on day two.
	data := map[string][]entity.DailyBar{
		"000001.SZ": series("000001.SZ", 70, map[int]float64{65: 11.2, 66: 11.2, 67: 11.2, 68: 11.2, 69: 11.2}),
		"000002.SZ": series("000002.SZ", 70, nil),
		"000003.SZ": series("000003.SZ", 70, map[int]float64{66: 9.0, 67: 9.0, 68: 9.0, 69: 9.0}),
	}
	eval := scoreByCode(map[string]float64{
		"000001.SZ": 85,
		"000002.SZ": 72,
		"000003.SZ": 75,
	})
	params := Params{
		Variant:        common.VariantV3,
		ScoreThreshold: 70,
		MaxHoldingDays: 5,
		StopLossPct:    -0.08,
		TakeProfitPct:  0.10,
	}

	stats, trades := Run(data, eval, params)
	require.Len(t, trades, 3)

	byCode := make(map[string]Trade)
	for _, tr := range trades {
		byCode[tr.TsCode] = tr
	}

	winner := byCode["000001.SZ"]
	assert.Equal(t, common.ExitTakeProfit, winner.ExitReason)
	assert.Equal(t, 1, winner.HoldingDays)
	assert.InDelta(t, 12.0, winner.NominalReturn, 1e-9)
	assert.InDelta(t, 0.30, winner.PositionSize, 1e-9)
	assert.Equal(t, "80+", winner.ScoreLevel)
	assert.InDelta(t, 3.6, winner.WeightedReturn, 1e-9)

	sleeper := byCode["000002.SZ"]
	assert.Equal(t, common.ExitTime, sleeper.ExitReason)
	assert.Equal(t, 5, sleeper.HoldingDays)
	assert.InDelta(t, 0.0, sleeper.NominalReturn, 1e-9)
	assert.InDelta(t, 0.25, sleeper.PositionSize, 1e-9)

	loser := byCode["000003.SZ"]
	assert.Equal(t, common.ExitStopLoss, loser.ExitReason)
	assert.Equal(t, 2, loser.HoldingDays)
	assert.InDelta(t, -10.0, loser.NominalReturn, 1e-9)

	assert.Equal(t, 3, stats.TotalSignals)
	assert.InDelta(t, 100.0/3, stats.WinRate, 1e-9)
	assert.Equal(t, 1, stats.ExitStats[common.ExitTakeProfit])
	assert.Equal(t, 1, stats.ExitStats[common.ExitStopLoss])
	assert.Equal(t, 1, stats.ExitStats[common.ExitTime])
	assert.Nil(t, stats.Diagnostics)
}

func TestRunSkipsShortAndUnscoredSeries(t *testing.T) {
	data := map[string][]entity.DailyBar{
		"000001.SZ": series("000001.SZ", 40, nil), // below 60+hold+1
		"000002.SZ": series("000002.SZ", 70, nil), // evaluator rejects
	}
	eval := scoreByCode(map[string]float64{"000001.SZ": 90})
	_, trades := Run(data, eval, Params{ScoreThreshold: 60, MaxHoldingDays: 5})
	assert.Empty(t, trades)
}

func TestRunDeterministicSampling(t *testing.T) {
	data := make(map[string][]entity.DailyBar)
	scores := make(map[string]float64)
	for i := 0; i < 20; i++ {
		code := fmt.Sprintf("%06d.SZ", i+1)
		data[code] = series(code, 70, map[int]float64{67: 10.5})
		scores[code] = 60 + float64(i)
	}
	params := Params{
		ScoreThreshold: 60,
		MaxHoldingDays: 5,
		StopLossPct:    -0.08,
		TakeProfitPct:  0.10,
		SampleSize:     7,
		Seed:           42,
	}

	stats1, trades1 := Run(data, scoreByCode(scores), params)
	stats2, trades2 := Run(data, scoreByCode(scores), params)

	assert.Equal(t, trades1, trades2)
	assert.Equal(t, stats1, stats2)
	assert.Len(t, trades1, 7)

	// A different seed samples a different subset of the universe.
	params.Seed = 7
	_, trades3 := Run(data, scoreByCode(scores), params)
	assert.Len(t, trades3, 7)
	assert.NotEqual(t, trades1, trades3)
}

func TestRunNoSignalDiagnostics(t *testing.T) {
	data := map[string][]entity.DailyBar{
		"000001.SZ": series("000001.SZ", 70, nil),
		"000002.SZ": series("000002.SZ", 70, nil),
	}
	eval := scoreByCode(map[string]float64{"000001.SZ": 66, "000002.SZ": 72})
	stats, trades := Run(data, eval, Params{ScoreThreshold: 95, MaxHoldingDays: 5})

	assert.Empty(t, trades)
	require.NotNil(t, stats.Diagnostics)
	assert.Equal(t, 2, stats.Diagnostics.Evaluated)
	assert.InDelta(t, 72.0, stats.Diagnostics.MaxScore, 1e-9)
	assert.InDelta(t, 69.0, stats.Diagnostics.AvgScore, 1e-9)
	// 66 clears tiers up to 65, 72 up to 70.
	assert.Equal(t, 2, stats.Diagnostics.TierCounts[65])
	assert.Equal(t, 1, stats.Diagnostics.TierCounts[70])
	assert.Equal(t, 0, stats.Diagnostics.TierCounts[75])
}

func TestAggregateOrderIndependence(t *testing.T) {
	trades := []Trade{
		{TsCode: "000001.SZ", EntryDate: "20250106", NominalReturn: 5, WeightedReturn: 1.5, HoldingDays: 5, ExitReason: common.ExitTakeProfit, ScoreLevel: "80+"},
		{TsCode: "000002.SZ", EntryDate: "20250107", NominalReturn: -3, WeightedReturn: -0.75, HoldingDays: 3, ExitReason: common.ExitStopLoss, ScoreLevel: "70-80"},
		{TsCode: "000003.SZ", EntryDate: "20250108", NominalReturn: 1, WeightedReturn: 0.2, HoldingDays: 10, ExitReason: common.ExitTime, ScoreLevel: "<60"},
	}
	reversed := []Trade{trades[2], trades[1], trades[0]}
	assert.Equal(t, aggregate(trades), aggregate(reversed))
}

func TestMaxDrawdownUsesEntryDateOrder(t *testing.T) {
	// Alternating loss/gain: the drawdown depends on the compounding order,
	// so only the entry-date order gives a stable answer.
	byDate := []Trade{
		{TsCode: "000001.SZ", EntryDate: "20250106", NominalReturn: -5, WeightedReturn: -5, HoldingDays: 5},
		{TsCode: "000002.SZ", EntryDate: "20250107", NominalReturn: 10, WeightedReturn: 10, HoldingDays: 5},
		{TsCode: "000003.SZ", EntryDate: "20250108", NominalReturn: -5, WeightedReturn: -5, HoldingDays: 5},
		{TsCode: "000004.SZ", EntryDate: "20250109", NominalReturn: 10, WeightedReturn: 10, HoldingDays: 5},
	}
	shuffled := []Trade{byDate[1], byDate[3], byDate[0], byDate[2]}

	assert.InDelta(t, 5.0, aggregate(byDate).MaxDrawdown, 1e-9)
	assert.Equal(t, aggregate(byDate).MaxDrawdown, aggregate(shuffled).MaxDrawdown)
}

func TestSharpeAndDrawdown(t *testing.T) {
	s := aggregate([]Trade{
		{NominalReturn: 10, WeightedReturn: 3, HoldingDays: 5},
		{NominalReturn: -5, WeightedReturn: -1.5, HoldingDays: 5},
		{NominalReturn: 8, WeightedReturn: 2.4, HoldingDays: 5},
	})
	assert.NotZero(t, s.Sharpe)
	assert.Greater(t, s.MaxDrawdown, 0.0)
	assert.InDelta(t, 8.0, s.MedianReturn, 1e-9)
	assert.InDelta(t, 10.0, s.MaxReturn, 1e-9)
	assert.InDelta(t, -5.0, s.MinReturn, 1e-9)
}
