package evolution

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"ashare-quant/internal/backtest"
	"ashare-quant/internal/config"
	"ashare-quant/internal/entity"
	"ashare-quant/internal/repository"
	"ashare-quant/internal/scoring"
	"ashare-quant/pkg/common"
	"ashare-quant/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	l1, err := acquireLock(path)
	require.NoError(t, err)

	_, err = acquireLock(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l1.release())

	l2, err := acquireLock(path)
	require.NoError(t, err)
	require.NoError(t, l2.release())
}

func TestCompositeScore(t *testing.T) {
	s := backtest.Stats{
		Sharpe:            2.0,
		WeightedAvgReturn: 1.5,
		AvgReturn:         2.5,
		WinRate:           60,
		MaxDrawdown:       8,
	}
	want := 1.5*2.0 + 0.12*1.5 + 0.08*2.5 + 0.02*60 - 0.05*8
	assert.InDelta(t, want, compositeScore(s), 1e-9)

	// Drawdown enters as a magnitude regardless of sign convention.
	s.MaxDrawdown = -8
	assert.InDelta(t, want, compositeScore(s), 1e-9)
}

func TestVariantGrid(t *testing.T) {
	for _, variant := range []string{
		common.VariantV3, common.VariantV4, common.VariantV6, common.VariantV7, common.VariantV8,
	} {
		grid := variantGrid(variant, 42)
		require.NotEmpty(t, grid, variant)
		for _, p := range grid {
			assert.Equal(t, variant, p.Variant)
			assert.Negative(t, p.StopLossPct)
			assert.Positive(t, p.TakeProfitPct)
			assert.Positive(t, p.MaxHoldingDays)
			assert.Positive(t, p.SampleSize)
			assert.Equal(t, int64(42), p.Seed)
		}
	}
	assert.Empty(t, variantGrid("V99", 42))
}

func flatSeries(code string, n int) []entity.DailyBar {
	bars := make([]entity.DailyBar, n)
	for i := range bars {
		bars[i] = entity.DailyBar{
			TsCode:    code,
			TradeDate: fmt.Sprintf("2024%04d", i+101),
			Open:      10, High: 10, Low: 10, Close: 10, PreClose: 10,
			Vol: 1000, Amount: 10000,
		}
	}
	return bars
}

func TestSearchVariantPicksBestByComposite(t *testing.T) {
	data := map[string][]entity.DailyBar{
		"000001.SZ": flatSeries("000001.SZ", 120),
		"000002.SZ": flatSeries("000002.SZ", 120),
	}
	eval := func(tsCode string, bars []entity.DailyBar) scoring.Result {
		return scoring.Result{TsCode: tsCode, Success: true, Score: 70}
	}
	grid := []backtest.Params{
		{Variant: common.VariantV3, ScoreThreshold: 90, MaxHoldingDays: 5, StopLossPct: -0.05, TakeProfitPct: 0.1},
		{Variant: common.VariantV3, ScoreThreshold: 60, MaxHoldingDays: 5, StopLossPct: -0.05, TakeProfitPct: 0.1},
	}

	results, bestIdx := searchVariant(context.Background(), data, eval, grid, 2)
	require.Len(t, results, 2)
	require.Equal(t, 1, bestIdx)
	assert.Equal(t, 2, results[1].Stats.TotalSignals)
	assert.Equal(t, 0, results[0].Stats.TotalSignals)
}

func TestSearchVariantCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, bestIdx := searchVariant(ctx, nil, nil, variantGrid(common.VariantV3, 1), 2)
	assert.Empty(t, results)
	assert.Equal(t, -1, bestIdx)
}

func TestWriteReportsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	best := GridResult{
		Params: backtest.Params{Variant: common.VariantV3, ScoreThreshold: 70, MaxHoldingDays: 10, StopLossPct: -0.08, TakeProfitPct: 0.15},
		Stats:  backtest.Stats{TotalSignals: 12, WinRate: 58.3, Sharpe: 1.2},
		Score:  2.4,
	}
	report := &RunReport{
		RunAt:   "2025-08-29T17:30:00",
		Best:    map[string]GridResult{common.VariantV3: best},
		History: map[string][]GridResult{common.VariantV3: {best}},
	}
	require.NoError(t, writeReports(dir, report))

	for _, name := range []string{"best_params.json", "last_run.json", "last_run.csv", "V3_best.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	loaded, err := ReadBestParams(dir)
	require.NoError(t, err)
	require.Contains(t, loaded, common.VariantV3)
	assert.Equal(t, best.Params, loaded[common.VariantV3].Params)
	assert.InDelta(t, best.Score, loaded[common.VariantV3].Score, 1e-9)
	assert.Equal(t, best.Stats.TotalSignals, loaded[common.VariantV3].Stats.TotalSignals)
}

func TestFundPeriod(t *testing.T) {
	assert.Equal(t, "20241231", fundPeriod("2024", "4"))
	assert.Equal(t, "20250630", fundPeriod("2025", "2"))
	// Unset configuration falls back to a computed quarter end.
	assert.Len(t, fundPeriod("", ""), 8)
}

func TestMarketWindow(t *testing.T) {
	bars := flatSeries("000001.SH", 5)
	w := marketWindow(bars, bars[2].TradeDate)
	assert.Len(t, w, 3)
	w = marketWindow(bars, "20230101")
	assert.Empty(t, w)
	w = marketWindow(bars, "20991231")
	assert.Len(t, w, 5)
}

// fakeTushare serves a fixed calendar; everything else is unused in the
// freshness check.
type fakeTushare struct {
	repository.TushareRepository
	calendar []string
}

func (f *fakeTushare) TradeCalendar(ctx context.Context, startDate, endDate string) ([]string, error) {
	return f.calendar, nil
}

// fakeBars serves a fixed high-water mark for the market proxy.
type fakeBars struct {
	repository.DailyBarRepository
	maxTradeDate string
}

func (f *fakeBars) MaxTradeDate(ctx context.Context, tsCode string) (string, error) {
	return f.maxTradeDate, nil
}

func TestFreshnessGate(t *testing.T) {
	cfg := &config.Config{}
	cfg.Evolution.UpdateDays = 30

	stale := NewRunner(cfg, logger.NewNop(),
		&fakeTushare{calendar: []string{"20241031", "20241101"}},
		&fakeBars{maxTradeDate: "20241031"},
		nil, nil, nil, nil)
	fresh, latest, err := stale.isFresh(context.Background())
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, "20241101", latest)

	current := NewRunner(cfg, logger.NewNop(),
		&fakeTushare{calendar: []string{"20241031", "20241101"}},
		&fakeBars{maxTradeDate: "20241101"},
		nil, nil, nil, nil)
	fresh, _, err = current.isFresh(context.Background())
	require.NoError(t, err)
	assert.True(t, fresh)
}
