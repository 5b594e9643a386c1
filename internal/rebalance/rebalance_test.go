package rebalance

import (
	"fmt"
	"testing"

	"ashare-quant/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexSeries(closes []float64) []entity.DailyBar {
	bars := make([]entity.DailyBar, len(closes))
	for i, c := range closes {
		bars[i] = entity.DailyBar{
			TsCode:    "000001.SH",
			TradeDate: fmt.Sprintf("2024%04d", i+101),
			Close:     c,
		}
	}
	return bars
}

func TestCheckProfitProtection(t *testing.T) {
	// +25% at the peak: lock 80% of the max gain as the new stop.
	h := Holding{TsCode: "000001.SZ", BuyPrice: 10, CurrentPrice: 12.5, MaxPrice: 12.5, StopLoss: 9.2}
	a := CheckProfitProtection(h)
	assert.Equal(t, ActionUpdateStopLoss, a.Type)
	assert.InDelta(t, 10*(1+0.8*0.25), a.NewStopLoss, 1e-9)

	// Price already pierced the ratchet: sell.
	h.CurrentPrice = 11.5
	h.MaxPrice = 13
	a = CheckProfitProtection(h)
	assert.Equal(t, ActionSellAll, a.Type)

	// +9% locks 50% of the max gain.
	h = Holding{TsCode: "000001.SZ", BuyPrice: 10, CurrentPrice: 10.9, MaxPrice: 11, StopLoss: 9}
	a = CheckProfitProtection(h)
	assert.Equal(t, ActionUpdateStopLoss, a.Type)
	assert.InDelta(t, 10*(1+0.5*0.1), a.NewStopLoss, 1e-9)

	// Below the protection line: hold.
	h = Holding{TsCode: "000001.SZ", BuyPrice: 10, CurrentPrice: 10.3, MaxPrice: 10.5}
	assert.Equal(t, ActionHold, CheckProfitProtection(h).Type)
}

func TestCheckScoreDeterioration(t *testing.T) {
	tests := []struct {
		buy, current float64
		wantType     string
		wantRatio    float64
	}{
		{85, 55, ActionSellAll, 0},
		{85, 62, ActionReduce, 0.7},
		{80, 63, ActionReduce, 0.5},
		{75, 64, ActionCaution, 0.3},
		{75, 70, ActionHold, 0},
	}
	for _, tt := range tests {
		h := Holding{TsCode: "000001.SZ", BuyScore: tt.buy, CurrentScore: tt.current}
		a := CheckScoreDeterioration(h)
		assert.Equal(t, tt.wantType, a.Type, "buy %.0f current %.0f", tt.buy, tt.current)
		assert.InDelta(t, tt.wantRatio, a.Ratio, 1e-9)
	}
}

func TestCheckOpportunityReplacement(t *testing.T) {
	holdings := []Holding{
		{TsCode: "000001.SZ", BuyPrice: 10, CurrentPrice: 11, CurrentScore: 80},
		{TsCode: "000002.SZ", BuyPrice: 10, CurrentPrice: 9.5, CurrentScore: 62},
	}
	signals := []Signal{
		{TsCode: "000003.SZ", Score: 75}, // 13 points over the weakest, not enough
		{TsCode: "000004.SZ", Score: 74},
	}
	assert.Empty(t, CheckOpportunityReplacement(holdings, signals))

	signals = append(signals, Signal{TsCode: "000005.SZ", Score: 81})
	actions := CheckOpportunityReplacement(holdings, signals)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionSwap, actions[0].Type)
	assert.Equal(t, "000002.SZ", actions[0].TsCode)
	assert.Equal(t, "000005.SZ", actions[0].ReplaceWith)

	// A healthy weakest holding is never swapped out.
	holdings[1] = Holding{TsCode: "000002.SZ", BuyPrice: 10, CurrentPrice: 10.5, CurrentScore: 70}
	assert.Empty(t, CheckOpportunityReplacement(holdings, signals))

	// Signals already held are not challengers.
	holdings[1] = Holding{TsCode: "000002.SZ", BuyPrice: 10, CurrentPrice: 9.5, CurrentScore: 62}
	assert.Empty(t, CheckOpportunityReplacement(holdings, []Signal{{TsCode: "000002.SZ", Score: 99}}))
}

func TestCheckMarketRegimeDefense(t *testing.T) {
	// 25 bars trending up, then a sharp break that drags MA5 below MA20.
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	closes[22], closes[23], closes[24] = 110, 100, 90
	a := CheckMarketRegimeDefense(indexSeries(closes))
	assert.Equal(t, ActionReduce, a.Type)
	assert.InDelta(t, 0.5, a.Ratio, 1e-9)

	// Flat index: no action.
	for i := range closes {
		closes[i] = 100
	}
	assert.Equal(t, ActionHold, CheckMarketRegimeDefense(indexSeries(closes)).Type)

	// Overheated: close far above MA20.
	closes[24] = 110
	a = CheckMarketRegimeDefense(indexSeries(closes))
	assert.Equal(t, ActionCaution, a.Type)
	assert.InDelta(t, 0.2, a.Ratio, 1e-9)

	// Too little history: hold.
	assert.Equal(t, ActionHold, CheckMarketRegimeDefense(indexSeries(closes[:10])).Type)
}

func TestGenerateDailyRebalancePlanMergesSeverity(t *testing.T) {
	holdings := []Holding{
		// Profitable but with a collapsed score: sell wins over stop update.
		{TsCode: "000001.SZ", BuyPrice: 10, CurrentPrice: 12, MaxPrice: 12.5, BuyScore: 85, CurrentScore: 55},
		// Healthy: plain hold.
		{TsCode: "000002.SZ", BuyPrice: 10, CurrentPrice: 10.2, MaxPrice: 10.3, BuyScore: 75, CurrentScore: 74},
	}
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	plan := GenerateDailyRebalancePlan(holdings, nil, indexSeries(closes))

	require.Len(t, plan.PerStock, 2)
	assert.Equal(t, ActionSellAll, plan.PerStock[0].Type)
	assert.Equal(t, ActionHold, plan.PerStock[1].Type)
	assert.Equal(t, ActionHold, plan.Market.Type)
	assert.Empty(t, plan.Swaps)
}

func TestMergeActionsPrefersLargerReduce(t *testing.T) {
	a := Action{Type: ActionReduce, Ratio: 0.3}
	b := Action{Type: ActionReduce, Ratio: 0.7}
	assert.InDelta(t, 0.7, mergeActions(a, b).Ratio, 1e-9)
	assert.InDelta(t, 0.7, mergeActions(b, a).Ratio, 1e-9)
}
