package scoring

import (
	"fmt"
	"testing"

	"ashare-quant/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pumpedBars models a stock at the top of a long run-up: a steady climb that
// leaves the close at the 60-day high.
func pumpedBars() []entity.DailyBar {
	bars := make([]entity.DailyBar, 80)
	for i := range bars {
		close := 10 + float64(i)*0.19 // 10 -> 25
		prev := close
		if i > 0 {
			prev = bars[i-1].Close
		}
		pct := 0.0
		if prev > 0 {
			pct = (close - prev) / prev * 100
		}
		bars[i] = entity.DailyBar{
			TsCode:    "300750.SZ",
			TradeDate: fmt.Sprintf("2024%04d", i+101),
			Open:      close * 0.995,
			High:      close * 1.005,
			Low:       close * 0.99,
			Close:     close,
			PreClose:  prev,
			Vol:       1000,
			Amount:    20000,
			PctChg:    pct,
		}
	}
	return bars
}

func TestScoreV4PenalizesHighPosition(t *testing.T) {
	r := ScoreV4(Input{TsCode: "300750.SZ", Name: "宁德时代", Bars: pumpedBars()})
	require.True(t, r.Success)

	assert.GreaterOrEqual(t, r.RiskPenalty, 10.0)
	assert.Contains(t, r.RiskReasons, "极高位风险")
	// No bottom credit at the top of the range.
	assert.LessOrEqual(t, r.Dimensions["bottom_feature"], 6.0)
}

func TestScoreV4RiskCap(t *testing.T) {
	bars := pumpedBars()
	// Stack limit-downs and a volatility spike on top of the high position.
	for i := 74; i < 80; i++ {
		bars[i].PctChg = -9.9
		bars[i].Close = bars[i-1].Close * 0.901
		bars[i].Open = bars[i-1].Close
		bars[i].High = bars[i-1].Close
		bars[i].Low = bars[i].Close
		bars[i].PreClose = bars[i-1].Close
	}
	r := ScoreV4(Input{TsCode: "300750.SZ", Name: "宁德时代", Bars: bars})
	require.True(t, r.Success)
	assert.LessOrEqual(t, r.RiskPenalty, 30.0)
	assert.GreaterOrEqual(t, r.Score, 0.0)
}

func TestScoreV4ExitLevels(t *testing.T) {
	r := ScoreV4(Input{TsCode: "600000.SH", Name: "浦发银行", Bars: flatBars(80)})
	require.True(t, r.Success)

	close := 10.0
	// Stop clamps to [-10%, -3%] of the close, target sits above it.
	assert.GreaterOrEqual(t, r.StopLoss, close*0.90-1e-9)
	assert.LessOrEqual(t, r.StopLoss, close*0.97+1e-9)
	assert.Greater(t, r.TakeProfit, close)
}
