package scoring

import (
	"fmt"
	"testing"

	"ashare-quant/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startupBars models a bottom breakout: a long decline into a quiet base,
// then three heavy-volume up days that clear MA20.
func startupBars() []entity.DailyBar {
	bars := make([]entity.DailyBar, 80)
	for i := range bars {
		var close float64
		switch {
		case i < 20:
			close = 20 // plateau before the decline
		case i < 60:
			close = 20 - float64(i-19)*0.25 // decline 20 -> 10
		case i < 77:
			close = 10 // quiet base
		default:
			close = 10 * (1 + 0.04*float64(i-76)) // breakout days
		}
		vol, amount := 1000.0, 10000.0
		if i >= 77 {
			vol, amount = 3500, 38000
		}
		open := close
		if i >= 77 {
			open = close * 0.97
		}
		prev := close
		if i > 0 {
			prev = bars[i-1].Close
		}
		pct := 0.0
		if prev > 0 {
			pct = (close - prev) / prev * 100
		}
		bars[i] = entity.DailyBar{
			TsCode:    "600519.SH",
			TradeDate: fmt.Sprintf("2024%04d", i+101),
			Open:      open,
			High:      close * 1.01,
			Low:       open * 0.99,
			Close:     close,
			PreClose:  prev,
			Vol:       vol,
			Amount:    amount,
			PctChg:    pct,
		}
	}
	return bars
}

func TestScoreV3BottomBreakout(t *testing.T) {
	r := ScoreV3(Input{TsCode: "600519.SH", Name: "贵州茅台", Bars: startupBars()})
	require.True(t, r.Success)

	// The breakout sits near the bottom of its 60-day range with confirmed
	// volume, so both core dimensions have to respond.
	assert.GreaterOrEqual(t, r.Dimensions["bottom_feature"], 12.0)
	assert.GreaterOrEqual(t, r.Dimensions["startup_confirmation"], 8.0)

	flat := ScoreV3(Input{TsCode: "600000.SH", Name: "浦发银行", Bars: flatBars(80)})
	assert.Greater(t, r.Score, flat.Score)

	assert.Greater(t, r.StopLoss, 0.0)
	assert.Less(t, r.StopLoss, r.TakeProfit)
	last := startupBars()[79].Close
	assert.Less(t, r.StopLoss, last)
	assert.Greater(t, r.TakeProfit, last)
}

func TestScoreV3StopLossFloor(t *testing.T) {
	r := ScoreV3(Input{TsCode: "600000.SH", Name: "浦发银行", Bars: flatBars(80)})
	require.True(t, r.Success)
	// Never deeper than 15% below the close, never at or above it.
	assert.GreaterOrEqual(t, r.StopLoss, 10.0*0.85-1e-9)
	assert.Less(t, r.StopLoss, 10.0)
}

func TestScoreV3RiskNotTriggeredAtBottom(t *testing.T) {
	r := ScoreV3(Input{TsCode: "600519.SH", Name: "贵州茅台", Bars: startupBars()})
	require.True(t, r.Success)
	assert.NotContains(t, r.RiskReasons, "高位派发风险")
}
