package indicator

import (
	"fmt"
	"testing"

	"ashare-quant/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatBars builds n identical bars: close 10, volume 1000, zero change.
func flatBars(n int) []entity.DailyBar {
	bars := make([]entity.DailyBar, n)
	for i := range bars {
		bars[i] = entity.DailyBar{
			TsCode:    "000001.SZ",
			TradeDate: fmt.Sprintf("2024%04d", i+101),
			Open:      10, High: 10, Low: 10, Close: 10, PreClose: 10,
			Vol: 1000, Amount: 10000, PctChg: 0,
		}
	}
	return bars
}

func TestComputeRequiresSixtyBars(t *testing.T) {
	_, err := Compute(flatBars(59))
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = Compute(flatBars(60))
	assert.NoError(t, err)
}

func TestComputeFlatSeries(t *testing.T) {
	w, err := Compute(flatBars(80))
	require.NoError(t, err)

	assert.InDelta(t, 10.0, w.MA5, 1e-9)
	assert.InDelta(t, 10.0, w.MA60, 1e-9)
	assert.InDelta(t, 10.0, w.EMA12, 1e-9)
	assert.InDelta(t, 0.0, w.DIF[len(w.DIF)-1], 1e-9)
	assert.InDelta(t, 0.0, w.Hist[len(w.Hist)-1], 1e-9)

	// No losses in a flat series.
	assert.InDelta(t, 100.0, w.RSI14, 1e-9)
	// No range, so RSV degrades to the neutral value.
	assert.InDelta(t, 50.0, w.K, 1e-9)
	assert.InDelta(t, 50.0, w.D, 1e-9)

	assert.InDelta(t, 0.5, w.PricePosition, 1e-9)
	assert.InDelta(t, 1.0, w.VolumeRatio, 1e-9)
	assert.InDelta(t, 0.0, w.Volatility20, 1e-9)
	assert.InDelta(t, 0.0, w.Drawdown60, 1e-9)
	assert.InDelta(t, 0.0, w.ATR14, 1e-9)
}

func TestMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, MA(values, 5), 1e-9)
	assert.InDelta(t, 4.5, MA(values, 2), 1e-9)
	assert.Equal(t, 0.0, MA(values, 6))
}

func TestMAAt(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 4.5, MAAt(values, 2, 0), 1e-9)
	assert.InDelta(t, 3.5, MAAt(values, 2, 1), 1e-9)
	assert.Equal(t, 0.0, MAAt(values, 5, 1))
}

func TestEMAConstantSeries(t *testing.T) {
	out := EMA([]float64{7, 7, 7, 7, 7}, 3)
	require.Len(t, out, 5)
	for _, v := range out {
		assert.InDelta(t, 7.0, v, 1e-9)
	}
}

func TestEMAConvergesTowardLevelShift(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		if i < 20 {
			values[i] = 10
		} else {
			values[i] = 20
		}
	}
	out := EMA(values, 5)
	// After twenty bars at the new level, the EMA sits close to it.
	assert.Greater(t, out[len(out)-1], 19.0)
	assert.Less(t, out[len(out)-1], 20.0)
}

func TestPricePositionBottomAndTop(t *testing.T) {
	bars := flatBars(80)
	for i := range bars {
		bars[i].Close = 20 - float64(i)*0.1 // steady decline
		bars[i].High = bars[i].Close
		bars[i].Low = bars[i].Close
	}
	w, err := Compute(bars)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, w.PricePosition, 1e-9)

	for i := range bars {
		bars[i].Close = 10 + float64(i)*0.1
		bars[i].High = bars[i].Close
		bars[i].Low = bars[i].Close
	}
	w, err = Compute(bars)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w.PricePosition, 1e-9)
}

func TestVolumeRatioSurge(t *testing.T) {
	bars := flatBars(80)
	for i := len(bars) - 3; i < len(bars); i++ {
		bars[i].Vol = 3000
	}
	w, err := Compute(bars)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, w.VolumeRatio, 1e-6)
}

func TestLimitCounts(t *testing.T) {
	bars := flatBars(80)
	bars[77].PctChg = 9.8
	bars[78].PctChg = 10.0
	bars[79].PctChg = -9.9
	w, err := Compute(bars)
	require.NoError(t, err)

	assert.Equal(t, 2, w.LimitUpCount(5))
	assert.Equal(t, 1, w.LimitDownCount(5))
	assert.Equal(t, 0, w.LimitUpCount(1))
}

func TestConsecutiveUpDays(t *testing.T) {
	bars := flatBars(80)
	bars[77].PctChg = 1.0
	bars[78].PctChg = 0.5
	bars[79].PctChg = 2.0
	w, err := Compute(bars)
	require.NoError(t, err)
	assert.Equal(t, 3, w.ConsecutiveUpDays())

	bars[79].PctChg = -0.2
	w, err = Compute(bars)
	require.NoError(t, err)
	assert.Equal(t, 0, w.ConsecutiveUpDays())
	assert.Equal(t, 1, w.ConsecutiveDownDays())
}

func TestRSIDirections(t *testing.T) {
	up := flatBars(80)
	for i := range up {
		up[i].Close = 10 + float64(i)*0.05
	}
	w, err := Compute(up)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, w.RSI14, 1e-9)

	down := flatBars(80)
	for i := range down {
		down[i].Close = 20 - float64(i)*0.05
	}
	w, err = Compute(down)
	require.NoError(t, err)
	assert.Less(t, w.RSI14, 1.0)
}

func TestBollingerBandsFlat(t *testing.T) {
	w, err := Compute(flatBars(80))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, w.BollMid, 1e-9)
	assert.InDelta(t, 10.0, w.BollUpper, 1e-9)
	assert.InDelta(t, 10.0, w.BollLower, 1e-9)
}
