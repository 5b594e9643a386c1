package scoring

import (
	"math"

	"ashare-quant/internal/indicator"
)

// macdState condenses the DIF/DEA series into the states the scorers grade.
type macdState struct {
	dif, dea, hist float64

	goldenCross  bool // DIF crossed above DEA within the last 3 bars
	bothBelow    bool // DIF and DEA below zero at the cross
	histRising3  bool // histogram rose on each of the last 3 bars
	nearZero     bool // |DIF| within 1% of price
	converging   bool // |DIF-DEA| shrinking below zero
	histPositive bool
}

func readMACD(w *indicator.Window, brewingThreshold float64) macdState {
	n := len(w.DIF)
	st := macdState{
		dif:  w.DIF[n-1],
		dea:  w.DEA[n-1],
		hist: w.Hist[n-1],
	}
	st.histPositive = st.hist > 0
	st.bothBelow = st.dif < 0 && st.dea < 0
	st.nearZero = math.Abs(st.dif) < w.Close*0.01

	for i := n - 3; i < n; i++ {
		if i <= 0 {
			continue
		}
		if w.DIF[i] > w.DEA[i] && w.DIF[i-1] <= w.DEA[i-1] {
			st.goldenCross = true
			if w.DIF[i] < 0 && w.DEA[i] < 0 {
				st.bothBelow = true
			}
		}
	}

	if n >= 4 {
		st.histRising3 = w.Hist[n-1] > w.Hist[n-2] &&
			w.Hist[n-2] > w.Hist[n-3] &&
			w.Hist[n-3] > w.Hist[n-4]
	}

	if st.dif < 0 && st.dea < 0 && math.Abs(st.dif) > 0 {
		st.converging = math.Abs(st.dif-st.dea) < brewingThreshold*math.Abs(st.dif)
	}

	return st
}

// scoreMACDTrend grades the MACD state on the shared 15-point scale used by
// the V3 and V4 startup/lurking scorers.
func scoreMACDTrend(st macdState) float64 {
	switch {
	case st.goldenCross && st.bothBelow:
		return 15
	case st.goldenCross && st.dea < 0:
		return 13
	case st.histRising3 && st.nearZero:
		return 12
	case st.goldenCross:
		return 9
	case st.converging:
		return 5
	default:
		return 0
	}
}
