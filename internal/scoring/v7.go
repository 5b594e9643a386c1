package scoring

import (
	"math"

	"ashare-quant/internal/indicator"
	"ashare-quant/pkg/common"
)

// ScoreV7 is the quant base scorer: six broad dimensions over trend,
// momentum, volume structure, and oscillators. It is also reused by V8 as the
// 10%-weight base score.
func ScoreV7(in Input) Result {
	w, failed := gate(in, common.VariantV7)
	if failed != nil {
		return *failed
	}

	dims := map[string]float64{
		"trend_quality":      v7TrendQuality(w),
		"momentum":           v7Momentum(w),
		"volume_structure":   v7VolumeStructure(w),
		"volatility_control": v7VolatilityControl(w),
		"oscillator":         v7Oscillator(w),
		"relative_strength":  v7RelativeStrength(in, w),
	}

	base := 0.0
	for _, v := range dims {
		base += v
	}

	penalty, reasons := v7Risk(w)

	r := Result{
		TsCode:        in.TsCode,
		Variant:       common.VariantV7,
		Success:       true,
		Score:         clampScore(base, 0, penalty),
		Dimensions:    dims,
		RiskPenalty:   penalty,
		RiskReasons:   reasons,
		PricePosition: w.PricePosition,
	}
	r.StopLoss = math.Max(w.Close-2*w.ATR14, w.Close*0.92)
	r.TakeProfit = w.Close + 3*w.ATR14
	applyRating(&r, [4]float64{90, 80, 70, 60})
	return r
}

// v7TrendQuality (max 25): alignment and slope of the moving averages.
func v7TrendQuality(w *indicator.Window) float64 {
	score := 0.0
	if w.MA5 > w.MA10 && w.MA10 > w.MA20 && w.MA20 > w.MA60 {
		score += 15
	} else if w.MA5 > w.MA10 && w.MA10 > w.MA20 {
		score += 10
	} else if w.MA5 > w.MA10 {
		score += 5
	}
	closes := w.Closes()
	ma20Now := indicator.MA(closes, 20)
	ma20Prev := indicator.MAAt(closes, 20, 5)
	if ma20Prev > 0 && ma20Now > ma20Prev {
		score += 5
	}
	if w.Close > w.MA20 {
		score += 5
	}
	return math.Min(score, 25)
}

// v7Momentum (max 20): layered 5/10/20-day returns.
func v7Momentum(w *indicator.Window) float64 {
	score := 0.0
	if chg5 := w.ChangePct(5); chg5 > 0 {
		score += math.Min(chg5, 8)
	}
	if chg10 := w.ChangePct(10); chg10 > 0 {
		score += math.Min(chg10/2, 6)
	}
	if chg20 := w.ChangePct(20); chg20 > 0 {
		score += math.Min(chg20/3, 6)
	}
	return math.Min(score, 20)
}

// v7VolumeStructure (max 15): expansion on up days, contraction on down days.
func v7VolumeStructure(w *indicator.Window) float64 {
	score := 0.0
	if w.VolumeRatio > 1.2 && w.ChangePct(3) > 0 {
		score += 8
	} else if w.VolumeRatio >= 0.8 {
		score += 4
	}
	var upVol, downVol float64
	for _, b := range w.Bars[len(w.Bars)-10:] {
		if b.PctChg > 0 {
			upVol += b.Vol
		} else {
			downVol += b.Vol
		}
	}
	if downVol > 0 && upVol/downVol > 1.3 {
		score += 7
	} else if downVol > 0 && upVol/downVol > 1.0 {
		score += 4
	}
	return math.Min(score, 15)
}

// v7VolatilityControl (max 10): moderate volatility scores best.
func v7VolatilityControl(w *indicator.Window) float64 {
	switch vol := w.Volatility20; {
	case vol < 0.015:
		return 6
	case vol < 0.03:
		return 10
	case vol < 0.05:
		return 6
	case vol < 0.07:
		return 3
	default:
		return 0
	}
}

// v7Oscillator (max 20): RSI sweet spot, KDJ, MACD histogram.
func v7Oscillator(w *indicator.Window) float64 {
	score := 0.0
	switch {
	case w.RSI14 >= 45 && w.RSI14 <= 65:
		score += 8
	case w.RSI14 >= 35 && w.RSI14 < 45:
		score += 6
	case w.RSI14 < 30:
		score += 4
	}
	if w.K > w.D && w.K < 80 {
		score += 6
	}
	if w.Hist[len(w.Hist)-1] > 0 {
		score += 6
	}
	return math.Min(score, 20)
}

// v7RelativeStrength (max 10): 20-day excess return over the market proxy;
// neutral without a proxy window.
func v7RelativeStrength(in Input, w *indicator.Window) float64 {
	if len(in.MarketBars) < 21 {
		return 5
	}
	_, _, marketChg20 := marketChanges(in.MarketBars)
	excess := w.ChangePct(20) - marketChg20
	switch {
	case excess >= 15:
		return 10
	case excess >= 8:
		return 8
	case excess >= 0:
		return 6
	case excess >= -8:
		return 3
	default:
		return 0
	}
}

func v7Risk(w *indicator.Window) (float64, []string) {
	penalty := 0.0
	var reasons []string
	if w.PricePosition > 0.9 && w.ChangePct(20) > 40 {
		penalty += 10
		reasons = append(reasons, "高位透支")
	}
	if w.LimitDownCount(10) >= 1 {
		penalty += 5
		reasons = append(reasons, "近期跌停")
	}
	if w.Volatility20 > 0.08 {
		penalty += 5
		reasons = append(reasons, "波动过大")
	}
	return math.Min(penalty, 20), reasons
}
