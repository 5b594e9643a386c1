package scoring

import (
	"math"

	"ashare-quant/internal/indicator"
	"ashare-quant/pkg/common"
)

// ScoreV3 is the "startup" scorer: it hunts stocks in the early stage of a
// bottom breakout. Eight dimensions sum to 100; one synergy combo (max +25)
// and up to -30 of risk penalties adjust the base.
func ScoreV3(in Input) Result {
	w, failed := gate(in, common.VariantV3)
	if failed != nil {
		return *failed
	}
	cfg := in.config().V3

	macd := readMACD(w, cfg.BrewingThreshold)

	dims := map[string]float64{
		"startup_confirmation": v3StartupConfirmation(w),
		"bottom_feature":       v3BottomFeature(w),
		"volume_price":         v3VolumePrice(w),
		"macd_trend":           scoreMACDTrend(macd),
		"ma_trend":             v3MATrend(w),
		"main_force":           v3MainForce(w),
		"technical":            v3Technical(w),
		"limit_up_gene":        v3LimitUpGene(w),
	}

	base := 0.0
	for _, v := range dims {
		base += v
	}

	bonus, combo := v3Synergy(w, macd, dims)
	penalty, reasons := v3Risk(w, cfg)

	r := Result{
		TsCode:        in.TsCode,
		Variant:       common.VariantV3,
		Success:       true,
		Score:         clampScore(base, bonus, penalty),
		Dimensions:    dims,
		SynergyBonus:  bonus,
		ComboType:     combo,
		RiskPenalty:   penalty,
		RiskReasons:   reasons,
		PricePosition: w.PricePosition,
	}
	r.StopLoss = v3StopLoss(w)
	r.TakeProfit = v3TakeProfit(w)
	applyRating(&r, [4]float64{85, 75, 65, 55})
	return r
}

// v3StartupConfirmation (max 20): volume breakout 6 + price breakout 6 +
// money inflow proxy 4 + candle pattern 4.
func v3StartupConfirmation(w *indicator.Window) float64 {
	score := 0.0

	// Volume breakout (6).
	vol := 0.0
	switch vr := w.VolumeRatio; {
	case vr > 2.5:
		vol = 6
	case vr > 2.0:
		vol = 5
	case vr > 1.8:
		vol = 4
	case vr > 1.5:
		vol = 3
	}
	// Three consecutive days above 1.5x the historical mean add 2, capped.
	hist := w.HistMeanVol(3)
	if hist > 0 && len(w.Bars) >= 3 {
		sustained := true
		for _, b := range w.Bars[len(w.Bars)-3:] {
			if b.Vol < 1.5*hist {
				sustained = false
				break
			}
		}
		if sustained {
			vol += 2
		}
	}
	score += math.Min(vol, 6)

	// Price breakout (6): above MA20, above MA60, at the 60-day high.
	brk := 0.0
	if w.Close > w.MA20 {
		brk += 2
	}
	if w.Close > w.MA60 {
		brk += 2
	}
	if w.Close >= w.High60 {
		brk += 2
	}
	score += brk

	// Money inflow proxy (4): rising turnover with bullish closes.
	inflow := 0.0
	bullish := 0
	for _, b := range w.Bars[len(w.Bars)-3:] {
		if b.Close > b.Open {
			bullish++
		}
	}
	if bullish >= 2 {
		inflow += 2
	}
	recentAmt := meanAmount(w, 3)
	histAmt := meanAmount(w, 20)
	if histAmt > 0 && recentAmt > histAmt*1.3 {
		inflow += 2
	}
	score += inflow

	// Candle pattern (4): strength of the latest bar.
	last := w.Bars[len(w.Bars)-1]
	switch {
	case last.PctChg > 4 && last.Close > last.Open:
		score += 4
	case last.PctChg > 2 && last.Close > last.Open:
		score += 2
	}

	return math.Min(score, 20)
}

// v3BottomFeature (max 15): tiered by price position, with a rebound kicker.
func v3BottomFeature(w *indicator.Window) float64 {
	var score float64
	switch pos := w.PricePosition; {
	case pos < 0.15:
		score = 15
	case pos < 0.20:
		score = 12
	case pos < 0.30:
		score = 8
	case pos < 0.40:
		score = 5
	case pos < 0.50:
		score = 3
	default:
		score = 1
	}
	if w.ChangePct(20) < -10 && w.ChangePct(5) > 0 {
		score += 2
	}
	return math.Min(score, 15)
}

// v3VolumePrice (max 15): bottom volume expansion with rising price is the
// ideal; volume up with price down scores zero.
func v3VolumePrice(w *indicator.Window) float64 {
	vr := w.VolumeRatio
	chg5 := w.ChangePct(5)
	pos := w.PricePosition

	switch {
	case vr > 1.5 && chg5 < 0:
		return 0
	case pos < 0.4 && vr > 2.5 && chg5 > 0:
		return 15
	case pos < 0.4 && vr > 2.0 && chg5 > 0:
		return 12
	case pos < 0.4 && vr > 1.5 && chg5 > 0:
		return 9
	case pos > 0.7 && vr > 1.5:
		return 3
	default:
		return 6
	}
}

// v3MATrend (max 10): full bullish alignment graded by price position.
func v3MATrend(w *indicator.Window) float64 {
	if w.MA5 > w.MA10 && w.MA10 > w.MA20 && w.MA20 > w.MA60 {
		switch {
		case w.PricePosition < 0.3:
			return 10
		case w.PricePosition < 0.5:
			return 8
		default:
			return 6
		}
	}
	if w.MA5 > w.MA10 && w.MA10 > w.MA20 {
		return 5
	}
	if w.MA5 > w.MA10 {
		return 3
	}
	return 0
}

// v3MainForce (max 10): signs of quiet accumulation.
func v3MainForce(w *indicator.Window) float64 {
	score := 0.0
	vr := w.VolumeRatio
	chg5 := w.ChangePct(5)

	if vr >= 1.2 && vr <= 1.8 && math.Abs(chg5) < 3 {
		score += 5
	}
	if n := len(w.Bars); n >= 4 {
		mild := true
		for i := n - 3; i < n; i++ {
			ratio := 0.0
			if w.Bars[i-1].Vol > 0 {
				ratio = w.Bars[i].Vol / w.Bars[i-1].Vol
			}
			if ratio < 1.0 || ratio > 2.0 {
				mild = false
				break
			}
		}
		if mild {
			score += 3
		}
	}
	if vr > 1.5 && chg5 > 0 {
		score += 2
	}
	return math.Min(score, 10)
}

// v3Technical (max 10): oversold oscillator readings.
func v3Technical(w *indicator.Window) float64 {
	score := 0.0
	if w.RSI14 < 30 {
		score += 4
	}
	if w.K < 20 && w.D < 20 {
		score += 3
	}
	if w.Close < w.BollLower {
		score += 3
	}
	return score
}

// v3LimitUpGene (max 5).
func v3LimitUpGene(w *indicator.Window) float64 {
	switch ups := w.LimitUpCount(5); {
	case ups >= 2:
		return 5
	case ups >= 1:
		return 3
	default:
		return 0
	}
}

// v3Synergy picks at most one named combo, 0-25.
func v3Synergy(w *indicator.Window, macd macdState, dims map[string]float64) (float64, string) {
	vr := w.VolumeRatio
	pos := w.PricePosition

	switch {
	case pos < 0.3 && vr > 2 && dims["macd_trend"] >= 13 && dims["startup_confirmation"] >= 15:
		return 10, "🔥完美底部启动"
	case w.Close >= w.High60 && vr > 2.5 && w.ChangePct(3) > 5:
		return 8, "⚡强势突破"
	case dims["main_force"] >= 8 && pos < 0.4:
		return 7, "🏦主力建仓完成"
	case dims["technical"] >= 8 && dims["macd_trend"] >= 12:
		return 6, "📊技术共振"
	case dims["limit_up_gene"] >= 3 && vr > 2:
		return 5, "👑龙头启动"
	case w.ChangePct(20) < -15 && w.ChangePct(5) > 3 && w.RSI14 < 35:
		return 5, "🔄超跌反弹"
	default:
		return 0, ""
	}
}

// v3Risk caps the combined penalty at 30.
func v3Risk(w *indicator.Window, cfg V3Config) (float64, []string) {
	penalty := 0.0
	var reasons []string

	if w.PricePosition > 0.7 && w.ChangePct(60) > 50 && w.VolumeRatio > 1.5 && w.ChangePct(5) < 0 {
		penalty += 15
		reasons = append(reasons, "高位派发风险")
	}
	if w.Close < w.MA20*0.97 && w.Close < w.MA60 && w.Hist[len(w.Hist)-1] < 0 {
		penalty += 8
		reasons = append(reasons, "技术破位")
	}
	if w.ConsecutiveDownDays() >= 3 {
		penalty += 5
		reasons = append(reasons, "连续三日下挫")
	}
	if meanAmount(w, 5) < cfg.MinDailyAmount {
		penalty += 2
		reasons = append(reasons, "流动性不足")
	}
	return math.Min(penalty, 30), reasons
}

// v3StopLoss: the tightest of the MA20 support, a fixed 8% stop, and a
// 1.5-ATR stop, floored at -15%.
func v3StopLoss(w *indicator.Window) float64 {
	sl := math.Max(w.MA20*0.98, w.Close*0.92)
	sl = math.Max(sl, w.Close-1.5*w.ATR14)
	floor := w.Close * 0.85
	if sl < floor {
		sl = floor
	}
	// A support level above the current price is not a usable stop.
	if sl >= w.Close {
		sl = w.Close * 0.92
	}
	return sl
}

func v3TakeProfit(w *indicator.Window) float64 {
	switch {
	case w.PricePosition < 0.3:
		return w.Close * 1.15
	case w.PricePosition < 0.5:
		return w.Close * 1.12
	default:
		return w.Close * 1.08
	}
}

func meanAmount(w *indicator.Window, n int) float64 {
	if len(w.Bars) < n || n <= 0 {
		return 0
	}
	sum := 0.0
	for _, b := range w.Bars[len(w.Bars)-n:] {
		sum += b.Amount
	}
	return sum / float64(n)
}
