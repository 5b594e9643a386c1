package scoring

import (
	"math"

	"ashare-quant/internal/indicator"
	"ashare-quant/pkg/common"
)

// ScoreV4 is the "lurking" scorer: it looks for stocks still consolidating at
// the bottom, before the startup V3 hunts. Eight dimensions sum to 100; the
// synergy bonus is an additive sum of small combos capped at 10, and risk
// penalties are capped at 30.
func ScoreV4(in Input) Result {
	w, failed := gate(in, common.VariantV4)
	if failed != nil {
		return *failed
	}
	cfg := in.config().V4

	macd := readMACD(w, cfg.BrewingThreshold)

	dims := map[string]float64{
		"lurking_value":        v4LurkingValue(w, macd),
		"bottom_feature":       v4BottomFeature(w),
		"volume_price":         v3VolumePrice(w),
		"macd_trend":           scoreMACDTrend(macd),
		"ma_trend":             v3MATrend(w),
		"main_force":           v3MainForce(w),
		"startup_confirmation": v4StartupConfirmation(w),
		"limit_up_gene":        v3LimitUpGene(w),
	}

	base := 0.0
	for _, v := range dims {
		base += v
	}

	bonus, combo := v4Synergy(w, macd, dims)
	penalty, reasons := v4Risk(w)

	r := Result{
		TsCode:        in.TsCode,
		Variant:       common.VariantV4,
		Success:       true,
		Score:         clampScore(base, bonus, penalty),
		Dimensions:    dims,
		SynergyBonus:  bonus,
		ComboType:     combo,
		RiskPenalty:   penalty,
		RiskReasons:   reasons,
		PricePosition: w.PricePosition,
	}
	r.StopLoss = v4StopLoss(w)
	r.TakeProfit = v4TakeProfit(w)
	applyRating(&r, [4]float64{85, 75, 65, 55})
	return r
}

// v4LurkingValue (max 20): consolidation at the bottom with quiet volume,
// MACD brewing below zero, and converged moving averages.
func v4LurkingValue(w *indicator.Window, macd macdState) float64 {
	score := 0.0

	if w.PricePosition < 0.3 && math.Abs(w.ChangePct(10)) < 5 {
		score += 6
	}
	if w.VolumeRatio >= 1.3 && w.VolumeRatio <= 2.0 {
		score += 6
	}
	// Brewing: both lines below zero with a small positive histogram.
	if macd.dif < 0 && macd.dea < 0 && macd.hist > 0 && macd.hist < w.Close*0.005 {
		score += 4
	}
	mas := []float64{w.MA5, w.MA10, w.MA20}
	maMax, maMin := mas[0], mas[0]
	avg := 0.0
	for _, m := range mas {
		maMax = math.Max(maMax, m)
		maMin = math.Min(maMin, m)
		avg += m
	}
	avg /= 3
	if avg > 0 && (maMax-maMin)/avg < 0.02 {
		score += 4
	}
	return score
}

// v4BottomFeature (max 20): no credit above the 40% position.
func v4BottomFeature(w *indicator.Window) float64 {
	score := 0.0
	switch pos := w.PricePosition; {
	case pos < 0.2:
		score += 10
	case pos < 0.3:
		score += 8
	case pos < 0.4:
		score += 5
	}
	if w.Drawdown60 > 0.25 && math.Abs(w.ChangePct(5)) < 2 {
		score += 6
	}
	if w.Volatility20 < 0.02 {
		score += 4
	}
	return math.Min(score, 20)
}

// v4StartupConfirmation (max 5): early startup hints score, but a move that
// has already run is penalized to zero.
func v4StartupConfirmation(w *indicator.Window) float64 {
	if w.ChangePct(3) > 5 && w.VolumeRatio > 2 {
		return 0 // already started, no longer lurking
	}
	score := 0.0
	if w.Close > w.MA20 {
		score += 3
	}
	if w.VolumeRatio > 1.2 && w.ChangePct(3) > 0 {
		score += 2
	}
	return score
}

// v4Synergy sums eight small combos, capped at 10. The dominant combo names
// the result.
func v4Synergy(w *indicator.Window, macd macdState, dims map[string]float64) (float64, string) {
	total := 0.0
	combo := ""
	add := func(points float64, name string) {
		total += points
		if combo == "" {
			combo = name
		}
	}

	if dims["lurking_value"] >= 15 && dims["bottom_feature"] >= 14 {
		add(3, "💎完美潜伏")
	}
	if dims["main_force"] >= 8 {
		add(2, "🏦主力吸筹")
	}
	if macd.converging {
		add(2, "📈MACD蓄势")
	}
	if dims["lurking_value"] >= 4 && w.Volatility20 < 0.02 {
		add(1, "🧲波动收敛")
	}
	if w.VolumeRatio < 1.0 && math.Abs(w.ChangePct(5)) < 2 && w.PricePosition < 0.3 {
		add(2, "🛡缩量企稳")
	}
	if w.PricePosition < 0.3 && w.VolumeRatio >= 1.3 && w.VolumeRatio <= 2.0 {
		add(2, "🔋底部温和放量")
	}
	if w.Drawdown60 > 0.25 && math.Abs(w.ChangePct(5)) < 2 {
		add(2, "🔄超跌企稳")
	}
	if w.MA5 > w.MA10 && w.PricePosition < 0.35 {
		add(2, "🌱低位初升")
	}

	return math.Min(total, 10), combo
}

// v4Risk caps the combined penalty at 30.
func v4Risk(w *indicator.Window) (float64, []string) {
	penalty := 0.0
	var reasons []string

	switch pos := w.PricePosition; {
	case pos >= 0.8:
		penalty += 12
		reasons = append(reasons, "极高位风险")
	case pos >= 0.7:
		penalty += 8
		reasons = append(reasons, "高位风险")
	case pos >= 0.6:
		penalty += 5
		reasons = append(reasons, "偏高位置")
	case pos >= 0.5:
		penalty += 3
		reasons = append(reasons, "中高位置")
	}

	switch chg5 := w.ChangePct(5); {
	case chg5 > 15:
		penalty += 6
		reasons = append(reasons, "短期暴涨")
	case chg5 > 10:
		penalty += 4
		reasons = append(reasons, "短期急涨")
	}

	switch downs := w.LimitDownCount(10); {
	case downs >= 2:
		penalty += 8
		reasons = append(reasons, "近期多次跌停")
	case downs >= 1:
		penalty += 5
		reasons = append(reasons, "近期跌停")
	}

	switch vol := w.Volatility20; {
	case vol > 0.08:
		penalty += 5
		reasons = append(reasons, "波动过大")
	case vol > 0.06:
		penalty += 3
		reasons = append(reasons, "波动偏大")
	}

	if w.Close < w.MA60 {
		penalty += 5
		reasons = append(reasons, "跌破60日线")
	}
	if w.ChangePct(5) < -3 && w.VolumeRatio < 0.8 {
		penalty += 4
		reasons = append(reasons, "缩量下跌")
	}

	return math.Min(penalty, 30), reasons
}

// v4StopLoss combines a position-dependent percent stop with the MA support
// and the 60-day low, clamped to [-10%, -3%] of the current price.
func v4StopLoss(w *indicator.Window) float64 {
	var pct float64
	switch {
	case w.PricePosition < 0.3:
		pct = 0.07
	case w.PricePosition < 0.5:
		pct = 0.06
	case w.PricePosition < 0.7:
		pct = 0.05
	default:
		pct = 0.04
	}
	sl := w.Close * (1 - pct)
	sl = math.Max(sl, math.Max(w.MA20, w.MA60)*0.97)
	sl = math.Max(sl, w.Low60*1.02)

	upper := w.Close * 0.97
	lower := w.Close * 0.90
	if sl > upper {
		sl = upper
	}
	if sl < lower {
		sl = lower
	}
	return sl
}

func v4TakeProfit(w *indicator.Window) float64 {
	switch {
	case w.PricePosition < 0.3:
		return w.Close * 1.10
	case w.PricePosition < 0.5:
		return w.Close * 1.08
	case w.PricePosition < 0.7:
		return w.Close * 1.06
	default:
		return w.Close * 1.05
	}
}
