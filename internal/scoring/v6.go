package scoring

import (
	"fmt"
	"math"

	"ashare-quant/internal/entity"
	"ashare-quant/internal/indicator"
	"ashare-quant/pkg/common"
)

// ScoreV6 is the short-term "sniper" scorer. It runs a three-stage filter:
// a mandatory gate that rejects weak setups outright, a seven-dimension
// 100-point score, then synergy (max +30) and severe risk penalties (max -60).
func ScoreV6(in Input) Result {
	w, failed := gate(in, common.VariantV6)
	if failed != nil {
		return *failed
	}
	cfg := in.config().V6

	if r := v6Gate(in, w, cfg); r != nil {
		return *r
	}

	marketChg1, marketChg3, marketChg20 := marketChanges(in.MarketBars)

	dims := map[string]float64{
		"money_flow":        v6MoneyFlow(in, w),
		"sector_heat":       v6SectorHeat(in),
		"momentum":          v6Momentum(w),
		"leader":            v6Leader(w),
		"relative_strength": v6RelativeStrength(w, marketChg20),
		"breakthrough":      v6Breakthrough(w),
		"safety_margin":     v6SafetyMargin(w),
	}

	base := 0.0
	for _, v := range dims {
		base += v
	}

	bonus, combo := v6Synergy(w, dims, marketChg3)
	penalty, reasons := v6Risk(w, marketChg1)

	r := Result{
		TsCode:        in.TsCode,
		Variant:       common.VariantV6,
		Success:       true,
		Score:         clampScore(base, bonus, penalty),
		Dimensions:    dims,
		SynergyBonus:  bonus,
		ComboType:     combo,
		RiskPenalty:   penalty,
		RiskReasons:   reasons,
		PricePosition: w.PricePosition,
	}
	r.StopLoss = math.Min(w.Close*0.95, w.Close-1.0*w.ATR14)
	if r.StopLoss < w.Close*0.92 {
		r.StopLoss = w.Close * 0.92
	}
	r.TakeProfit = w.Close * 1.08
	applyRating(&r, [4]float64{85, 75, 65, 55})
	return r
}

// v6Gate is the mandatory stage-one filter; any miss fails the stock with a
// reconstructing reason.
func v6Gate(in Input, w *indicator.Window, cfg V6Config) *Result {
	fail := func(reason string) *Result {
		return &Result{
			TsCode:       in.TsCode,
			Variant:      common.VariantV6,
			Success:      false,
			FilterReason: reason,
		}
	}

	if in.SectorChange3d != nil && *in.SectorChange3d < cfg.MinSectorChange3d {
		return fail(fmt.Sprintf("板块3日跌幅%.1f%%超限", *in.SectorChange3d))
	}
	if in.MoneyFlowNet != nil && *in.MoneyFlowNet <= cfg.MinMoneyFlowNet {
		return fail(fmt.Sprintf("资金净流出%.0f万超限", -*in.MoneyFlowNet))
	}
	if chg3 := w.ChangePct(3); chg3 < cfg.MinStockChange3d {
		return fail(fmt.Sprintf("3日跌幅%.1f%%超限", chg3))
	}
	maxPos := cfg.MaxPricePosition
	if w.LimitUpCount(20) >= 3 {
		maxPos = cfg.MaxPricePositionHot
	}
	if w.PricePosition > maxPos {
		return fail(fmt.Sprintf("价格位置%.0f%%过高", w.PricePosition*100))
	}
	if w.VolumeRatio < cfg.MinVolumeRatio {
		return fail("量能持续萎缩")
	}
	return nil
}

// v6MoneyFlow (max 30): provider money flow when available, otherwise a
// turnover-expansion proxy.
func v6MoneyFlow(in Input, w *indicator.Window) float64 {
	if in.MoneyFlowNet != nil {
		switch net := *in.MoneyFlowNet; {
		case net > 10000:
			return 30
		case net > 5000:
			return 24
		case net > 1000:
			return 18
		case net > 0:
			return 12
		case net > -2000:
			return 6
		default:
			return 0
		}
	}
	// Proxy: rising turnover with rising price.
	recent := meanAmount(w, 3)
	hist := meanAmount(w, 20)
	if hist <= 0 {
		return 12
	}
	ratio := recent / hist
	chg3 := w.ChangePct(3)
	switch {
	case ratio > 1.8 && chg3 > 0:
		return 24
	case ratio > 1.3 && chg3 > 0:
		return 18
	case chg3 > 0:
		return 12
	default:
		return 6
	}
}

// v6SectorHeat (max 25): neutral when no sector context was supplied.
func v6SectorHeat(in Input) float64 {
	if in.SectorChange3d == nil {
		return 10
	}
	switch chg := *in.SectorChange3d; {
	case chg >= 5:
		return 25
	case chg >= 3:
		return 20
	case chg >= 1:
		return 15
	case chg >= 0:
		return 10
	case chg >= -1.5:
		return 5
	default:
		return 0
	}
}

// v6Momentum (max 20).
func v6Momentum(w *indicator.Window) float64 {
	switch chg3 := w.ChangePct(3); {
	case chg3 >= 6:
		return 20
	case chg3 >= 3:
		return 15
	case chg3 >= 1:
		return 10
	case chg3 >= 0:
		return 6
	default:
		return 2
	}
}

// v6Leader (max 10): limit-up history is the leader gene.
func v6Leader(w *indicator.Window) float64 {
	switch ups := w.LimitUpCount(20); {
	case ups >= 3:
		return 10
	case ups >= 2:
		return 7
	case ups >= 1:
		return 4
	default:
		return 0
	}
}

// v6RelativeStrength (max 8): 20-day excess return over the market proxy.
func v6RelativeStrength(w *indicator.Window, marketChg20 float64) float64 {
	excess := w.ChangePct(20) - marketChg20
	switch {
	case excess >= 10:
		return 8
	case excess >= 5:
		return 6
	case excess >= 0:
		return 4
	case excess >= -5:
		return 2
	default:
		return 0
	}
}

// v6Breakthrough (max 5).
func v6Breakthrough(w *indicator.Window) float64 {
	score := 0.0
	if w.Close > w.MA20 && w.Close > w.MA60 {
		score += 3
	}
	if w.Close >= w.High60 {
		score += 2
	}
	return score
}

// v6SafetyMargin (max 2).
func v6SafetyMargin(w *indicator.Window) float64 {
	switch {
	case w.PricePosition < 0.5:
		return 2
	case w.PricePosition < 0.7:
		return 1
	default:
		return 0
	}
}

// v6Synergy sums five combos, capped at 30.
func v6Synergy(w *indicator.Window, dims map[string]float64, marketChg3 float64) (float64, string) {
	total := 0.0
	combo := ""
	add := func(points float64, name string) {
		total += points
		if combo == "" {
			combo = name
		}
	}

	if dims["money_flow"] >= 24 && dims["sector_heat"] >= 20 {
		add(10, "🎯资金板块共振")
	}
	if dims["leader"] >= 7 && dims["momentum"] >= 15 {
		add(8, "🚀强势领涨")
	}
	if dims["relative_strength"] >= 8 && marketChg3 < 0 {
		add(6, "💪逆市走强")
	}
	if dims["breakthrough"] >= 5 && w.VolumeRatio > 1.5 {
		add(4, "📈放量突破")
	}
	if dims["safety_margin"] >= 2 && dims["momentum"] >= 10 {
		add(2, "🛡低位启动")
	}
	return math.Min(total, 30), combo
}

// v6Risk caps the combined penalty at 60. The caps are deliberately severe:
// the sniper chases momentum and pays for it in blowup risk.
func v6Risk(w *indicator.Window, marketChg1 float64) (float64, []string) {
	penalty := 0.0
	var reasons []string

	if w.PricePosition >= 0.95 {
		penalty += 25
		reasons = append(reasons, "极限高位")
	}
	if w.ChangePct(3) > 35 {
		penalty += 20
		reasons = append(reasons, "三日暴涨")
	}
	if n := len(w.Bars); n >= 2 &&
		w.Bars[n-1].PctChg >= indicator.LimitThreshold &&
		w.Bars[n-2].PctChg >= indicator.LimitThreshold {
		penalty += 15
		reasons = append(reasons, "连板高危")
	}
	if marketChg1 < -3 {
		penalty += 15
		reasons = append(reasons, "大盘暴跌")
	}
	return math.Min(penalty, 60), reasons
}

// marketChanges extracts 1/3/20-day changes from the market proxy window;
// zeros when no proxy bars were supplied.
func marketChanges(bars []entity.DailyBar) (chg1, chg3, chg20 float64) {
	if len(bars) < 21 {
		return 0, 0, 0
	}
	last := bars[len(bars)-1].Close
	pct := func(n int) float64 {
		from := bars[len(bars)-n-1].Close
		if from == 0 {
			return 0
		}
		return (last - from) / from * 100
	}
	return pct(1), pct(3), pct(20)
}
