package scoring

import (
	"math"

	"ashare-quant/internal/entity"
	"ashare-quant/internal/indicator"
	"ashare-quant/pkg/common"
)

// ScoreV8 is the quant-evolution scorer. It blends the V7 base score (10%)
// with ten advanced factors (90%), then applies a soft market-regime
// multiplier instead of a hard veto.
func ScoreV8(in Input) Result {
	w, failed := gate(in, common.VariantV8)
	if failed != nil {
		return *failed
	}
	cfg := in.config().V8

	base := ScoreV7(in)
	if !base.Success {
		base.Variant = common.VariantV8
		return base
	}

	factors, grades := v8Factors(in, w, cfg)
	factorScore := 0.0
	for _, v := range factors {
		factorScore += v
	}

	blended := 0.1*base.Score + 0.9*factorScore

	multiplier := 1.0
	if len(in.MarketBars) >= indicator.MinBars {
		if regime, err := DetectRegime(in.MarketBars); err == nil {
			multiplier = softMultiplier(regime.Multiplier)
		}
	}

	dims := make(map[string]float64, len(factors)+1)
	for k, v := range factors {
		dims[k] = v
	}
	dims["v7_base"] = base.Score

	r := Result{
		TsCode:           in.TsCode,
		Variant:          common.VariantV8,
		Success:          true,
		Score:            math.Min(blended*multiplier, 100),
		Dimensions:       dims,
		FactorGrades:     grades,
		RiskPenalty:      base.RiskPenalty,
		RiskReasons:      base.RiskReasons,
		PricePosition:    w.PricePosition,
		RegimeMultiplier: multiplier,
	}
	r.StopLoss = base.StopLoss
	r.TakeProfit = base.TakeProfit
	applyRating(&r, [4]float64{75, 65, 55, 45})
	return r
}

// v8Factors computes the ten advanced factors. Every factor is bounded and
// carries a coarse grade so a report can explain the composite.
func v8Factors(in Input, w *indicator.Window, cfg V8Config) (map[string]float64, map[string]string) {
	factors := make(map[string]float64, 10)
	grades := make(map[string]string, 10)

	set := func(name string, score, strong, mid float64) {
		factors[name] = score
		switch {
		case score >= strong:
			grades[name] = "强"
		case score >= mid:
			grades[name] = "中"
		default:
			grades[name] = "弱"
		}
	}

	// 1. Relative strength momentum (12).
	_, _, marketChg20 := marketChanges(in.MarketBars)
	excess := w.ChangePct(20) - marketChg20
	rs := 2.0
	switch {
	case excess >= 15:
		rs = 12
	case excess >= 8:
		rs = 9
	case excess >= 0:
		rs = 6
	}
	set("rs_momentum", rs, 9, 6)

	// 2. Momentum acceleration (10): recent pace vs the 20-day pace.
	pace5 := w.ChangePct(5) / 5
	pace20 := w.ChangePct(20) / 20
	accel := 3.0
	if pace5 > pace20 && pace5 > 0 {
		accel = 10
	} else if pace5 > 0 {
		accel = 6
	}
	set("momentum_acceleration", accel, 10, 6)

	// 3. Persistence (10): fresh 60-day highs inside the last 10 bars.
	closes := w.Closes()
	newHighs := 0
	for i := len(closes) - 10; i < len(closes); i++ {
		if i < 60 {
			continue
		}
		high, _ := window60High(closes, i)
		if closes[i] >= high {
			newHighs++
		}
	}
	pers := 0.0
	switch {
	case newHighs >= 3:
		pers = 10
	case newHighs >= 1:
		pers = 6
	case w.ChangePct(10) > 0:
		pers = 2
	}
	set("persistence", pers, 10, 6)

	// 4. OBV energy (10): accumulation when OBV rises faster than price.
	obvSlope := obvChange(w.Bars, 20)
	obv := 2.0
	chg20 := w.ChangePct(20)
	switch {
	case obvSlope > 0 && chg20 > 0:
		obv = 10
	case obvSlope > 0 && math.Abs(chg20) < 3:
		obv = 7
	}
	set("obv_energy", obv, 10, 7)

	// 5. Chip concentration proxy (8): tight 20-day range.
	high20, low20 := rangeOfCloses(closes, 20)
	conc := 2.0
	if low20 > 0 {
		switch spread := (high20 - low20) / low20; {
		case spread < 0.10:
			conc = 8
		case spread < 0.15:
			conc = 5
		}
	}
	set("chip_concentration", conc, 8, 5)

	// 6. Turnover momentum (8): healthy, not frantic, volume expansion.
	turn := 2.0
	switch vr := w.VolumeRatio; {
	case vr >= 1.2 && vr <= 2.5:
		turn = 8
	case vr >= 0.9:
		turn = 5
	}
	set("turnover_momentum", turn, 8, 5)

	// 7. Valuation repair (8): deep drawdown that has started recovering.
	rep := 2.0
	switch {
	case w.Drawdown60 > 0.30 && w.ChangePct(10) > 0:
		rep = 8
	case w.Drawdown60 > 0.20 && w.ChangePct(10) > 0:
		rep = 5
	}
	set("valuation_repair", rep, 8, 5)

	// 8. Capital flow strength (12): provider flow, fund holdings, or an
	// up/down volume proxy.
	flow := v8CapitalFlow(in, w)
	set("capital_flow", flow, 9, 5)

	// 9. Sector resonance (10).
	sector := 5.0
	if in.SectorChange3d != nil {
		switch chg := *in.SectorChange3d; {
		case chg >= 3:
			sector = 10
		case chg >= 1:
			sector = 7
		case chg >= 0:
			sector = 5
		case chg >= -2:
			sector = 2
		default:
			sector = 0
		}
	}
	set("sector_resonance", sector, 7, 5)

	// 10. Smart money gradual rise (12): a stealthy climb inside the
	// configured window without volume blowout.
	smart := 2.0
	chgW := w.ChangePct(cfg.SmartMoneyWindow)
	volGrow := smartMoneyVolGrowth(w, cfg.SmartMoneyWindow)
	if chgW >= cfg.SmartMoneyMinRisePct && chgW <= cfg.SmartMoneyMaxRisePct {
		if volGrow <= cfg.SmartMoneyMaxVolGrow {
			smart = 12
		} else {
			smart = 6
		}
	} else if chgW > 0 && volGrow <= cfg.SmartMoneyVolShrink {
		smart = 6
	}
	set("smart_money", smart, 12, 6)

	return factors, grades
}

func v8CapitalFlow(in Input, w *indicator.Window) float64 {
	if in.MoneyFlowNet != nil {
		switch net := *in.MoneyFlowNet; {
		case net > 8000:
			return 12
		case net > 2000:
			return 9
		case net > 0:
			return 6
		default:
			return 2
		}
	}
	score := 0.0
	var upVol, downVol float64
	for _, b := range w.Bars[len(w.Bars)-10:] {
		if b.PctChg > 0 {
			upVol += b.Vol
		} else {
			downVol += b.Vol
		}
	}
	switch {
	case downVol > 0 && upVol/downVol > 1.5:
		score = 10
	case downVol > 0 && upVol/downVol > 1.2:
		score = 7
	case downVol > 0 && upVol/downVol > 1.0:
		score = 5
	default:
		score = 2
	}
	if in.FundHoldRatio != nil && *in.FundHoldRatio > 2 {
		score = math.Max(score, 8)
	}
	return math.Min(score, 12)
}

// smartMoneyVolGrowth compares volume in the last third of the window to the
// first two thirds.
func smartMoneyVolGrowth(w *indicator.Window, window int) float64 {
	if len(w.Bars) < window || window < 6 {
		return 1
	}
	bars := w.Bars[len(w.Bars)-window:]
	cut := window * 2 / 3
	var early, late float64
	for i, b := range bars {
		if i < cut {
			early += b.Vol
		} else {
			late += b.Vol
		}
	}
	early /= float64(cut)
	late /= float64(window - cut)
	if early == 0 {
		return 1
	}
	return late / early
}

func window60High(closes []float64, end int) (high, low float64) {
	start := end - 59
	if start < 0 {
		start = 0
	}
	high, low = closes[start], closes[start]
	for _, c := range closes[start : end+1] {
		high = math.Max(high, c)
		low = math.Min(low, c)
	}
	return high, low
}

func rangeOfCloses(closes []float64, n int) (high, low float64) {
	start := len(closes) - n
	if start < 0 {
		start = 0
	}
	high, low = closes[start], closes[start]
	for _, c := range closes[start:] {
		high = math.Max(high, c)
		low = math.Min(low, c)
	}
	return high, low
}

// obvChange is the on-balance-volume delta over the last n bars.
func obvChange(bars []entity.DailyBar, n int) float64 {
	start := len(bars) - n
	if start < 1 {
		start = 1
	}
	obv := 0.0
	for i := start; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv += bars[i].Vol
		case bars[i].Close < bars[i-1].Close:
			obv -= bars[i].Vol
		}
	}
	return obv
}
