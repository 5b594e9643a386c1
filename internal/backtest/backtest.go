package backtest

import (
	"math/rand"
	"sort"

	"ashare-quant/internal/entity"
	"ashare-quant/internal/scoring"
	"ashare-quant/pkg/common"
)

// Params controls one backtest pass.
//
// StopLossPct and TakeProfitPct are fractions of the entry price (-0.08 is
// an 8% stop); Trade and Stats report returns in percent (8 means 8%).
type Params struct {
	Variant        string  `json:"variant"`
	ScoreThreshold float64 `json:"score_threshold"`
	MaxHoldingDays int     `json:"max_holding_days"`
	StopLossPct    float64 `json:"stop_loss_pct"`   // fraction, negative
	TakeProfitPct  float64 `json:"take_profit_pct"` // fraction, positive

	// SampleSize, when > 0, subsamples the candidate universe with a fixed
	// seed so runs are reproducible bit-for-bit.
	SampleSize int   `json:"sample_size,omitempty"`
	Seed       int64 `json:"seed,omitempty"`

	// Extras carries variant-specific knobs (lookback, turnover floor,
	// market cap bounds) that the evaluator may consume.
	Extras map[string]float64 `json:"extras,omitempty"`
}

// Trade is one simulated round trip. NominalReturn and WeightedReturn are
// in percent.
type Trade struct {
	TsCode         string  `json:"ts_code"`
	EntryDate      string  `json:"entry_date"`
	EntryPrice     float64 `json:"entry_price"`
	ExitDate       string  `json:"exit_date"`
	ExitPrice      float64 `json:"exit_price"`
	HoldingDays    int     `json:"holding_days"`
	ExitReason     string  `json:"exit_reason"`
	PositionSize   float64 `json:"position_size"`
	NominalReturn  float64 `json:"nominal_return"`
	WeightedReturn float64 `json:"weighted_return"`
	ScoreLevel     string  `json:"score_level"`
	Score          float64 `json:"score"`
}

// Evaluator scores one stock's historical window. The window never contains
// the holding period, so evaluators cannot look ahead.
type Evaluator func(tsCode string, bars []entity.DailyBar) scoring.Result

// Run walks every candidate stock once: score at the fixed evaluation point,
// enter at that close, and exit on take-profit, stop-loss, or timeout.
func Run(data map[string][]entity.DailyBar, eval Evaluator, params Params) (Stats, []Trade) {
	minLen := 60 + params.MaxHoldingDays + 1

	codes := make([]string, 0, len(data))
	for code, bars := range data {
		if len(bars) >= minLen {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	if params.SampleSize > 0 && len(codes) > params.SampleSize {
		seed := params.Seed
		if seed == 0 {
			seed = 42
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(codes), func(i, j int) { codes[i], codes[j] = codes[j], codes[i] })
		codes = codes[:params.SampleSize]
		sort.Strings(codes)
	}

	var trades []Trade
	diag := newDiagnostics()

	for _, code := range codes {
		bars := data[code]
		t := len(bars) - params.MaxHoldingDays - 1
		if t < 60 {
			continue
		}

		result := eval(code, bars[:t+1])
		if !result.Success {
			continue
		}
		diag.observe(result.Score)
		if result.Score < params.ScoreThreshold {
			continue
		}

		buy := bars[t].Close
		if buy <= 0 {
			continue
		}

		trade := Trade{
			TsCode:     code,
			EntryDate:  bars[t].TradeDate,
			EntryPrice: buy,
			Score:      result.Score,
			ScoreLevel: scoreLevel(result.Score),
		}

		exited := false
		for i := 1; i <= params.MaxHoldingDays; i++ {
			frac := (bars[t+i].Close - buy) / buy
			if frac >= params.TakeProfitPct {
				trade.exitAt(bars[t+i], i, common.ExitTakeProfit, frac*100)
				exited = true
				break
			}
			if frac <= params.StopLossPct {
				trade.exitAt(bars[t+i], i, common.ExitStopLoss, frac*100)
				exited = true
				break
			}
		}
		if !exited {
			last := bars[t+params.MaxHoldingDays]
			frac := (last.Close - buy) / buy
			trade.exitAt(last, params.MaxHoldingDays, common.ExitTime, frac*100)
		}

		trade.PositionSize = positionSize(result.Score)
		trade.WeightedReturn = trade.NominalReturn * trade.PositionSize
		trades = append(trades, trade)
	}

	stats := aggregate(trades)
	if stats.TotalSignals == 0 {
		stats.Diagnostics = diag.summary()
	}
	return stats, trades
}

func (t *Trade) exitAt(bar entity.DailyBar, day int, reason string, ret float64) {
	t.ExitDate = bar.TradeDate
	t.ExitPrice = bar.Close
	t.HoldingDays = day
	t.ExitReason = reason
	t.NominalReturn = ret
}

// positionSize is the discrete tier policy the driver uses; live rebalancing
// uses the Kelly sizing in the rebalance package instead.
func positionSize(score float64) float64 {
	switch {
	case score >= 80:
		return 0.30
	case score >= 70:
		return 0.25
	default:
		return 0.20
	}
}

func scoreLevel(score float64) string {
	switch {
	case score >= 80:
		return "80+"
	case score >= 70:
		return "70-80"
	case score >= 60:
		return "60-70"
	default:
		return "<60"
	}
}
