package scoring

import (
	"fmt"
	"sort"

	"ashare-quant/internal/entity"
	"ashare-quant/internal/indicator"
	"ashare-quant/pkg/common"
)

// Input carries everything a scorer may consume for one stock at one
// evaluation date. Cross-sectional context fields are optional; their absence
// degrades the related dimensions to neutral instead of failing.
type Input struct {
	TsCode   string
	Name     string
	Industry string
	IsST     bool

	// Bars sorted ascending by date; at least 60 required.
	Bars []entity.DailyBar

	// SectorChange3d is the mean 3-day change of the stock's industry bucket.
	SectorChange3d *float64
	// MoneyFlowNet is the stock's recent net main-force inflow, in 万元.
	MoneyFlowNet *float64
	// FundHoldRatio is the aggregate reported fund holding ratio, in percent.
	FundHoldRatio *float64
	// MarketBars is the market proxy window for regime detection.
	MarketBars []entity.DailyBar

	Config *Config
}

// Result is the scoring outcome for one stock.
type Result struct {
	TsCode  string  `json:"ts_code"`
	Variant string  `json:"variant"`
	Success bool    `json:"success"`
	Score   float64 `json:"score"`

	// FilterReason explains a Success=false result.
	FilterReason string `json:"filter_reason,omitempty"`

	Dimensions   map[string]float64 `json:"dimensions,omitempty"`
	FactorGrades map[string]string  `json:"factor_grades,omitempty"`
	SynergyBonus float64            `json:"synergy_bonus"`
	ComboType    string             `json:"combo_type,omitempty"`
	RiskPenalty  float64            `json:"risk_penalty"`
	RiskReasons  []string           `json:"risk_reasons,omitempty"`

	StopLoss      float64 `json:"stop_loss"`
	TakeProfit    float64 `json:"take_profit"`
	PricePosition float64 `json:"price_position"`

	Stars             int     `json:"stars"`
	Grade             string  `json:"grade"`
	SuggestedPosition float64 `json:"suggested_position"`

	// RegimeMultiplier is populated by variants that consult the market
	// regime filter (1.0 otherwise).
	RegimeMultiplier float64 `json:"regime_multiplier,omitempty"`
}

// Scorer evaluates one stock window.
type Scorer func(Input) Result

var registry = map[string]Scorer{
	common.VariantV3: ScoreV3,
	common.VariantV4: ScoreV4,
	common.VariantV6: ScoreV6,
	common.VariantV7: ScoreV7,
	common.VariantV8: ScoreV8,
}

// Get returns the scorer registered under the given variant name.
func Get(variant string) (Scorer, error) {
	s, ok := registry[variant]
	if !ok {
		return nil, fmt.Errorf("scoring: unknown variant %q", variant)
	}
	return s, nil
}

// Variants lists the registered variant names, sorted.
func Variants() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// gate applies the hard filters shared by every variant. It returns the
// indicator window on success, or a zero-score failure result.
func gate(in Input, variant string) (*indicator.Window, *Result) {
	fail := func(reason string) *Result {
		return &Result{TsCode: in.TsCode, Variant: variant, Success: false, FilterReason: reason}
	}
	if in.IsST || entity.STFromName(in.Name) {
		return nil, fail("ST股票")
	}
	w, err := indicator.Compute(in.Bars)
	if err != nil {
		return nil, fail("历史数据不足60天")
	}
	return w, nil
}

func clampScore(base, bonus, penalty float64) float64 {
	score := base + bonus - penalty
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// starsFor maps a score onto a 1-5 star rating given four descending
// thresholds for 5/4/3/2 stars.
func starsFor(score float64, thresholds [4]float64) int {
	switch {
	case score >= thresholds[0]:
		return 5
	case score >= thresholds[1]:
		return 4
	case score >= thresholds[2]:
		return 3
	case score >= thresholds[3]:
		return 2
	default:
		return 1
	}
}

var positionByStars = map[int]float64{5: 0.25, 4: 0.20, 3: 0.15, 2: 0.10, 1: 0.05}

var gradeByStars = map[int]string{
	5: "强烈推荐",
	4: "推荐",
	3: "关注",
	2: "观望",
	1: "回避",
}

func applyRating(r *Result, thresholds [4]float64) {
	r.Stars = starsFor(r.Score, thresholds)
	r.Grade = gradeByStars[r.Stars]
	r.SuggestedPosition = positionByStars[r.Stars]
}
