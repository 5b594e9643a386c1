package rebalance

import "sort"

// SizingConfig bounds position sizing.
type SizingConfig struct {
	KellyFraction     float64
	MaxSinglePosition float64
	MaxTotalPosition  float64
}

// DefaultSizingConfig keeps half-Kelly with a 25% single-name cap and a 20%
// cash reserve.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		KellyFraction:     0.5,
		MaxSinglePosition: 0.25,
		MaxTotalPosition:  0.80,
	}
}

// KellyPosition returns the fractional-Kelly position for the given win rate
// and profit/loss ratio, clamped to [0, MaxSinglePosition].
func KellyPosition(winRate, profitLossRatio float64, cfg SizingConfig) float64 {
	if profitLossRatio <= 0 {
		return 0
	}
	b := profitLossRatio
	p := winRate
	q := 1 - p
	f := (b*p - q) / b
	f *= cfg.KellyFraction
	if f < 0 {
		return 0
	}
	if f > cfg.MaxSinglePosition {
		return cfg.MaxSinglePosition
	}
	return f
}

var baseByStars = map[int]float64{1: 0.05, 2: 0.10, 3: 0.15, 4: 0.20, 5: 0.25}

// ScorePosition is the score-based fallback when no win-rate estimate is
// available: a star-tier base scaled by score quality.
func ScorePosition(score float64, stars int, cfg SizingConfig) float64 {
	base, ok := baseByStars[stars]
	if !ok {
		base = 0.05
	}
	var mult float64
	switch {
	case score >= 95:
		mult = 1.1
	case score >= 85:
		mult = 1.05
	case score >= 65:
		mult = 1.0
	default:
		mult = 0.9
	}
	pos := base * mult
	if pos > cfg.MaxSinglePosition {
		pos = cfg.MaxSinglePosition
	}
	return pos
}

// Allocation is one slot of a portfolio allocation.
type Allocation struct {
	TsCode   string  `json:"ts_code"`
	Score    float64 `json:"score"`
	Position float64 `json:"position"`
}

// AllocatePortfolio assigns positions in score-descending order until the
// total cap is reached; the last slot is reduced to fit the remaining cash
// and later slots get zero.
func AllocatePortfolio(signals []Signal, cfg SizingConfig) []Allocation {
	sorted := append([]Signal(nil), signals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	remaining := cfg.MaxTotalPosition
	out := make([]Allocation, 0, len(sorted))
	for _, s := range sorted {
		want := ScorePosition(s.Score, s.Stars, cfg)
		if want > remaining {
			want = remaining
		}
		out = append(out, Allocation{TsCode: s.TsCode, Score: s.Score, Position: want})
		remaining -= want
	}
	return out
}
