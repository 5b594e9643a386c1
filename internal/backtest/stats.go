package backtest

import (
	"math"
	"sort"
)

// Stats aggregates one backtest pass. Every aggregate is commutative over
// trades: order of the input never changes the output.
type Stats struct {
	TotalSignals      int     `json:"total_signals"`
	WinRate           float64 `json:"win_rate"`
	AvgReturn         float64 `json:"avg_return"`
	WeightedAvgReturn float64 `json:"weighted_avg_return"`
	MedianReturn      float64 `json:"median_return"`
	MaxReturn         float64 `json:"max_return"`
	MinReturn         float64 `json:"min_return"`
	AvgHoldingDays    float64 `json:"avg_holding_days"`
	Sharpe            float64 `json:"sharpe"`
	MaxDrawdown       float64 `json:"max_drawdown"`

	ExitStats  map[string]int `json:"exit_stats"`
	LevelStats map[string]int `json:"level_stats"`

	// Diagnostics is populated only when no trade cleared the threshold.
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// Diagnostics advises threshold tuning after an empty run.
type Diagnostics struct {
	Evaluated  int         `json:"evaluated"`
	MaxScore   float64     `json:"max_score"`
	AvgScore   float64     `json:"avg_score"`
	TierCounts map[int]int `json:"tier_counts"`
}

const riskFreeRate = 0.03

func aggregate(trades []Trade) Stats {
	stats := Stats{
		ExitStats:  make(map[string]int),
		LevelStats: make(map[string]int),
	}
	if len(trades) == 0 {
		return stats
	}

	stats.TotalSignals = len(trades)
	stats.MaxReturn = trades[0].NominalReturn
	stats.MinReturn = trades[0].NominalReturn

	wins := 0
	var sumRet, sumWeighted, sumDays float64
	returns := make([]float64, 0, len(trades))
	weighted := make([]float64, 0, len(trades))

	for _, t := range trades {
		if t.NominalReturn > 0 {
			wins++
		}
		sumRet += t.NominalReturn
		sumWeighted += t.WeightedReturn
		sumDays += float64(t.HoldingDays)
		stats.MaxReturn = math.Max(stats.MaxReturn, t.NominalReturn)
		stats.MinReturn = math.Min(stats.MinReturn, t.NominalReturn)
		stats.ExitStats[t.ExitReason]++
		stats.LevelStats[t.ScoreLevel]++
		returns = append(returns, t.NominalReturn)
		weighted = append(weighted, t.WeightedReturn)
	}

	n := float64(len(trades))
	stats.WinRate = float64(wins) / n * 100
	stats.AvgReturn = sumRet / n
	stats.WeightedAvgReturn = sumWeighted / n
	stats.AvgHoldingDays = sumDays / n
	stats.MedianReturn = median(returns)
	stats.Sharpe = sharpe(weighted, stats.AvgHoldingDays)
	stats.MaxDrawdown = maxDrawdown(trades)
	return stats
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// sharpe annualizes the per-trade weighted returns by the average holding
// period. Returns 0 when the return series has no spread.
func sharpe(weightedPct []float64, avgHoldingDays float64) float64 {
	if len(weightedPct) < 2 || avgHoldingDays <= 0 {
		return 0
	}
	mean := 0.0
	for _, r := range weightedPct {
		mean += r / 100
	}
	mean /= float64(len(weightedPct))

	variance := 0.0
	for _, r := range weightedPct {
		d := r/100 - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(len(weightedPct)))
	if sd == 0 {
		return 0
	}
	return (mean - riskFreeRate) / sd * math.Sqrt(252/avgHoldingDays)
}

// maxDrawdown compounds the weighted returns into an equity curve and
// reports the deepest peak-to-trough loss in percent. Trades are put in
// canonical order (entry date, then code) first, so the result is the same
// whatever order the trades were produced in.
func maxDrawdown(trades []Trade) float64 {
	ordered := append([]Trade(nil), trades...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].EntryDate != ordered[j].EntryDate {
			return ordered[i].EntryDate < ordered[j].EntryDate
		}
		return ordered[i].TsCode < ordered[j].TsCode
	})

	equity := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, t := range ordered {
		equity *= 1 + t.WeightedReturn/100
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

var diagnosticTiers = []int{50, 60, 65, 70, 75, 80, 85, 90}

type diagnostics struct {
	count    int
	sum      float64
	maxScore float64
	tiers    map[int]int
}

func newDiagnostics() *diagnostics {
	return &diagnostics{tiers: make(map[int]int)}
}

func (d *diagnostics) observe(score float64) {
	d.count++
	d.sum += score
	if score > d.maxScore {
		d.maxScore = score
	}
	for _, tier := range diagnosticTiers {
		if score >= float64(tier) {
			d.tiers[tier]++
		}
	}
}

func (d *diagnostics) summary() *Diagnostics {
	if d.count == 0 {
		return &Diagnostics{TierCounts: d.tiers}
	}
	return &Diagnostics{
		Evaluated:  d.count,
		MaxScore:   d.maxScore,
		AvgScore:   d.sum / float64(d.count),
		TierCounts: d.tiers,
	}
}
