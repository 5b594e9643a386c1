package evolution

import (
	"context"
	"math"
	"sync"

	"ashare-quant/internal/backtest"
	"ashare-quant/internal/entity"
	"ashare-quant/pkg/common"
)

// GridResult is one evaluated grid point.
type GridResult struct {
	Params backtest.Params `json:"params"`
	Stats  backtest.Stats  `json:"stats"`
	Score  float64         `json:"score"`
}

// compositeScore ranks one backtest outcome. Sharpe dominates; drawdown is
// the only negative term.
func compositeScore(s backtest.Stats) float64 {
	return 1.5*s.Sharpe +
		0.12*s.WeightedAvgReturn +
		0.08*s.AvgReturn +
		0.02*s.WinRate -
		0.05*math.Abs(s.MaxDrawdown)
}

type gridAxes struct {
	thresholds []float64
	holdDays   []int
	stopLoss   []float64
	takeProfit []float64
	sampleSize int
}

// variantGrid enumerates the cartesian search space for one variant. The
// short-horizon variants trade faster and get tighter exits and a larger
// sample; the deep-scan variants get a smaller one.
func variantGrid(variant string, seed int64) []backtest.Params {
	var axes gridAxes
	switch variant {
	case common.VariantV3:
		axes = gridAxes{
			thresholds: []float64{60, 65, 70, 75},
			holdDays:   []int{5, 10, 15},
			stopLoss:   []float64{-0.05, -0.08},
			takeProfit: []float64{0.10, 0.15},
			sampleSize: 800,
		}
	case common.VariantV4:
		axes = gridAxes{
			thresholds: []float64{55, 60, 65, 70},
			holdDays:   []int{10, 15, 20},
			stopLoss:   []float64{-0.06, -0.08},
			takeProfit: []float64{0.08, 0.12},
			sampleSize: 800,
		}
	case common.VariantV6:
		axes = gridAxes{
			thresholds: []float64{60, 65, 70},
			holdDays:   []int{3, 5, 8},
			stopLoss:   []float64{-0.04, -0.05},
			takeProfit: []float64{0.06, 0.08},
			sampleSize: 1200,
		}
	case common.VariantV7:
		axes = gridAxes{
			thresholds: []float64{60, 70, 80},
			holdDays:   []int{5, 10, 15},
			stopLoss:   []float64{-0.05, -0.08},
			takeProfit: []float64{0.10, 0.15},
			sampleSize: 400,
		}
	case common.VariantV8:
		axes = gridAxes{
			thresholds: []float64{45, 55, 65},
			holdDays:   []int{5, 10, 15},
			stopLoss:   []float64{-0.05, -0.07},
			takeProfit: []float64{0.10, 0.15},
			sampleSize: 600,
		}
	default:
		return nil
	}

	var grid []backtest.Params
	for _, th := range axes.thresholds {
		for _, hold := range axes.holdDays {
			for _, sl := range axes.stopLoss {
				for _, tp := range axes.takeProfit {
					grid = append(grid, backtest.Params{
						Variant:        variant,
						ScoreThreshold: th,
						MaxHoldingDays: hold,
						StopLossPct:    sl,
						TakeProfitPct:  tp,
						SampleSize:     axes.sampleSize,
						Seed:           seed,
					})
				}
			}
		}
	}
	return grid
}

// searchVariant evaluates every grid point on a bounded worker pool and
// returns the full history plus the index of the best point by composite
// score. Returns bestIdx -1 for an empty grid or a cancelled context.
func searchVariant(ctx context.Context, data map[string][]entity.DailyBar, eval backtest.Evaluator, grid []backtest.Params, workers int) ([]GridResult, int) {
	if workers < 1 {
		workers = 1
	}
	results := make([]GridResult, len(grid))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				stats, _ := backtest.Run(data, eval, grid[i])
				results[i] = GridResult{
					Params: grid[i],
					Stats:  stats,
					Score:  compositeScore(stats),
				}
			}
		}()
	}

	done := len(grid)
feed:
	for i := range grid {
		if ctx.Err() != nil {
			done = i
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			done = i
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	results = results[:done]
	bestIdx := -1
	for i, res := range results {
		if res.Stats.TotalSignals == 0 {
			continue
		}
		if bestIdx < 0 || res.Score > results[bestIdx].Score {
			bestIdx = i
		}
	}
	// When nothing traded anywhere, fall back to the highest raw score so a
	// run still records a "best" row with diagnostics attached.
	if bestIdx < 0 && len(results) > 0 {
		bestIdx = 0
		for i := 1; i < len(results); i++ {
			if results[i].Score > results[bestIdx].Score {
				bestIdx = i
			}
		}
	}
	return results, bestIdx
}
