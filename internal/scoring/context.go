package scoring

import (
	"context"
	"time"

	"ashare-quant/internal/entity"
	"ashare-quant/internal/repository"
	"ashare-quant/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

// ContextProvider supplies the optional cross-sectional inputs for scoring:
// per-industry 3-day changes and per-stock fund holdings. Lookups are
// memoized per (trade_date, key) for the duration of one run; the TTL only
// matters for long-lived serve processes.
type ContextProvider struct {
	flows repository.FlowRepository
	cache *gocache.Cache
	log   *logger.Logger
}

const contextCacheTTL = 15 * time.Minute

func NewContextProvider(flows repository.FlowRepository, log *logger.Logger) *ContextProvider {
	return &ContextProvider{
		flows: flows,
		cache: gocache.New(contextCacheTTL, 2*contextCacheTTL),
		log:   log,
	}
}

// BuildSectorChanges computes the mean 3-day change per industry bucket from
// the loaded histories and memoizes the result under tradeDate.
func (p *ContextProvider) BuildSectorChanges(tradeDate string, histories map[string][]entity.DailyBar, industries map[string]string) {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for tsCode, bars := range histories {
		industry := industries[tsCode]
		if industry == "" || len(bars) < 4 {
			continue
		}
		from := bars[len(bars)-4].Close
		if from == 0 {
			continue
		}
		chg := (bars[len(bars)-1].Close - from) / from * 100
		sums[industry] += chg
		counts[industry]++
	}

	changes := make(map[string]float64, len(sums))
	for industry, sum := range sums {
		changes[industry] = sum / float64(counts[industry])
	}
	p.cache.Set("sector:"+tradeDate, changes, gocache.DefaultExpiration)
	p.log.Debug("sector context built",
		logger.StringField("trade_date", tradeDate),
		logger.IntField("industries", len(changes)))
}

// SectorChange3d returns the memoized industry change, or nil when the
// context was never built or the industry is unknown.
func (p *ContextProvider) SectorChange3d(tradeDate, industry string) *float64 {
	v, ok := p.cache.Get("sector:" + tradeDate)
	if !ok {
		return nil
	}
	changes := v.(map[string]float64)
	chg, ok := changes[industry]
	if !ok {
		return nil
	}
	return &chg
}

// FundHoldRatio returns the aggregate reported fund holding ratio for a
// stock, memoized per stock. A missing table or empty result is nil, never
// an error: fund data is a bonus input.
func (p *ContextProvider) FundHoldRatio(ctx context.Context, tsCode string) *float64 {
	key := "fund:" + tsCode
	if v, ok := p.cache.Get(key); ok {
		return v.(*float64)
	}

	var result *float64
	if p.flows != nil {
		rows, err := p.flows.GetFundHoldings(ctx, tsCode)
		if err != nil {
			p.log.Debug("fund holdings lookup failed", logger.StringField("ts_code", tsCode), logger.ErrorField(err))
		} else if len(rows) > 0 {
			total := 0.0
			for _, r := range rows {
				total += r.HoldRatio
			}
			result = &total
		}
	}
	p.cache.Set(key, result, gocache.DefaultExpiration)
	return result
}
