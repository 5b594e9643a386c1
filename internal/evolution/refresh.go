package evolution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"ashare-quant/internal/entity"
	"ashare-quant/internal/repository"
	"ashare-quant/pkg/common"
	"ashare-quant/pkg/logger"
	"ashare-quant/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// RefreshReport summarizes one data refresh pass. Per-day failures never
// abort the refresh; they are counted and reported.
type RefreshReport struct {
	DaysRequested int   `json:"days_requested"`
	DaysUpdated   int   `json:"days_updated"`
	RowsUpserted  int64 `json:"rows_upserted"`
	Failures      int   `json:"failures"`
	StocksUpdated int   `json:"stocks_updated"`
}

// refresh pulls the last UpdateDays trading days from the provider and
// upserts them into the store, then snapshots market values and the optional
// fund-flow series.
func (r *Runner) refresh(ctx context.Context) (*RefreshReport, error) {
	now := utils.TimeNowCST()
	endDate := utils.FormatTradeDate(now)
	// Calendar days overshoot trading days; fetch a wide window and keep the
	// tail.
	startDate := utils.FormatTradeDate(now.AddDate(0, 0, -r.cfg.Evolution.UpdateDays*2-10))

	dates, err := r.tushare.TradeCalendar(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("evolution: trade calendar: %w", err)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("evolution: empty trade calendar %s..%s", startDate, endDate)
	}
	if len(dates) > r.cfg.Evolution.UpdateDays {
		dates = dates[len(dates)-r.cfg.Evolution.UpdateDays:]
	}

	report := &RefreshReport{DaysRequested: len(dates)}

	stocks, err := r.tushare.StockList(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "stock list refresh failed, keeping stored reference rows",
			logger.ErrorField(err))
	} else {
		if err := r.stocks.UpsertAll(ctx, stocks); err != nil {
			return nil, fmt.Errorf("evolution: upsert stock reference: %w", err)
		}
		report.StocksUpdated = len(stocks)
	}

	var rows, days, failures int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Evolution.MaxWorkers)
	for _, date := range dates {
		date := date
		g.Go(func() error {
			n, err := r.refreshDay(gctx, date)
			if err != nil {
				atomic.AddInt64(&failures, 1)
				r.log.WarnContext(gctx, "day refresh failed",
					logger.StringField("trade_date", date), logger.ErrorField(err))
				return nil
			}
			atomic.AddInt64(&rows, n)
			atomic.AddInt64(&days, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.DaysUpdated = int(days)
	report.RowsUpserted = rows
	report.Failures = int(failures)

	r.refreshMarketValues(ctx, dates[len(dates)-1])
	r.refreshFundPortfolios(ctx)

	r.log.InfoContext(ctx, "data refresh finished",
		logger.IntField("days", report.DaysUpdated),
		logger.Field("rows", report.RowsUpserted),
		logger.IntField("failures", report.Failures))
	return report, nil
}

// refreshDay ingests one trading day: all stock bars, the market proxy bar,
// and the optional flow series.
func (r *Runner) refreshDay(ctx context.Context, tradeDate string) (int64, error) {
	bars, err := r.tushare.DailyByDate(ctx, tradeDate)
	if err != nil {
		if isNoData(err) {
			return 0, nil
		}
		return 0, err
	}

	index, err := r.tushare.IndexDailyByDate(ctx, common.MarketProxyCode, tradeDate)
	if err == nil {
		bars = append(bars, *index)
	} else if !isNoData(err) {
		return 0, err
	}

	n, err := r.bars.BulkUpsert(ctx, bars)
	if err != nil {
		return 0, err
	}

	if flow, err := r.tushare.NorthboundByDate(ctx, tradeDate); err == nil {
		if err := r.flows.UpsertNorthbound(ctx, []entity.NorthboundFlow{*flow}); err != nil {
			r.log.WarnContext(ctx, "northbound upsert failed",
				logger.StringField("trade_date", tradeDate), logger.ErrorField(err))
		}
	} else if !isNoData(err) {
		r.log.DebugContext(ctx, "northbound unavailable",
			logger.StringField("trade_date", tradeDate), logger.ErrorField(err))
	}

	if margin, err := r.tushare.MarginByDate(ctx, tradeDate); err == nil {
		if err := r.flows.UpsertMargin(ctx, []entity.MarginSummary{*margin}); err != nil {
			r.log.WarnContext(ctx, "margin upsert failed",
				logger.StringField("trade_date", tradeDate), logger.ErrorField(err))
		}
	} else if !isNoData(err) {
		r.log.DebugContext(ctx, "margin unavailable",
			logger.StringField("trade_date", tradeDate), logger.ErrorField(err))
	}

	return n, nil
}

func (r *Runner) refreshMarketValues(ctx context.Context, tradeDate string) {
	values, err := r.tushare.DailyBasicByDate(ctx, tradeDate)
	if err != nil {
		r.log.WarnContext(ctx, "market value snapshot failed",
			logger.StringField("trade_date", tradeDate), logger.ErrorField(err))
		return
	}
	updated, err := r.stocks.UpdateMarketValues(ctx, values)
	if err != nil {
		r.log.WarnContext(ctx, "market value update failed", logger.ErrorField(err))
		return
	}
	r.log.InfoContext(ctx, "market values updated", logger.IntField("stocks", updated))
}

// refreshFundPortfolios pulls quarterly holdings for the configured reference
// funds. Skipped when no funds are configured.
func (r *Runner) refreshFundPortfolios(ctx context.Context) {
	refs := strings.TrimSpace(r.cfg.Evolution.FundPortfolioRefs)
	if refs == "" {
		return
	}
	period := fundPeriod(r.cfg.Evolution.FundYear, r.cfg.Evolution.FundQuarter)
	for _, code := range strings.Split(refs, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		rows, err := r.tushare.FundPortfolio(ctx, code, period)
		if err != nil {
			if !isNoData(err) {
				r.log.WarnContext(ctx, "fund portfolio fetch failed",
					logger.StringField("fund", code), logger.ErrorField(err))
			}
			continue
		}
		if err := r.flows.UpsertFundPortfolio(ctx, rows); err != nil {
			r.log.WarnContext(ctx, "fund portfolio upsert failed",
				logger.StringField("fund", code), logger.ErrorField(err))
		}
	}
}

func isNoData(err error) bool {
	return errors.Is(err, repository.ErrNoData)
}

var quarterEnds = map[string]string{"1": "0331", "2": "0630", "3": "0930", "4": "1231"}

// fundPeriod builds the YYYYMMDD quarter-end the provider expects. Falls back
// to the most recent completed quarter when year/quarter are not configured.
func fundPeriod(year, quarter string) string {
	if year != "" && quarterEnds[quarter] != "" {
		return year + quarterEnds[quarter]
	}
	now := utils.TimeNowCST()
	q := (int(now.Month()) - 1) / 3 // completed quarters this year
	if q == 0 {
		return fmt.Sprintf("%d1231", now.Year()-1)
	}
	return fmt.Sprintf("%d%s", now.Year(), quarterEnds[fmt.Sprint(q)])
}
