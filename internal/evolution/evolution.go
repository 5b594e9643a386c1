package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ashare-quant/internal/backtest"
	"ashare-quant/internal/config"
	"ashare-quant/internal/entity"
	"ashare-quant/internal/repository"
	"ashare-quant/internal/scoring"
	"ashare-quant/pkg/common"
	"ashare-quant/pkg/logger"
	"ashare-quant/pkg/telegram"
	"ashare-quant/pkg/utils"
)

// Runner executes one end-of-day evolution pass: refresh the store, verify
// freshness, then grid-search every scorer variant and persist the winners.
type Runner struct {
	cfg      *config.Config
	log      *logger.Logger
	tushare  repository.TushareRepository
	bars     repository.DailyBarRepository
	stocks   repository.StockBasicRepository
	flows    repository.FlowRepository
	evo      repository.EvolutionRepository
	notifier telegram.Notifier
}

func NewRunner(
	cfg *config.Config,
	log *logger.Logger,
	tushare repository.TushareRepository,
	bars repository.DailyBarRepository,
	stocks repository.StockBasicRepository,
	flows repository.FlowRepository,
	evo repository.EvolutionRepository,
	notifier telegram.Notifier,
) *Runner {
	if notifier == nil {
		notifier = telegram.NewNoop()
	}
	return &Runner{
		cfg:      cfg,
		log:      log,
		tushare:  tushare,
		bars:     bars,
		stocks:   stocks,
		flows:    flows,
		evo:      evo,
		notifier: notifier,
	}
}

// Run is idempotent per trading day: repeated calls refresh the same data and
// re-run the same grids. A second concurrent call exits early on the lock.
func (r *Runner) Run(ctx context.Context) error {
	lock, err := acquireLock(r.cfg.Evolution.LockPath)
	if err != nil {
		if err == ErrLocked {
			r.log.WarnContext(ctx, "evolution already running, exiting",
				logger.StringField("lock", r.cfg.Evolution.LockPath))
			return nil
		}
		return fmt.Errorf("evolution: acquire lock: %w", err)
	}
	defer func() {
		if rerr := lock.release(); rerr != nil {
			r.log.WarnContext(ctx, "lock release failed", logger.ErrorField(rerr))
		}
	}()

	refreshReport, err := r.refresh(ctx)
	if err != nil {
		return err
	}

	fresh, latest, err := r.isFresh(ctx)
	if err != nil {
		return err
	}
	if !fresh {
		r.log.WarnContext(ctx, "data not fresh, exiting early",
			logger.StringField("exchange_latest", latest))
		return nil
	}

	data, marketBars, refs, err := r.load(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("evolution: store has no usable stock histories")
	}
	r.log.InfoContext(ctx, "universe loaded",
		logger.IntField("stocks", len(data)), logger.IntField("market_bars", len(marketBars)))

	report := &RunReport{
		RunAt:   utils.TimeNowCST().Format("2006-01-02T15:04:05"),
		Refresh: refreshReport,
		Best:    make(map[string]GridResult),
		History: make(map[string][]GridResult),
	}

	for _, variant := range scoring.Variants() {
		scorer, err := scoring.Get(variant)
		if err != nil {
			return err
		}
		eval := r.makeEvaluator(scorer, refs, marketBars)
		grid := variantGrid(variant, r.cfg.Evolution.SampleSeed)

		history, bestIdx := searchVariant(ctx, data, eval, grid, r.cfg.Evolution.MaxWorkers)
		if err := ctx.Err(); err != nil {
			return err
		}
		if bestIdx < 0 {
			r.log.WarnContext(ctx, "grid produced no result", logger.StringField("variant", variant))
			continue
		}
		report.History[variant] = history
		report.Best[variant] = history[bestIdx]
		r.log.InfoContext(ctx, "variant evolved",
			logger.StringField("variant", variant),
			logger.Float64Field("composite_score", history[bestIdx].Score),
			logger.IntField("signals", history[bestIdx].Stats.TotalSignals))
	}

	if len(report.Best) == 0 {
		return fmt.Errorf("evolution: no variant produced a result")
	}

	if err := writeReports(r.cfg.Evolution.OutputDir, report); err != nil {
		return fmt.Errorf("evolution: write reports: %w", err)
	}
	if err := r.persist(ctx, report); err != nil {
		return fmt.Errorf("evolution: persist run: %w", err)
	}
	r.push(ctx, report)
	return nil
}

// isFresh compares the stored market proxy high-water mark against the
// exchange's most recent open date.
func (r *Runner) isFresh(ctx context.Context) (bool, string, error) {
	now := utils.TimeNowCST()
	dates, err := r.tushare.TradeCalendar(ctx,
		utils.FormatTradeDate(now.AddDate(0, 0, -14)), utils.FormatTradeDate(now))
	if err != nil {
		return false, "", fmt.Errorf("evolution: freshness calendar: %w", err)
	}
	if len(dates) == 0 {
		return false, "", fmt.Errorf("evolution: freshness calendar is empty")
	}
	latest := dates[len(dates)-1]

	stored, err := r.bars.MaxTradeDate(ctx, common.MarketProxyCode)
	if err != nil {
		return false, latest, fmt.Errorf("evolution: proxy high-water mark: %w", err)
	}
	return stored == latest, latest, nil
}

// load pulls the working set: LoadDays of bars per stock grouped by code, the
// market proxy series split out, and the stock reference rows keyed by code.
func (r *Runner) load(ctx context.Context) (map[string][]entity.DailyBar, []entity.DailyBar, map[string]entity.StockBasic, error) {
	// LoadDays counts trading days; stretch to calendar days for the cutoff.
	cutoff := utils.FormatTradeDate(
		utils.TimeNowCST().AddDate(0, 0, -r.cfg.Evolution.LoadDays*3/2))
	data, err := r.bars.GetAllSince(ctx, cutoff)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("evolution: load histories: %w", err)
	}

	marketBars := data[common.MarketProxyCode]
	delete(data, common.MarketProxyCode)

	stocks, err := r.stocks.GetAll(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("evolution: load stock reference: %w", err)
	}
	refs := make(map[string]entity.StockBasic, len(stocks))
	for _, s := range stocks {
		refs[s.TsCode] = s
	}
	// Drop series with no reference row (delisted codes, stray indexes).
	for code := range data {
		if _, ok := refs[code]; !ok {
			delete(data, code)
		}
	}
	return data, marketBars, refs, nil
}

// makeEvaluator binds a scorer to the reference rows and the market proxy.
// The market window is trimmed to the evaluation date so scoring sees no
// future regime information.
func (r *Runner) makeEvaluator(scorer scoring.Scorer, refs map[string]entity.StockBasic, marketBars []entity.DailyBar) backtest.Evaluator {
	scoringCfg := scoring.DefaultConfig()
	return func(tsCode string, bars []entity.DailyBar) scoring.Result {
		ref := refs[tsCode]
		in := scoring.Input{
			TsCode:   tsCode,
			Name:     ref.Name,
			Industry: ref.Industry,
			IsST:     ref.IsST,
			Bars:     bars,
			Config:   scoringCfg,
		}
		if len(bars) > 0 {
			in.MarketBars = marketWindow(marketBars, bars[len(bars)-1].TradeDate)
		}
		return scorer(in)
	}
}

// marketWindow returns the proxy bars up to and including tradeDate.
func marketWindow(marketBars []entity.DailyBar, tradeDate string) []entity.DailyBar {
	n := sort.Search(len(marketBars), func(i int) bool {
		return marketBars[i].TradeDate > tradeDate
	})
	return marketBars[:n]
}

// persist appends the run to the three history tables. The overall champion
// across variants additionally lands in the ai-best table.
func (r *Runner) persist(ctx context.Context, report *RunReport) error {
	var champion *entity.EvolutionBestParam

	variants := make([]string, 0, len(report.Best))
	for v := range report.Best {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	for _, variant := range variants {
		best := report.Best[variant]
		row, err := bestRow(variant, report.RunAt, best)
		if err != nil {
			return err
		}
		if err := r.evo.AppendBest(ctx, row); err != nil {
			return err
		}
		if champion == nil || row.Score > champion.Score {
			champion = row
		}

		history := make([]entity.EvolutionRunHistory, 0, len(report.History[variant]))
		for _, res := range report.History[variant] {
			hrow, err := bestRow(variant, report.RunAt, res)
			if err != nil {
				return err
			}
			history = append(history, entity.EvolutionRunHistory{
				Strategy:   hrow.Strategy,
				RunAt:      hrow.RunAt,
				ParamsJSON: hrow.ParamsJSON,
				StatsJSON:  hrow.StatsJSON,
				Score:      hrow.Score,
			})
		}
		if err := r.evo.AppendHistory(ctx, history); err != nil {
			return err
		}
	}

	if champion != nil {
		return r.evo.AppendAIBest(ctx, &entity.EvolutionAIBest{
			Strategy:   champion.Strategy,
			RunAt:      champion.RunAt,
			ParamsJSON: champion.ParamsJSON,
			StatsJSON:  champion.StatsJSON,
			Score:      champion.Score,
		})
	}
	return nil
}

func bestRow(variant, runAt string, res GridResult) (*entity.EvolutionBestParam, error) {
	params, err := json.Marshal(res.Params)
	if err != nil {
		return nil, err
	}
	stats, err := json.Marshal(res.Stats)
	if err != nil {
		return nil, err
	}
	return &entity.EvolutionBestParam{
		Strategy:   variant,
		RunAt:      runAt,
		ParamsJSON: string(params),
		StatsJSON:  string(stats),
		Score:      res.Score,
	}, nil
}

// push sends the run summary to the configured notifier. Failures are
// logged, never fatal.
func (r *Runner) push(ctx context.Context, report *RunReport) {
	if !r.cfg.Telegram.AutoPush {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📈 策略进化完成 %s\n", report.RunAt)
	if report.Refresh != nil {
		fmt.Fprintf(&b, "数据更新: %d天 / %d行 / %d失败\n",
			report.Refresh.DaysUpdated, report.Refresh.RowsUpserted, report.Refresh.Failures)
	}

	variants := make([]string, 0, len(report.Best))
	for v := range report.Best {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	for _, variant := range variants {
		res := report.Best[variant]
		fmt.Fprintf(&b, "%s: 综合分%.2f 胜率%.1f%% 信号%d 阈值%.0f 持有%d天\n",
			variant, res.Score, res.Stats.WinRate, res.Stats.TotalSignals,
			res.Params.ScoreThreshold, res.Params.MaxHoldingDays)
	}

	if err := r.notifier.SendMessage(b.String()); err != nil {
		r.log.WarnContext(ctx, "evolution summary push failed", logger.ErrorField(err))
	}
}
