package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"ashare-quant/internal/backtest"
	"ashare-quant/internal/config"
	"ashare-quant/internal/entity"
	"ashare-quant/internal/rebalance"
	"ashare-quant/internal/repository"
	"ashare-quant/internal/scoring"
	"ashare-quant/pkg/common"
	"ashare-quant/pkg/logger"
	"ashare-quant/pkg/sqlite"
	"ashare-quant/pkg/telegram"

	"github.com/spf13/cobra"
)

var (
	configPath string
	variant    string
)

var rootCmd = &cobra.Command{
	Use:   "ashare-quant",
	Short: "A-share stock selection and backtesting toolkit",
}

var scoreCmd = &cobra.Command{
	Use:   "score [ts_code...]",
	Short: "Score stocks from the local store with one scoring variant",
	Args:  cobra.MinimumNArgs(1),
	Run:   runScore,
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run one backtest pass over the stored universe",
	Run:   runBacktest,
}

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance <holdings.json>",
	Short: "Generate a daily rebalance plan for a holdings file",
	Args:  cobra.ExactArgs(1),
	Run:   runRebalance,
}

var (
	btThreshold float64
	btHoldDays  int
	btStopLoss  float64
	btTakeProf  float64
	btSample    int
	btSeed      int64
)

type env struct {
	cfg    *config.Config
	log    *logger.Logger
	bars   repository.DailyBarRepository
	stocks repository.StockBasicRepository
	flows  repository.FlowRepository
	close  func()
}

func mustEnv() *env {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	busyTimeout := 5 * time.Second
	if cfg.Database.BusyTimeout != "" {
		if d, err := time.ParseDuration(cfg.Database.BusyTimeout); err == nil {
			busyTimeout = d
		}
	}
	db, err := sqlite.NewDB(sqlite.Config{
		Path:            cfg.Database.Path,
		BusyTimeout:     busyTimeout,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		appLogger.Fatal("Failed to open store", logger.ErrorField(err))
	}

	return &env{
		cfg:    cfg,
		log:    appLogger,
		bars:   repository.NewDailyBarRepository(db.DB),
		stocks: repository.NewStockBasicRepository(db.DB),
		flows:  repository.NewFlowRepository(db.DB),
		close: func() {
			if sqlDB, err := db.DB.DB(); err == nil {
				sqlDB.Close()
			}
			_ = appLogger.Sync()
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runScore(cmd *cobra.Command, args []string) {
	ctx, stop := signalContext()
	defer stop()

	e := mustEnv()
	defer e.close()

	scorer, err := scoring.Get(variant)
	if err != nil {
		e.log.Fatal("Unknown variant", logger.ErrorField(err))
	}
	refs := mustRefs(ctx, e)
	marketBars, err := e.bars.GetHistory(ctx, common.MarketProxyCode, e.cfg.Evolution.LoadDays)
	if err != nil {
		e.log.Fatal("Failed to load market proxy", logger.ErrorField(err))
	}
	provider := scoring.NewContextProvider(e.flows, e.log)
	scoringCfg := scoring.DefaultConfig()

	results := make([]scoring.Result, 0, len(args))
	for _, tsCode := range args {
		bars, err := e.bars.GetHistory(ctx, tsCode, e.cfg.Evolution.LoadDays)
		if err != nil {
			e.log.Error("History load failed", logger.StringField("ts_code", tsCode), logger.ErrorField(err))
			continue
		}
		ref := refs[tsCode]
		results = append(results, scorer(scoring.Input{
			TsCode:        tsCode,
			Name:          ref.Name,
			Industry:      ref.Industry,
			IsST:          ref.IsST,
			Bars:          bars,
			FundHoldRatio: provider.FundHoldRatio(ctx, tsCode),
			MarketBars:    marketBars,
			Config:        scoringCfg,
		}))
	}
	printJSON(results)
}

func runBacktest(cmd *cobra.Command, args []string) {
	ctx, stop := signalContext()
	defer stop()

	e := mustEnv()
	defer e.close()

	scorer, err := scoring.Get(variant)
	if err != nil {
		e.log.Fatal("Unknown variant", logger.ErrorField(err))
	}
	refs := mustRefs(ctx, e)
	data := mustUniverse(ctx, e)
	marketBars := data[common.MarketProxyCode]
	delete(data, common.MarketProxyCode)
	for code := range data {
		if _, ok := refs[code]; !ok {
			delete(data, code)
		}
	}

	scoringCfg := scoring.DefaultConfig()
	eval := func(tsCode string, bars []entity.DailyBar) scoring.Result {
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
			n := sort.Search(len(marketBars), func(i int) bool {
				return marketBars[i].TradeDate > bars[len(bars)-1].TradeDate
			})
			in.MarketBars = marketBars[:n]
		}
		return scorer(in)
	}

	stats, trades := backtest.Run(data, eval, backtest.Params{
		Variant:        variant,
		ScoreThreshold: btThreshold,
		MaxHoldingDays: btHoldDays,
		StopLossPct:    btStopLoss,
		TakeProfitPct:  btTakeProf,
		SampleSize:     btSample,
		Seed:           btSeed,
	})
	printJSON(struct {
		Stats  backtest.Stats   `json:"stats"`
		Trades []backtest.Trade `json:"trades"`
	}{stats, trades})
}

func runRebalance(cmd *cobra.Command, args []string) {
	ctx, stop := signalContext()
	defer stop()

	e := mustEnv()
	defer e.close()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		e.log.Fatal("Failed to read holdings file", logger.ErrorField(err))
	}
	var doc struct {
		Holdings []rebalance.Holding `json:"holdings"`
		Signals  []rebalance.Signal  `json:"signals"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		e.log.Fatal("Invalid holdings file", logger.ErrorField(err))
	}

	indexBars, err := e.bars.GetHistory(ctx, common.MarketProxyCode, 60)
	if err != nil {
		e.log.Fatal("Failed to load market proxy", logger.ErrorField(err))
	}
	plan := rebalance.GenerateDailyRebalancePlan(doc.Holdings, doc.Signals, indexBars)
	printJSON(plan)
	pushRebalancePlan(ctx, e, plan)
}

func pushRebalancePlan(ctx context.Context, e *env, plan rebalance.Plan) {
	if !e.cfg.Telegram.AutoPush || e.cfg.Telegram.BotToken == "" {
		return
	}
	notifier, err := telegram.NewClient(e.cfg.Telegram.BotToken, e.cfg.Telegram.ChatID)
	if err != nil {
		e.log.Warn("Telegram client init failed", logger.ErrorField(err))
		return
	}
	var b strings.Builder
	b.WriteString("📋 每日调仓计划\n")
	if plan.Market.Type != rebalance.ActionHold {
		fmt.Fprintf(&b, "大盘: %s %s\n", plan.Market.Type, plan.Market.Reason)
	}
	for _, a := range plan.PerStock {
		fmt.Fprintf(&b, "%s: %s %s\n", a.TsCode, a.Type, a.Reason)
	}
	for _, a := range plan.Swaps {
		fmt.Fprintf(&b, "换仓: %s → %s %s\n", a.TsCode, a.ReplaceWith, a.Reason)
	}
	if err := notifier.SendMessage(b.String()); err != nil {
		e.log.WarnContext(ctx, "Rebalance plan push failed", logger.ErrorField(err))
	}
}

func mustRefs(ctx context.Context, e *env) map[string]entity.StockBasic {
	stocks, err := e.stocks.GetAll(ctx)
	if err != nil {
		e.log.Fatal("Failed to load stock reference", logger.ErrorField(err))
	}
	refs := make(map[string]entity.StockBasic, len(stocks))
	for _, s := range stocks {
		refs[s.TsCode] = s
	}
	return refs
}

func mustUniverse(ctx context.Context, e *env) map[string][]entity.DailyBar {
	cutoff := time.Now().AddDate(0, 0, -e.cfg.Evolution.LoadDays*3/2).Format(common.TradeDateLayout)
	data, err := e.bars.GetAllSince(ctx, cutoff)
	if err != nil {
		e.log.Fatal("Failed to load universe", logger.ErrorField(err))
	}
	return data
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Println(string(out))
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&variant, "variant", "v", common.VariantV3, "Scoring variant (V3, V4, V6, V7, V8)")

	backtestCmd.Flags().Float64Var(&btThreshold, "threshold", 70, "Minimum score to enter a trade")
	backtestCmd.Flags().IntVar(&btHoldDays, "hold-days", 10, "Maximum holding days")
	backtestCmd.Flags().Float64Var(&btStopLoss, "stop-loss", -0.08, "Stop-loss fraction (negative)")
	backtestCmd.Flags().Float64Var(&btTakeProf, "take-profit", 0.15, "Take-profit fraction")
	backtestCmd.Flags().IntVar(&btSample, "sample", 0, "Candidate sample size (0 = full universe)")
	backtestCmd.Flags().Int64Var(&btSeed, "seed", 42, "Sampling seed")

	rootCmd.AddCommand(scoreCmd, backtestCmd, rebalanceCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err)
		os.Exit(1)
	}
}
