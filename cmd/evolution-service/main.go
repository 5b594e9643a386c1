package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ashare-quant/internal/config"
	"ashare-quant/internal/evolution"
	"ashare-quant/internal/repository"
	"ashare-quant/pkg/logger"
	"ashare-quant/pkg/sqlite"
	"ashare-quant/pkg/telegram"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one end-of-day evolution pass",
	Run:   runOnce,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the evolution pass on the configured daily schedule",
	Run:   runServe,
}

func runOnce(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, appLogger, cleanup := mustBuildRunner()
	defer cleanup()

	if err := runner.Run(ctx); err != nil {
		appLogger.Fatal("Evolution run failed", logger.ErrorField(err))
	}
	appLogger.Info("Evolution run finished")
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, appLogger, cleanup := mustBuildRunner()
	defer cleanup()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		appLogger.Fatal("Failed to load CST location", logger.ErrorField(err))
	}
	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Evolution.CronSpec, func() {
		if err := runner.Run(ctx); err != nil {
			appLogger.Error("Scheduled evolution run failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		appLogger.Fatal("Invalid cron spec",
			logger.StringField("spec", cfg.Evolution.CronSpec), logger.ErrorField(err))
	}

	appLogger.Info("Evolution scheduler started",
		logger.StringField("spec", cfg.Evolution.CronSpec))
	c.Start()

	<-ctx.Done()
	appLogger.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	appLogger.Info("Scheduler exiting")
}

func mustBuildRunner() (*evolution.Runner, *logger.Logger, func()) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger.Info("Starting Evolution Service", logger.Field("name", cfg.App.Name))

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

	notifier := telegram.NewNoop()
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Warn("Telegram notifier unavailable, continuing without push",
				logger.ErrorField(err))
			notifier = telegram.NewNoop()
		}
	}

	runner := evolution.NewRunner(
		cfg,
		appLogger,
		repository.NewTushareRepository(cfg, appLogger),
		repository.NewDailyBarRepository(db.DB),
		repository.NewStockBasicRepository(db.DB),
		repository.NewFlowRepository(db.DB),
		repository.NewEvolutionRepository(db.DB),
		notifier,
	)

	cleanup := func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			sqlDB.Close()
		}
		_ = appLogger.Sync()
	}
	return runner, appLogger, cleanup
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "evolution-service",
		Short: "A-share strategy evolution service",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	rootCmd.AddCommand(runCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing evolution-service CLI: %s\n", err)
		os.Exit(1)
	}
}
