package config

import (
	"os"
	"strconv"

	"github.com/spf13/viper"

	"ashare-quant/pkg/config"
)

// Tushare holds the configuration for the Tushare data provider.
type Tushare struct {
	Token               string `mapstructure:"token"`
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
}

// Evolution holds the auto-evolution loop configuration.
type Evolution struct {
	UpdateDays        int    `mapstructure:"update_days"`
	LoadDays          int    `mapstructure:"load_days"`
	OutputDir         string `mapstructure:"output_dir"`
	LockPath          string `mapstructure:"lock_path"`
	MaxWorkers        int    `mapstructure:"max_workers"`
	CronSpec          string `mapstructure:"cron_spec"`
	SampleSeed        int64  `mapstructure:"sample_seed"`
	FundPortfolioRefs string `mapstructure:"fund_portfolio_funds"`
	FundYear          string `mapstructure:"fund_portfolio_year"`
	FundQuarter       string `mapstructure:"fund_portfolio_quarter"`
}

// Telegram holds configuration for the optional notifier.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
	AutoPush bool   `mapstructure:"auto_push"`
}

// Config holds the full configuration for the toolkit.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Tushare   Tushare         `mapstructure:"tushare"`
	Evolution Evolution       `mapstructure:"evolution"`
	Telegram  Telegram        `mapstructure:"telegram"`
}

// Load loads the toolkit configuration from the given path and applies
// defaults for anything the file leaves out.
func Load(path string) (*Config, error) {
	// Push is on unless the file or AUTO_PUSH explicitly disables it. The
	// default lives in viper so an explicit auto_push: false still wins.
	viper.SetDefault("telegram.auto_push", true)

	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv binds the legacy environment variables once at load time.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TUSHARE_TOKEN"); v != "" {
		cfg.Tushare.Token = v
	}
	if v := os.Getenv("PERMANENT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("UPDATE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Evolution.UpdateDays = n
		}
	}
	if v := os.Getenv("FUND_PORTFOLIO_FUNDS"); v != "" {
		cfg.Evolution.FundPortfolioRefs = v
	}
	if v := os.Getenv("FUND_PORTFOLIO_YEAR"); v != "" {
		cfg.Evolution.FundYear = v
	}
	if v := os.Getenv("FUND_PORTFOLIO_QUARTER"); v != "" {
		cfg.Evolution.FundQuarter = v
	}
	if v := os.Getenv("AUTO_PUSH"); v != "" {
		cfg.Telegram.AutoPush = v != "0" && v != "false"
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Tushare.BaseURL == "" {
		cfg.Tushare.BaseURL = "http://api.tushare.pro"
	}
	if cfg.Tushare.MaxRequestPerMinute <= 0 {
		cfg.Tushare.MaxRequestPerMinute = 180
	}
	if cfg.Tushare.TimeoutSeconds <= 0 {
		cfg.Tushare.TimeoutSeconds = 30
	}
	if cfg.Evolution.UpdateDays <= 0 {
		cfg.Evolution.UpdateDays = 30
	}
	if cfg.Evolution.LoadDays <= 0 {
		cfg.Evolution.LoadDays = 420
	}
	if cfg.Evolution.OutputDir == "" {
		cfg.Evolution.OutputDir = "evolution"
	}
	if cfg.Evolution.LockPath == "" {
		cfg.Evolution.LockPath = "evolution/.evolution.lock"
	}
	if cfg.Evolution.MaxWorkers <= 0 {
		cfg.Evolution.MaxWorkers = 4
	}
	if cfg.Evolution.CronSpec == "" {
		cfg.Evolution.CronSpec = "30 17 * * MON-FRI"
	}
	if cfg.Evolution.SampleSeed == 0 {
		cfg.Evolution.SampleSeed = 42
	}
}
