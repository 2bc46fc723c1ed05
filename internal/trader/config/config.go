package config

import (
	"time"

	"golang-ai-trader/pkg/config"
)

// Risk holds the risk management limits.
type Risk struct {
	MaxPositionSizePct float64 `mapstructure:"max_position_size_pct"`
	DailyLossLimitPct  float64 `mapstructure:"daily_loss_limit_pct"`
	StopLossPct        float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct      float64 `mapstructure:"take_profit_pct"`
	TrailingStopPct    float64 `mapstructure:"trailing_stop_pct"`
}

// Broker holds the configuration for the order execution API.
type Broker struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	MaxRetries          int           `mapstructure:"max_retries"`
	PriceCacheTTL       time.Duration `mapstructure:"price_cache_ttl"`
}

// SignalSource holds one sentiment source endpoint.
type SignalSource struct {
	Name    string  `mapstructure:"name"`
	BaseURL string  `mapstructure:"base_url"`
	APIKey  string  `mapstructure:"api_key"`
	Weight  float64 `mapstructure:"weight"`
}

// Signals holds signal aggregation configuration.
type Signals struct {
	Sources            []SignalSource `mapstructure:"sources"`
	Timeout            time.Duration  `mapstructure:"timeout"`
	RenormalizeWeights bool           `mapstructure:"renormalize_weights"`
	CacheTTL           time.Duration  `mapstructure:"cache_ttl"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
	MaxIterations       int    `mapstructure:"max_iterations"`
}

// Optimizer holds mean-variance optimization parameters.
type Optimizer struct {
	RiskFreeRate       float64 `mapstructure:"risk_free_rate"`
	LookbackDays       int     `mapstructure:"lookback_days"`
	TradingDaysPerYear int     `mapstructure:"trading_days_per_year"`
	FrontierPoints     int     `mapstructure:"frontier_points"`
	RebalanceTolerance float64 `mapstructure:"rebalance_tolerance"`
}

// Scheduler holds the cron expressions and polling intervals for the
// automated tasks.
type Scheduler struct {
	PreSessionCron    string        `mapstructure:"pre_session_cron"`
	MidSessionCron    string        `mapstructure:"mid_session_cron"`
	PreCloseCron      string        `mapstructure:"pre_close_cron"`
	SnapshotCron      string        `mapstructure:"snapshot_cron"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Trading holds portfolio-wide trading parameters.
type Trading struct {
	Watchlist      []string `mapstructure:"watchlist"`
	InitialCapital float64  `mapstructure:"initial_capital"`
}

// Config holds the full configuration for the trading service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	API       config.API      `mapstructure:"api"`
	Risk      Risk            `mapstructure:"risk"`
	Broker    Broker          `mapstructure:"broker"`
	Signals   Signals         `mapstructure:"signals"`
	Gemini    Gemini          `mapstructure:"gemini"`
	Optimizer Optimizer       `mapstructure:"optimizer"`
	Scheduler Scheduler       `mapstructure:"scheduler"`
	Telegram  Telegram        `mapstructure:"telegram"`
	Trading   Trading         `mapstructure:"trading"`
}

// Load loads the trading service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Risk.MaxPositionSizePct == 0 {
		c.Risk.MaxPositionSizePct = 40
	}
	if c.Risk.DailyLossLimitPct == 0 {
		c.Risk.DailyLossLimitPct = 20
	}
	if c.Risk.StopLossPct == 0 {
		c.Risk.StopLossPct = 30
	}
	if c.Gemini.MaxIterations == 0 {
		c.Gemini.MaxIterations = 10
	}
	if c.Optimizer.RiskFreeRate == 0 {
		c.Optimizer.RiskFreeRate = 0.04
	}
	if c.Optimizer.TradingDaysPerYear == 0 {
		c.Optimizer.TradingDaysPerYear = 252
	}
	if c.Optimizer.FrontierPoints == 0 {
		c.Optimizer.FrontierPoints = 50
	}
	if c.Optimizer.RebalanceTolerance == 0 {
		c.Optimizer.RebalanceTolerance = 0.05
	}
	if c.Signals.Timeout == 0 {
		c.Signals.Timeout = 10 * time.Second
	}
	if c.Broker.Timeout == 0 {
		c.Broker.Timeout = 15 * time.Second
	}
	if c.Broker.MaxRetries == 0 {
		c.Broker.MaxRetries = 3
	}
	if c.Scheduler.ReconcileInterval == 0 {
		c.Scheduler.ReconcileInterval = 30 * time.Second
	}
	if c.Scheduler.SweepInterval == 0 {
		c.Scheduler.SweepInterval = time.Minute
	}
}
