package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Default engine parameter values
const (
	DefaultLookback      = 250
	DefaultParallelism   = 4
	DefaultDedupeBars    = 5
	DefaultEquity        = 10000.0
	DefaultSubmitTimeout = 10 * time.Second

	DefaultRiskFraction        = 0.015
	DefaultMaxPositionFraction = 0.08
	DefaultATRMultiple         = 2.0
	DefaultATRPeriod           = 14

	DefaultStopLossPct     = 0.03
	DefaultTakeProfitPct   = 0.06
	DefaultTrailingStopPct = 0.02
)

// EngineConfig is the root configuration document. It is loaded once at
// startup and treated as immutable afterwards.
type EngineConfig struct {
	Engine     EngineSection     `json:"engine"`
	Sizing     SizingSection     `json:"sizing"`
	Risk       RiskSection       `json:"risk"`
	Ledger     LedgerSection     `json:"ledger"`
	Strategies StrategiesSection `json:"strategies"`
	Exchange   ExchangeSection   `json:"exchange"`
}

// EngineSection configures the evaluation loop.
type EngineSection struct {
	Instruments   []string `json:"instruments"`
	Lookback      int      `json:"lookback"`
	Interval      string   `json:"interval"`       // Go duration, e.g. "1h"
	Parallelism   int      `json:"parallelism"`
	DedupeBars    int      `json:"dedupe_bars"`
	Equity        float64  `json:"equity"`
	SubmitTimeout string   `json:"submit_timeout"` // Go duration
	Mode          string   `json:"mode"`           // "paper" or "live"
	DataDir       string   `json:"data_dir"`       // per-instrument CSV files for paper mode
	MetricsAddr   string   `json:"metrics_addr"`   // e.g. ":9090"; empty disables
}

// SizingSection configures the shared risk budget for position sizing.
type SizingSection struct {
	RiskFraction        float64 `json:"risk_fraction"`
	MaxPositionFraction float64 `json:"max_position_fraction"`
	ATRMultiple         float64 `json:"atr_multiple"`
	ATRPeriod           int     `json:"atr_period"`
	MinCashBuffer       float64 `json:"min_cash_buffer"`
	MinUnit             float64 `json:"min_unit"`
	VolatilityLookback  int     `json:"volatility_lookback"`
	VolatilityThreshold float64 `json:"volatility_threshold"`
}

// RiskParams are the exit thresholds for positions. StrategyOverrides in
// RiskSection replace the defaults per strategy id.
type RiskParams struct {
	StopLossPct       float64 `json:"stop_loss_pct"`
	TakeProfitPct     float64 `json:"take_profit_pct"`
	TrailingStopPct   float64 `json:"trailing_stop_pct"`
	MaxHoldingPeriods int     `json:"max_holding_periods"`
}

type RiskSection struct {
	Defaults          RiskParams            `json:"defaults"`
	StrategyOverrides map[string]RiskParams `json:"strategy_overrides,omitempty"`
}

// LedgerSection configures the exposure caps and order admission limits.
type LedgerSection struct {
	PerInstrumentCap    float64 `json:"per_instrument_notional_cap"`
	PortfolioCap        float64 `json:"portfolio_notional_cap"`
	PerTradeNotionalCap float64 `json:"per_trade_notional_cap"`
	MaxActivePositions  int     `json:"max_active_positions"`
}

// StrategiesSection enables and parameterizes the built-in strategies.
type StrategiesSection struct {
	TrendBand     *TrendBandSection     `json:"trend_band,omitempty"`
	Outlier       *OutlierSection       `json:"outlier,omitempty"`
	TrendTemplate *TrendTemplateSection `json:"trend_template,omitempty"`
}

type TrendBandSection struct {
	ATRPeriod        int     `json:"atr_period"`
	BandMultiplier   float64 `json:"band_multiplier"`
	TrendFilterSMA   int     `json:"trend_filter_sma"`
	MinTrendStrength float64 `json:"min_trend_strength"`
	MinVolumeRatio   float64 `json:"min_volume_ratio"`
	VolumePeriod     int     `json:"volume_period"`
}

type OutlierSection struct {
	ScoreThreshold float64 `json:"score_threshold"`
	VolumeMultiple float64 `json:"volume_multiple"`
	VolumePeriod   int     `json:"volume_period"`
	CooldownBars   int     `json:"cooldown_bars"`
	FeatureBars    int     `json:"feature_bars"`
}

type TrendTemplateSection struct {
	FastSMA          int     `json:"fast_sma"`
	MidSMA           int     `json:"mid_sma"`
	SlowSMA          int     `json:"slow_sma"`
	SlowSlopeBars    int     `json:"slow_slope_bars"`
	HighLowPeriod    int     `json:"high_low_period"`
	MinAboveLowRatio float64 `json:"min_above_low_ratio"`
	MaxBelowHighPct  float64 `json:"max_below_high_pct"`
}

// ExchangeSection selects the live-trading environment. Credentials come
// from the environment, never the config file.
type ExchangeSection struct {
	Category string  `json:"category"`
	Interval string  `json:"interval"`
	Testnet  bool    `json:"testnet"`
	Demo     bool    `json:"demo"`
	Slippage float64 `json:"slippage"` // paper-mode fill slippage
}

// Credentials holds exchange API keys loaded from the environment.
type Credentials struct {
	APIKey    string
	APISecret string
}

// NewDefaultConfig returns a config with every tunable at its default.
func NewDefaultConfig() *EngineConfig {
	return &EngineConfig{
		Engine: EngineSection{
			Lookback:      DefaultLookback,
			Interval:      "1h",
			Parallelism:   DefaultParallelism,
			DedupeBars:    DefaultDedupeBars,
			Equity:        DefaultEquity,
			SubmitTimeout: "10s",
			Mode:          "paper",
		},
		Sizing: SizingSection{
			RiskFraction:        DefaultRiskFraction,
			MaxPositionFraction: DefaultMaxPositionFraction,
			ATRMultiple:         DefaultATRMultiple,
			ATRPeriod:           DefaultATRPeriod,
			MinUnit:             1.0,
		},
		Risk: RiskSection{
			Defaults: RiskParams{
				StopLossPct:     DefaultStopLossPct,
				TakeProfitPct:   DefaultTakeProfitPct,
				TrailingStopPct: DefaultTrailingStopPct,
			},
		},
	}
}

// LoadConfig reads the JSON config file, applies defaults for anything
// unset and validates the result.
func LoadConfig(path string) (*EngineConfig, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadCredentials reads exchange credentials from the environment,
// loading a .env file first when one exists.
func LoadCredentials() (Credentials, error) {
	_ = godotenv.Load()

	creds := Credentials{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return creds, fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET must be set")
	}
	return creds, nil
}

// Validate checks every section for internally consistent values.
func (c *EngineConfig) Validate() error {
	if len(c.Engine.Instruments) == 0 {
		return fmt.Errorf("engine.instruments must name at least one instrument")
	}
	if c.Engine.Lookback <= 0 {
		return fmt.Errorf("engine.lookback must be positive, got %d", c.Engine.Lookback)
	}
	if _, err := c.Interval(); err != nil {
		return fmt.Errorf("engine.interval: %w", err)
	}
	if _, err := c.SubmitTimeout(); err != nil {
		return fmt.Errorf("engine.submit_timeout: %w", err)
	}
	if c.Engine.Mode != "paper" && c.Engine.Mode != "live" {
		return fmt.Errorf("engine.mode must be \"paper\" or \"live\", got %q", c.Engine.Mode)
	}
	if c.Engine.Mode == "paper" && c.Engine.DataDir == "" {
		return fmt.Errorf("engine.data_dir is required in paper mode")
	}

	if c.Sizing.RiskFraction <= 0 || c.Sizing.RiskFraction >= 1 {
		return fmt.Errorf("sizing.risk_fraction must be in (0,1), got %.4f", c.Sizing.RiskFraction)
	}
	if c.Sizing.MaxPositionFraction <= 0 || c.Sizing.MaxPositionFraction > 1 {
		return fmt.Errorf("sizing.max_position_fraction must be in (0,1], got %.4f", c.Sizing.MaxPositionFraction)
	}
	if c.Sizing.ATRMultiple <= 0 {
		return fmt.Errorf("sizing.atr_multiple must be positive, got %.4f", c.Sizing.ATRMultiple)
	}
	if c.Sizing.MinCashBuffer < 0 || c.Sizing.MinCashBuffer >= 1 {
		return fmt.Errorf("sizing.min_cash_buffer must be in [0,1), got %.4f", c.Sizing.MinCashBuffer)
	}

	if err := validateRiskParams("risk.defaults", c.Risk.Defaults); err != nil {
		return err
	}
	for id, params := range c.Risk.StrategyOverrides {
		if err := validateRiskParams(fmt.Sprintf("risk.strategy_overrides.%s", id), params); err != nil {
			return err
		}
	}

	if c.Ledger.PerInstrumentCap < 0 || c.Ledger.PortfolioCap < 0 || c.Ledger.PerTradeNotionalCap < 0 {
		return fmt.Errorf("ledger caps must be non-negative")
	}
	if c.Ledger.PerInstrumentCap > 0 && c.Ledger.PortfolioCap > 0 &&
		c.Ledger.PerInstrumentCap > c.Ledger.PortfolioCap {
		return fmt.Errorf("ledger.per_instrument_notional_cap %.2f exceeds portfolio cap %.2f",
			c.Ledger.PerInstrumentCap, c.Ledger.PortfolioCap)
	}
	if c.Ledger.MaxActivePositions < 0 {
		return fmt.Errorf("ledger.max_active_positions must be non-negative, got %d", c.Ledger.MaxActivePositions)
	}

	if c.Strategies.TrendBand == nil && c.Strategies.Outlier == nil && c.Strategies.TrendTemplate == nil {
		return fmt.Errorf("at least one strategy must be configured")
	}
	return nil
}

func validateRiskParams(section string, p RiskParams) error {
	if p.StopLossPct <= 0 || p.StopLossPct >= 1 {
		return fmt.Errorf("%s.stop_loss_pct must be in (0,1), got %.4f", section, p.StopLossPct)
	}
	if p.TakeProfitPct <= 0 || p.TakeProfitPct >= 1 {
		return fmt.Errorf("%s.take_profit_pct must be in (0,1), got %.4f", section, p.TakeProfitPct)
	}
	if p.TrailingStopPct < 0 || p.TrailingStopPct >= 1 {
		return fmt.Errorf("%s.trailing_stop_pct must be in [0,1), got %.4f", section, p.TrailingStopPct)
	}
	if p.MaxHoldingPeriods < 0 {
		return fmt.Errorf("%s.max_holding_periods must be non-negative, got %d", section, p.MaxHoldingPeriods)
	}
	return nil
}

// Interval parses the bar interval.
func (c *EngineConfig) Interval() (time.Duration, error) {
	if c.Engine.Interval == "" {
		return time.Hour, nil
	}
	return time.ParseDuration(c.Engine.Interval)
}

// SubmitTimeout parses the per-order gateway deadline.
func (c *EngineConfig) SubmitTimeout() (time.Duration, error) {
	if c.Engine.SubmitTimeout == "" {
		return DefaultSubmitTimeout, nil
	}
	return time.ParseDuration(c.Engine.SubmitTimeout)
}
