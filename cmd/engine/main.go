package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quantfold/strategy-engine/cmd/common"
	"github.com/quantfold/strategy-engine/internal/gateway"
	"github.com/quantfold/strategy-engine/internal/ledger"
	"github.com/quantfold/strategy-engine/internal/logger"
	"github.com/quantfold/strategy-engine/internal/monitoring"
	"github.com/quantfold/strategy-engine/internal/risk"
	"github.com/quantfold/strategy-engine/internal/runner"
	"github.com/quantfold/strategy-engine/internal/sizing"
	"github.com/quantfold/strategy-engine/internal/strategy"
	"github.com/quantfold/strategy-engine/pkg/config"
	"github.com/quantfold/strategy-engine/pkg/data"
	"github.com/quantfold/strategy-engine/pkg/reporting"
)

func main() {
	var (
		configPath  = flag.String("config", "config.json", "Engine configuration file")
		reportPath  = flag.String("report", "", "Write an Excel trade log to this path on exit")
		replayTicks = flag.Int("ticks", 0, "Paper mode: replay at most this many ticks (0 = whole file)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		common.PrintVersion("strategy-engine")
		return
	}

	if err := run(*configPath, *reportPath, *replayTicks); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, reportPath string, replayTicks int) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	interval, _ := cfg.Interval()
	submitTimeout, _ := cfg.SubmitTimeout()

	log, err := logger.NewLogger("engine")
	if err != nil {
		return err
	}
	defer log.Close()

	health := monitoring.NewHealthChecker()
	if cfg.Engine.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.NewMetricsHandler())
		mux.Handle("/health", health)
		go func() {
			if err := http.ListenAndServe(cfg.Engine.MetricsAddr, mux); err != nil {
				log.LogError("metrics server", err)
			}
		}()
	}

	strategies, err := buildStrategies(cfg, interval)
	if err != nil {
		return err
	}

	riskMgr := risk.NewManager(riskConfig(cfg.Risk.Defaults, interval))
	for id, params := range cfg.Risk.StrategyOverrides {
		riskMgr.SetStrategyConfig(id, riskConfig(params, interval))
	}

	book := ledger.NewLedger(ledger.Config{
		PerInstrumentCap:   cfg.Ledger.PerInstrumentCap,
		PortfolioCap:       cfg.Ledger.PortfolioCap,
		MaxActivePositions: cfg.Ledger.MaxActivePositions,
	})
	gate := ledger.NewGate(ledger.GateConfig{
		PerTradeNotionalCap: cfg.Ledger.PerTradeNotionalCap,
	}, book)

	sizer := sizing.NewSizer(sizing.Config{
		RiskFraction:        cfg.Sizing.RiskFraction,
		MaxPositionFraction: cfg.Sizing.MaxPositionFraction,
		ATRMultiple:         cfg.Sizing.ATRMultiple,
		MinCashBuffer:       cfg.Sizing.MinCashBuffer,
		MinUnit:             cfg.Sizing.MinUnit,
	})

	runnerCfg := runner.Config{
		Lookback:            cfg.Engine.Lookback,
		Equity:              cfg.Engine.Equity,
		Parallelism:         cfg.Engine.Parallelism,
		ATRPeriod:           cfg.Sizing.ATRPeriod,
		DedupeBars:          cfg.Engine.DedupeBars,
		SubmitTimeout:       submitTimeout,
		Interval:            interval,
		VolatilityLookback:  cfg.Sizing.VolatilityLookback,
		VolatilityThreshold: cfg.Sizing.VolatilityThreshold,
		BarsPerYear:         float64(365*24) * float64(time.Hour) / float64(interval),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary := &reporting.SessionSummary{Session: "engine", StartedAt: time.Now()}

	switch cfg.Engine.Mode {
	case "live":
		creds, err := config.LoadCredentials()
		if err != nil {
			return err
		}
		gw := gateway.NewBybitGateway(gateway.BybitConfig{
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			Testnet:   cfg.Exchange.Testnet,
			Demo:      cfg.Exchange.Demo,
			Category:  cfg.Exchange.Category,
			Interval:  cfg.Exchange.Interval,
		})
		health.SetConnected(true)

		eng := runner.New(runnerCfg, gw, strategies, sizer, riskMgr, book, gate, gw, log, health)
		err = eng.Run(ctx, cfg.Engine.Instruments, interval)
		finishSummary(summary, riskMgr, book)
		printReport(summary, reportPath)
		if err != nil && err != context.Canceled {
			return err
		}
		return nil

	default: // paper
		source := data.NewCSVSource()
		for _, instrument := range cfg.Engine.Instruments {
			path := filepath.Join(cfg.Engine.DataDir, instrument+".csv")
			if err := source.Load(instrument, path); err != nil {
				return fmt.Errorf("loading %s: %w", instrument, err)
			}
			source.Rewind(instrument, cfg.Engine.Lookback)
		}
		gw := gateway.NewPaperGateway(cfg.Exchange.Slippage)
		health.SetConnected(true)

		eng := runner.New(runnerCfg, source, strategies, sizer, riskMgr, book, gate, gw, log, health)
		if err := replay(ctx, eng, source, cfg.Engine.Instruments, replayTicks, summary, health); err != nil {
			return err
		}
		finishSummary(summary, riskMgr, book)
		printReport(summary, reportPath)
		return nil
	}
}

// replay drives the runner over the loaded CSV series, advancing every
// instrument one bar per tick until the files are exhausted.
func replay(ctx context.Context, eng *runner.Runner, source *data.CSVSource,
	instruments []string, maxTicks int, summary *reporting.SessionSummary,
	health *monitoring.HealthChecker) error {

	for {
		if maxTicks > 0 && summary.Ticks >= maxTicks {
			return nil
		}
		report, err := eng.EvaluateTick(ctx, instruments)
		if err != nil {
			if err == context.Canceled {
				return nil
			}
			return err
		}
		summary.Ticks++
		summary.Signals += len(report.Signals)
		summary.Entries += report.EntriesSubmitted
		summary.Exits += report.ExitsSubmitted
		summary.Drops += report.Drops
		summary.Rejections += report.Rejections
		health.RecordTick()

		advanced := false
		for _, instrument := range instruments {
			if source.Advance(instrument) {
				advanced = true
			}
		}
		if !advanced {
			return nil
		}
	}
}

func finishSummary(summary *reporting.SessionSummary, riskMgr *risk.Manager, book *ledger.Ledger) {
	summary.EndedAt = time.Now()
	summary.ClosedPositions = riskMgr.ClosedPositions()
	summary.Exposure = book.Snapshot()
}

func printReport(summary *reporting.SessionSummary, reportPath string) {
	reporting.NewConsoleReporter().PrintSummary(summary)
	if reportPath != "" {
		if err := reporting.NewExcelReporter().WriteTradeLog(summary, reportPath); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️ failed to write trade log: %v\n", err)
		} else {
			fmt.Printf("📄 Trade log written to %s\n", reportPath)
		}
	}
}

func buildStrategies(cfg *config.EngineConfig, interval time.Duration) ([]strategy.Strategy, error) {
	var strategies []strategy.Strategy

	if sc := cfg.Strategies.TrendBand; sc != nil {
		strategies = append(strategies, strategy.NewTrendBandBreakout("trend-band", strategy.TrendBandConfig{
			ATRPeriod:        sc.ATRPeriod,
			BandMultiplier:   sc.BandMultiplier,
			TrendFilterSMA:   sc.TrendFilterSMA,
			MinTrendStrength: sc.MinTrendStrength,
			MinVolumeRatio:   sc.MinVolumeRatio,
			VolumePeriod:     sc.VolumePeriod,
			Interval:         interval,
		}))
	}
	if sc := cfg.Strategies.Outlier; sc != nil {
		strategies = append(strategies, strategy.NewOutlierReversal("outlier", strategy.OutlierConfig{
			ScoreThreshold: sc.ScoreThreshold,
			VolumePeriod:   sc.VolumePeriod,
			VolumeMultiple: sc.VolumeMultiple,
			CooldownBars:   sc.CooldownBars,
			ReturnLookback: sc.FeatureBars,
			Interval:       interval,
		}, strategy.NewZScoreScorer()))
	}
	if sc := cfg.Strategies.TrendTemplate; sc != nil {
		strategies = append(strategies, strategy.NewTrendTemplate("trend-template", strategy.TrendTemplateConfig{
			FastSMA:          sc.FastSMA,
			MidSMA:           sc.MidSMA,
			SlowSMA:          sc.SlowSMA,
			SlowSlopeBars:    sc.SlowSlopeBars,
			HighLowPeriod:    sc.HighLowPeriod,
			MinAboveLowRatio: sc.MinAboveLowRatio,
			MaxBelowHighPct:  sc.MaxBelowHighPct,
			Interval:         interval,
		}))
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies configured")
	}
	return strategies, nil
}

func riskConfig(p config.RiskParams, interval time.Duration) risk.Config {
	return risk.Config{
		StopLossPct:       p.StopLossPct,
		TakeProfitPct:     p.TakeProfitPct,
		TrailingStopPct:   p.TrailingStopPct,
		MaxHoldingPeriods: p.MaxHoldingPeriods,
		BarInterval:       interval,
	}
}
