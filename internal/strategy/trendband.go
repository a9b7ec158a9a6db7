package strategy

import (
	"math"
	"time"

	"github.com/quantfold/strategy-engine/internal/indicators"
	"github.com/quantfold/strategy-engine/pkg/types"
)

// TrendBandConfig holds the knobs for the trend-band breakout rule-set.
type TrendBandConfig struct {
	ATRPeriod        int
	BandMultiplier   float64
	TrendFilterSMA   int     // long-term MA filter; 0 disables
	MinTrendStrength float64 // minimum band slope relative to price
	MinVolumeRatio   float64 // bar volume vs rolling average; 0 disables
	VolumePeriod     int
	Interval         time.Duration // expected bar spacing for gap checks
}

func DefaultTrendBandConfig() TrendBandConfig {
	return TrendBandConfig{
		ATRPeriod:      14,
		BandMultiplier: 3.0,
		VolumePeriod:   10,
	}
}

// TrendBandBreakout trades flips of the sticky volatility band: a BUY
// fires on the first bar where the close crosses above the active band
// anchor, a SELL on the first cross below it. While price stays on one
// side of the band no further signals fire.
type TrendBandBreakout struct {
	id  string
	cfg TrendBandConfig
}

func NewTrendBandBreakout(id string, cfg TrendBandConfig) *TrendBandBreakout {
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	if cfg.BandMultiplier <= 0 {
		cfg.BandMultiplier = 3.0
	}
	if cfg.VolumePeriod <= 0 {
		cfg.VolumePeriod = 10
	}
	return &TrendBandBreakout{id: id, cfg: cfg}
}

func (s *TrendBandBreakout) ID() string { return s.id }

func (s *TrendBandBreakout) MinHistory() int {
	min := s.cfg.ATRPeriod + 10
	if s.cfg.TrendFilterSMA > min {
		min = s.cfg.TrendFilterSMA
	}
	return min
}

func (s *TrendBandBreakout) GenerateSignals(instrument string, window []types.OHLCV, cache *indicators.Cache) (*Result, error) {
	if diag := ValidateWindow(s.id, instrument, window, s.MinHistory(), s.cfg.Interval); diag != nil {
		return emptyResult(diag), nil
	}

	band := cache.TrendBand(window, s.cfg.ATRPeriod, s.cfg.BandMultiplier)
	last := len(window) - 1
	if last < band.Line.ValidFrom+1 {
		return emptyResult(&Diagnostic{
			StrategyID: s.id,
			Instrument: instrument,
			Code:       DiagInsufficientHistory,
			Message:    "band still warming up",
		}), nil
	}

	crossedUp := !band.Up[last-1] && band.Up[last]
	crossedDown := band.Up[last-1] && !band.Up[last]
	if !crossedUp && !crossedDown {
		return &Result{}, nil
	}

	bar := window[last]

	// Band slope relative to price filters out flat, noisy flips.
	lineNow, _ := band.Line.At(last)
	linePrev, _ := band.Line.At(last - 1)
	strength := math.Abs(lineNow-linePrev) / bar.Close
	if strength < s.cfg.MinTrendStrength {
		return &Result{}, nil
	}

	if s.cfg.MinVolumeRatio > 0 {
		volAvg, ok := cache.VolumeSMA(window, s.cfg.VolumePeriod).Last()
		if ok && bar.Volume < volAvg*s.cfg.MinVolumeRatio {
			return &Result{}, nil
		}
	}

	if s.cfg.TrendFilterSMA > 0 {
		sma, ok := cache.SMA(window, s.cfg.TrendFilterSMA).Last()
		if ok {
			if crossedUp && bar.Close < sma {
				return &Result{}, nil
			}
			if crossedDown && bar.Close > sma {
				return &Result{}, nil
			}
		}
	}

	action := types.ActionBuy
	code := "BAND_BREAKOUT_LONG"
	if crossedDown {
		action = types.ActionSell
		code = "BAND_BREAKDOWN_SHORT"
	}

	confidence := math.Min(0.5+strength*50, 0.9)

	return &Result{Signals: []types.Signal{{
		Instrument:     instrument,
		Action:         action,
		Strength:       confidence,
		ReferencePrice: bar.Close,
		ReasonCode:     code,
		StrategyID:     s.id,
		GeneratedAt:    bar.Timestamp,
	}}}, nil
}
