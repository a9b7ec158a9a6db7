package strategy

import (
	"math"
	"sync"
	"time"

	"github.com/quantfold/strategy-engine/internal/errors"
	"github.com/quantfold/strategy-engine/internal/indicators"
	"github.com/quantfold/strategy-engine/pkg/types"
)

// OutlierConfig holds the knobs for the statistical-outlier rule-set.
type OutlierConfig struct {
	ScoreThreshold float64 // extremity threshold the score must reach
	VolumePeriod   int     // rolling volume average lookback
	VolumeMultiple float64 // bar volume must exceed average x this
	CooldownBars   int     // elapsed bars between signals per instrument
	ReturnLookback int     // bars of returns fed to the scorer
	Interval       time.Duration
}

func DefaultOutlierConfig() OutlierConfig {
	return OutlierConfig{
		ScoreThreshold: 0.6,
		VolumePeriod:   20,
		VolumeMultiple: 1.5,
		CooldownBars:   10,
		ReturnLookback: 10,
	}
}

// OutlierReversal fires against extreme bars: when an external scorer
// flags the latest bar as an outlier, volume confirms it, and the
// instrument is outside its cooldown window, it trades the reversal of
// the outlier move. The cooldown is measured in elapsed bars, not
// wall-clock time.
type OutlierReversal struct {
	id     string
	cfg    OutlierConfig
	scorer Scorer

	// per-instrument bar counters for the cooldown window. The runner
	// evaluates instruments on parallel goroutines against one shared
	// instance, so map access takes the mutex.
	mu        sync.Mutex
	ticks     map[string]int
	lastFired map[string]int
}

func NewOutlierReversal(id string, cfg OutlierConfig, scorer Scorer) *OutlierReversal {
	if cfg.VolumePeriod <= 0 {
		cfg.VolumePeriod = 20
	}
	if cfg.ReturnLookback <= 0 {
		cfg.ReturnLookback = 10
	}
	return &OutlierReversal{
		id:        id,
		cfg:       cfg,
		scorer:    scorer,
		ticks:     make(map[string]int),
		lastFired: make(map[string]int),
	}
}

func (s *OutlierReversal) ID() string { return s.id }

func (s *OutlierReversal) MinHistory() int {
	min := s.cfg.VolumePeriod + 1
	if s.cfg.ReturnLookback+1 > min {
		min = s.cfg.ReturnLookback + 1
	}
	return min
}

func (s *OutlierReversal) GenerateSignals(instrument string, window []types.OHLCV, cache *indicators.Cache) (*Result, error) {
	tick := s.advanceTick(instrument)

	if diag := ValidateWindow(s.id, instrument, window, s.MinHistory(), s.cfg.Interval); diag != nil {
		return emptyResult(diag), nil
	}
	if s.scorer == nil {
		return nil, errors.NewContractError("strategy", "GenerateSignals", "outlier strategy constructed without a scorer")
	}

	if s.inCooldown(instrument, tick) {
		return &Result{}, nil
	}

	bar := window[len(window)-1]
	prev := window[len(window)-2]

	volAvg, ok := cache.VolumeSMA(window, s.cfg.VolumePeriod).Last()
	if !ok || volAvg <= 0 || bar.Volume < volAvg*s.cfg.VolumeMultiple {
		return &Result{}, nil
	}

	score, err := s.scorer.Predict(s.features(window, volAvg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorCategoryFatal, "strategy", "Predict")
	}
	if math.Abs(score) < s.cfg.ScoreThreshold {
		return &Result{}, nil
	}

	// Trade against the direction of the outlier bar.
	action := types.ActionBuy
	code := "OUTLIER_DIP_LONG"
	if bar.Close > prev.Close {
		action = types.ActionSell
		code = "OUTLIER_SPIKE_SHORT"
	}

	s.markFired(instrument, tick)

	strength := math.Min(math.Abs(score), 1.0)
	return &Result{Signals: []types.Signal{{
		Instrument:     instrument,
		Action:         action,
		Strength:       strength,
		ReferencePrice: bar.Close,
		ReasonCode:     code,
		StrategyID:     s.id,
		GeneratedAt:    bar.Timestamp,
	}}}, nil
}

func (s *OutlierReversal) advanceTick(instrument string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[instrument]++
	return s.ticks[instrument]
}

func (s *OutlierReversal) inCooldown(instrument string, tick int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastFired[instrument]
	return ok && tick-last < s.cfg.CooldownBars
}

func (s *OutlierReversal) markFired(instrument string, tick int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFired[instrument] = tick
}

// features builds the vector handed to the scorer: trailing returns,
// the latest bar's range relative to close, and its volume ratio.
func (s *OutlierReversal) features(window []types.OHLCV, volAvg float64) []float64 {
	n := len(window)
	features := make([]float64, 0, s.cfg.ReturnLookback+2)
	for i := n - s.cfg.ReturnLookback; i < n; i++ {
		prevClose := window[i-1].Close
		if prevClose == 0 {
			features = append(features, 0)
			continue
		}
		features = append(features, (window[i].Close-prevClose)/prevClose)
	}
	bar := window[n-1]
	if bar.Close > 0 {
		features = append(features, (bar.High-bar.Low)/bar.Close)
	} else {
		features = append(features, 0)
	}
	features = append(features, bar.Volume/volAvg)
	return features
}
