package strategy

import (
	"math"
	"time"

	"github.com/quantfold/strategy-engine/internal/indicators"
	"github.com/quantfold/strategy-engine/pkg/types"
)

// TrendTemplateConfig holds the moving-average orderings and 52-period
// high/low proximity bounds a stock must satisfy simultaneously.
type TrendTemplateConfig struct {
	FastSMA          int // default 50
	MidSMA           int // default 150
	SlowSMA          int // default 200
	SlowSlopeBars    int // bars over which the slow MA must be rising
	HighLowPeriod    int // default 252
	MinAboveLowRatio float64 // close must be at least this multiple of the period low
	MaxBelowHighPct  float64 // close must hold at least this fraction of the period high
	Interval         time.Duration
}

func DefaultTrendTemplateConfig() TrendTemplateConfig {
	return TrendTemplateConfig{
		FastSMA:          50,
		MidSMA:           150,
		SlowSMA:          200,
		SlowSlopeBars:    20,
		HighLowPeriod:    252,
		MinAboveLowRatio: 1.3,
		MaxBelowHighPct:  0.75,
	}
}

// TrendTemplate qualifies an instrument only while a fixed conjunction
// of conditions holds: close above the fast and mid MAs, mid above slow,
// slow rising, and close inside the high/low proximity bounds. The
// template is evaluated fresh every tick; any single condition failing
// disqualifies immediately. A BUY fires on the bar the template starts
// holding, an EXIT on the bar it breaks.
type TrendTemplate struct {
	id  string
	cfg TrendTemplateConfig
}

func NewTrendTemplate(id string, cfg TrendTemplateConfig) *TrendTemplate {
	d := DefaultTrendTemplateConfig()
	if cfg.FastSMA <= 0 {
		cfg.FastSMA = d.FastSMA
	}
	if cfg.MidSMA <= 0 {
		cfg.MidSMA = d.MidSMA
	}
	if cfg.SlowSMA <= 0 {
		cfg.SlowSMA = d.SlowSMA
	}
	if cfg.SlowSlopeBars <= 0 {
		cfg.SlowSlopeBars = d.SlowSlopeBars
	}
	if cfg.HighLowPeriod <= 0 {
		cfg.HighLowPeriod = d.HighLowPeriod
	}
	if cfg.MinAboveLowRatio <= 0 {
		cfg.MinAboveLowRatio = d.MinAboveLowRatio
	}
	if cfg.MaxBelowHighPct <= 0 {
		cfg.MaxBelowHighPct = d.MaxBelowHighPct
	}
	return &TrendTemplate{id: id, cfg: cfg}
}

func (s *TrendTemplate) ID() string { return s.id }

func (s *TrendTemplate) MinHistory() int {
	min := s.cfg.SlowSMA + s.cfg.SlowSlopeBars + 1
	if s.cfg.HighLowPeriod+1 > min {
		min = s.cfg.HighLowPeriod + 1
	}
	return min
}

func (s *TrendTemplate) GenerateSignals(instrument string, window []types.OHLCV, cache *indicators.Cache) (*Result, error) {
	if diag := ValidateWindow(s.id, instrument, window, s.MinHistory(), s.cfg.Interval); diag != nil {
		return emptyResult(diag), nil
	}

	last := len(window) - 1
	holdsNow := s.qualifies(window, cache, last)
	heldBefore := s.qualifies(window, cache, last-1)

	bar := window[last]
	switch {
	case holdsNow && !heldBefore:
		fast, _ := cache.SMA(window, s.cfg.FastSMA).Last()
		strength := 0.5
		if fast > 0 {
			// extension above the fast MA caps the strength
			strength = math.Min(0.5+(bar.Close/fast-1)*5, 0.9)
		}
		return &Result{Signals: []types.Signal{{
			Instrument:     instrument,
			Action:         types.ActionBuy,
			Strength:       strength,
			ReferencePrice: bar.Close,
			ReasonCode:     "TREND_TEMPLATE_QUALIFIED",
			StrategyID:     s.id,
			GeneratedAt:    bar.Timestamp,
		}}}, nil
	case !holdsNow && heldBefore:
		return &Result{Signals: []types.Signal{{
			Instrument:     instrument,
			Action:         types.ActionExit,
			Strength:       1.0,
			ReferencePrice: bar.Close,
			ReasonCode:     "TREND_TEMPLATE_BROKEN",
			StrategyID:     s.id,
			GeneratedAt:    bar.Timestamp,
		}}}, nil
	}
	return &Result{}, nil
}

// qualifies evaluates the full conjunction at bar index i. No result is
// memoized between ticks.
func (s *TrendTemplate) qualifies(window []types.OHLCV, cache *indicators.Cache, i int) bool {
	fastS := cache.SMA(window, s.cfg.FastSMA)
	midS := cache.SMA(window, s.cfg.MidSMA)
	slowS := cache.SMA(window, s.cfg.SlowSMA)
	highS := cache.RollingHigh(window, s.cfg.HighLowPeriod)
	lowS := cache.RollingLow(window, s.cfg.HighLowPeriod)

	fast, ok1 := fastS.At(i)
	mid, ok2 := midS.At(i)
	slow, ok3 := slowS.At(i)
	high, ok4 := highS.At(i)
	low, ok5 := lowS.At(i)
	slowBack, ok6 := slowS.At(i - s.cfg.SlowSlopeBars)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return false
	}

	price := window[i].Close
	return price > mid &&
		mid > slow &&
		slow > slowBack &&
		price > fast &&
		price >= s.cfg.MinAboveLowRatio*low &&
		price >= s.cfg.MaxBelowHighPct*high
}
