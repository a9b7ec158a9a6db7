package strategy

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/strategy-engine/internal/indicators"
	"github.com/quantfold/strategy-engine/pkg/types"
)

func generateBars(closes []float64) []types.OHLCV {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func flatCloses(n int, price float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return closes
}

// TestValidateWindow_InsufficientHistory verifies a short window yields a diagnostic
func TestValidateWindow_InsufficientHistory(t *testing.T) {
	diag := ValidateWindow("s1", "BTCUSDT", generateBars(flatCloses(5, 100)), 10, 0)
	require.NotNil(t, diag)
	assert.Equal(t, DiagInsufficientHistory, diag.Code)
	assert.Equal(t, "s1", diag.StrategyID)
}

// TestValidateWindow_NonMonotonic verifies out-of-order timestamps are flagged
func TestValidateWindow_NonMonotonic(t *testing.T) {
	bars := generateBars(flatCloses(5, 100))
	bars[3].Timestamp = bars[1].Timestamp
	diag := ValidateWindow("s1", "BTCUSDT", bars, 3, 0)
	require.NotNil(t, diag)
	assert.Equal(t, DiagNonMonotonicWindow, diag.Code)
}

// TestValidateWindow_Gap verifies a hole wider than twice the interval is flagged
func TestValidateWindow_Gap(t *testing.T) {
	bars := generateBars(flatCloses(5, 100))
	for i := 3; i < len(bars); i++ {
		bars[i].Timestamp = bars[i].Timestamp.Add(5 * time.Hour)
	}
	diag := ValidateWindow("s1", "BTCUSDT", bars, 3, time.Hour)
	require.NotNil(t, diag)
	assert.Equal(t, DiagWindowGap, diag.Code)
}

// trendFlipCloses builds a series that breaks down once and later breaks out once
func trendFlipCloses() []float64 {
	closes := flatCloses(10, 100)
	closes = append(closes, 80)
	closes = append(closes, flatCloses(10, 80)...)
	closes = append(closes, 120)
	closes = append(closes, flatCloses(10, 122)...)
	return closes
}

// TestTrendBandBreakout_SingleBuyOnBreakout verifies exactly one BUY fires
// across the rally and none repeat while price holds above the band
func TestTrendBandBreakout_SingleBuyOnBreakout(t *testing.T) {
	strat := NewTrendBandBreakout("tb", TrendBandConfig{
		ATRPeriod:      3,
		BandMultiplier: 1.0,
	})
	bars := generateBars(trendFlipCloses())
	cache := indicators.NewCache()

	var buys, sells int
	for end := strat.MinHistory(); end <= len(bars); end++ {
		window := bars[:end]
		cache.SetWindow(window)
		result, err := strat.GenerateSignals("BTCUSDT", window, cache)
		require.NoError(t, err)
		for _, sig := range result.Signals {
			switch sig.Action {
			case types.ActionBuy:
				buys++
				assert.Equal(t, "BAND_BREAKOUT_LONG", sig.ReasonCode)
				assert.InDelta(t, 120.0, sig.ReferencePrice, 1e-9)
			case types.ActionSell:
				sells++
			}
		}
	}
	assert.Equal(t, 1, buys)
	assert.Equal(t, 0, sells)
}

// TestTrendBandBreakout_ShortWindowDiagnostic verifies insufficient history is a diagnostic, not an error
func TestTrendBandBreakout_ShortWindowDiagnostic(t *testing.T) {
	strat := NewTrendBandBreakout("tb", DefaultTrendBandConfig())
	bars := generateBars(flatCloses(5, 100))
	cache := indicators.NewCache()
	cache.SetWindow(bars)

	result, err := strat.GenerateSignals("BTCUSDT", bars, cache)
	require.NoError(t, err)
	assert.Empty(t, result.Signals)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, DiagInsufficientHistory, result.Diagnostics[0].Code)
}

// TestOutlierReversal_NilScorerIsContractError verifies the missing-model contract
func TestOutlierReversal_NilScorerIsContractError(t *testing.T) {
	strat := NewOutlierReversal("out", DefaultOutlierConfig(), nil)
	bars := generateBars(flatCloses(30, 100))
	cache := indicators.NewCache()
	cache.SetWindow(bars)

	_, err := strat.GenerateSignals("BTCUSDT", bars, cache)
	require.Error(t, err)
}

// wiggleCloses alternates around the base so trailing returns have spread
func wiggleCloses(n int, base float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = base
		if i%2 == 1 {
			closes[i] = base + 1
		}
	}
	return closes
}

// TestOutlierReversal_FiresAgainstSpike verifies a confirmed outlier spike produces a SELL
func TestOutlierReversal_FiresAgainstSpike(t *testing.T) {
	closes := append(wiggleCloses(30, 100), 130)
	bars := generateBars(closes)
	bars[len(bars)-1].Volume = 10000 // volume confirmation

	strat := NewOutlierReversal("out", OutlierConfig{
		ScoreThreshold: 0.5,
		VolumePeriod:   10,
		VolumeMultiple: 2.0,
		CooldownBars:   5,
		ReturnLookback: 10,
	}, NewZScoreScorer())
	cache := indicators.NewCache()
	cache.SetWindow(bars)

	result, err := strat.GenerateSignals("BTCUSDT", bars, cache)
	require.NoError(t, err)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, types.ActionSell, result.Signals[0].Action)
	assert.Equal(t, "OUTLIER_SPIKE_SHORT", result.Signals[0].ReasonCode)
}

// TestOutlierReversal_CooldownSuppressesRefires verifies per-instrument bar cooldown
func TestOutlierReversal_CooldownSuppressesRefires(t *testing.T) {
	strat := NewOutlierReversal("out", OutlierConfig{
		ScoreThreshold: 0.5,
		VolumePeriod:   10,
		VolumeMultiple: 2.0,
		CooldownBars:   10,
		ReturnLookback: 10,
	}, NewZScoreScorer())
	cache := indicators.NewCache()

	fired := 0
	closes := wiggleCloses(30, 100)
	for tick := 0; tick < 3; tick++ {
		closes = append(closes, closes[len(closes)-1]+30)
		bars := generateBars(closes)
		bars[len(bars)-1].Volume = 10000
		cache.SetWindow(bars)

		result, err := strat.GenerateSignals("BTCUSDT", bars, cache)
		require.NoError(t, err)
		fired += len(result.Signals)
	}
	assert.Equal(t, 1, fired)
}

// TestOutlierReversal_ConcurrentInstruments verifies one shared instance
// tolerates parallel per-instrument evaluation and keeps cooldown state
// separate per instrument
func TestOutlierReversal_ConcurrentInstruments(t *testing.T) {
	strat := NewOutlierReversal("out", OutlierConfig{
		ScoreThreshold: 0.5,
		VolumePeriod:   10,
		VolumeMultiple: 2.0,
		CooldownBars:   10,
		ReturnLookback: 10,
	}, NewZScoreScorer())

	instruments := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF", "GGG", "HHH"}
	fired := make([]int, len(instruments))

	var wg sync.WaitGroup
	for i, instrument := range instruments {
		wg.Add(1)
		go func(i int, instrument string) {
			defer wg.Done()
			cache := indicators.NewCache()
			closes := wiggleCloses(30, 100)
			for tick := 0; tick < 5; tick++ {
				closes = append(closes, closes[len(closes)-1]+30)
				bars := generateBars(closes)
				bars[len(bars)-1].Volume = 10000
				cache.SetWindow(bars)

				result, err := strat.GenerateSignals(instrument, bars, cache)
				assert.NoError(t, err)
				fired[i] += len(result.Signals)
			}
		}(i, instrument)
	}
	wg.Wait()

	// cooldown is per instrument: each fires once, independent of the others
	for i, instrument := range instruments {
		assert.Equal(t, 1, fired[i], instrument)
	}
}

// TestTrendTemplate_BuyOnQualifyExitOnBreak verifies the qualification transitions
func TestTrendTemplate_BuyOnQualifyExitOnBreak(t *testing.T) {
	cfg := TrendTemplateConfig{
		FastSMA:          5,
		MidSMA:           10,
		SlowSMA:          20,
		SlowSlopeBars:    5,
		HighLowPeriod:    30,
		MinAboveLowRatio: 1.1,
		MaxBelowHighPct:  0.75,
	}
	strat := NewTrendTemplate("tt", cfg)

	// a flat base fails the low-proximity bound, the grind up qualifies,
	// then a sharp break below the MAs disqualifies
	closes := make([]float64, 0, 90)
	closes = append(closes, flatCloses(40, 100)...)
	for i := 1; i <= 40; i++ {
		closes = append(closes, 100+2*float64(i))
	}
	closes = append(closes, flatCloses(10, 120)...)
	bars := generateBars(closes)
	cache := indicators.NewCache()

	var buys, exits int
	for end := strat.MinHistory(); end <= len(bars); end++ {
		window := bars[:end]
		cache.SetWindow(window)
		result, err := strat.GenerateSignals("AAPL", window, cache)
		require.NoError(t, err)
		for _, sig := range result.Signals {
			switch sig.Action {
			case types.ActionBuy:
				buys++
			case types.ActionExit:
				exits++
				assert.Equal(t, "TREND_TEMPLATE_BROKEN", sig.ReasonCode)
			}
		}
	}
	assert.Equal(t, 1, buys)
	assert.Equal(t, 1, exits)
}

// TestZScoreScorer verifies degenerate input scores zero and extreme moves saturate
func TestZScoreScorer(t *testing.T) {
	scorer := NewZScoreScorer()

	_, err := scorer.Predict([]float64{0, 0, 0.02})
	require.Error(t, err)

	score, err := scorer.Predict([]float64{0, 0, 0, 0, 0, 0, 0.02, 1.5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	score, err = scorer.Predict([]float64{0.01, -0.01, 0.01, -0.01, 0.01, 0.30, 0.02, 1.5})
	require.NoError(t, err)
	assert.Greater(t, score, 0.9)
}
