package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/strategy-engine/pkg/types"
)

func generateBars(n int) []types.OHLCV {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, n)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

// TestGetWindow_TrailingBars verifies the window ends at the cursor with exactly lookback bars
func TestGetWindow_TrailingBars(t *testing.T) {
	source := NewCSVSource()
	source.SetSeries("BTCUSDT", generateBars(10))

	window, err := source.GetWindow(context.Background(), "BTCUSDT", 4)
	require.NoError(t, err)
	require.Len(t, window, 4)
	assert.InDelta(t, 109.0, window[3].Close, 1e-9)
	assert.InDelta(t, 106.0, window[0].Close, 1e-9)
}

// TestGetWindow_InsufficientHistory verifies the sentinel wraps short series and unknown instruments
func TestGetWindow_InsufficientHistory(t *testing.T) {
	source := NewCSVSource()
	source.SetSeries("BTCUSDT", generateBars(3))

	_, err := source.GetWindow(context.Background(), "BTCUSDT", 10)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	_, err = source.GetWindow(context.Background(), "ETHUSDT", 1)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

// TestRewindAndAdvance verifies tick-by-tick replay over a loaded series
func TestRewindAndAdvance(t *testing.T) {
	source := NewCSVSource()
	source.SetSeries("BTCUSDT", generateBars(10))
	source.Rewind("BTCUSDT", 4)

	window, err := source.GetWindow(context.Background(), "BTCUSDT", 4)
	require.NoError(t, err)
	assert.InDelta(t, 103.0, window[3].Close, 1e-9)

	require.True(t, source.Advance("BTCUSDT"))
	window, err = source.GetWindow(context.Background(), "BTCUSDT", 4)
	require.NoError(t, err)
	assert.InDelta(t, 104.0, window[3].Close, 1e-9)

	// advance to the end of the series
	steps := 0
	for source.Advance("BTCUSDT") {
		steps++
	}
	assert.Equal(t, 5, steps)
	assert.False(t, source.Advance("BTCUSDT"))
}

// TestLoad_ParsesAndValidates verifies CSV parsing and the monotonic timestamp check
func TestLoad_ParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BTCUSDT.csv")
	content := "timestamp,open,high,low,close,volume\n" +
		"2026-01-01 00:00:00,100,101,99,100,1000\n" +
		"2026-01-01 01:00:00,100,102,100,101,1100\n" +
		"2026-01-01 02:00:00,101,103,101,102,1200\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	source := NewCSVSource()
	require.NoError(t, source.Load("BTCUSDT", path))

	window, err := source.GetWindow(context.Background(), "BTCUSDT", 3)
	require.NoError(t, err)
	assert.InDelta(t, 102.0, window[2].Close, 1e-9)
	assert.InDelta(t, 1200.0, window[2].Volume, 1e-9)
}

// TestLoad_RejectsNonMonotonic verifies out-of-order rows fail the load
func TestLoad_RejectsNonMonotonic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	content := "timestamp,open,high,low,close,volume\n" +
		"2026-01-01 01:00:00,100,101,99,100,1000\n" +
		"2026-01-01 00:00:00,100,102,100,101,1100\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	source := NewCSVSource()
	assert.Error(t, source.Load("BTCUSDT", path))
}

// TestMemoryCache_CopyOnReadWrite verifies callers cannot mutate cached series
func TestMemoryCache_CopyOnReadWrite(t *testing.T) {
	cache := NewMemoryCache()
	bars := generateBars(3)
	cache.Set("BTCUSDT", bars)

	bars[0].Close = -1
	got, ok := cache.Get("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 100.0, got[0].Close, 1e-9)

	got[1].Close = -1
	again, _ := cache.Get("BTCUSDT")
	assert.InDelta(t, 101.0, again[1].Close, 1e-9)

	cache.Clear()
	assert.Zero(t, cache.Size())
}
