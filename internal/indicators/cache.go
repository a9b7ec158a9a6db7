package indicators

import (
	"fmt"
	"time"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// Cache memoizes indicator series for one instrument's current window.
// Entries are keyed by indicator and period and dropped whenever a newer
// bar arrives, so a cached series is always aligned with the window the
// strategies are reading.
type Cache struct {
	lastBar time.Time
	entries map[string]any
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]any)}
}

// SetWindow points the cache at the current window. If the window ends
// on a newer bar than the cached one, all entries are invalidated.
func (c *Cache) SetWindow(data []types.OHLCV) {
	if len(data) == 0 {
		return
	}
	last := data[len(data)-1].Timestamp
	if !last.Equal(c.lastBar) {
		c.entries = make(map[string]any)
		c.lastBar = last
	}
}

// Size returns the number of cached series.
func (c *Cache) Size() int {
	return len(c.entries)
}

func (c *Cache) memo(key string, compute func() any) any {
	if v, ok := c.entries[key]; ok {
		return v
	}
	v := compute()
	c.entries[key] = v
	return v
}

func (c *Cache) ATR(data []types.OHLCV, period int) Series {
	key := fmt.Sprintf("atr:%d", period)
	return c.memo(key, func() any { return ATRSeries(data, period) }).(Series)
}

func (c *Cache) SMA(data []types.OHLCV, period int) Series {
	key := fmt.Sprintf("sma:%d", period)
	return c.memo(key, func() any { return SMASeries(data, period) }).(Series)
}

func (c *Cache) EMA(data []types.OHLCV, period int) Series {
	key := fmt.Sprintf("ema:%d", period)
	return c.memo(key, func() any { return EMASeries(data, period) }).(Series)
}

func (c *Cache) RSI(data []types.OHLCV, period int) Series {
	key := fmt.Sprintf("rsi:%d", period)
	return c.memo(key, func() any { return RSISeries(data, period) }).(Series)
}

func (c *Cache) VolumeSMA(data []types.OHLCV, period int) Series {
	key := fmt.Sprintf("volsma:%d", period)
	return c.memo(key, func() any { return VolumeSMASeries(data, period) }).(Series)
}

func (c *Cache) RollingHigh(data []types.OHLCV, period int) Series {
	key := fmt.Sprintf("rhigh:%d", period)
	return c.memo(key, func() any { return RollingHighSeries(data, period) }).(Series)
}

func (c *Cache) RollingLow(data []types.OHLCV, period int) Series {
	key := fmt.Sprintf("rlow:%d", period)
	return c.memo(key, func() any { return RollingLowSeries(data, period) }).(Series)
}

func (c *Cache) TrendBand(data []types.OHLCV, period int, multiplier float64) TrendBand {
	key := fmt.Sprintf("band:%d:%.4f", period, multiplier)
	return c.memo(key, func() any { return TrendBandSeries(data, period, multiplier) }).(TrendBand)
}
