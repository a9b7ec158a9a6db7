package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// TestReserve_InstrumentCap verifies the per-instrument cap counts
// pending reservations, not just confirmed exposure
func TestReserve_InstrumentCap(t *testing.T) {
	l := NewLedger(Config{PerInstrumentCap: 10000})

	id, rej := l.Reserve("BTCUSDT", 9000)
	require.Nil(t, rej)
	assert.NotEmpty(t, id)

	_, rej = l.Reserve("BTCUSDT", 2000)
	require.NotNil(t, rej)
	assert.Equal(t, RejectInstrumentCap, rej.Code)

	// another instrument is unaffected
	_, rej = l.Reserve("ETHUSDT", 2000)
	assert.Nil(t, rej)
}

// TestReserve_PortfolioCap verifies the portfolio-wide cap across instruments
func TestReserve_PortfolioCap(t *testing.T) {
	l := NewLedger(Config{PortfolioCap: 15000})

	_, rej := l.Reserve("BTCUSDT", 9000)
	require.Nil(t, rej)
	_, rej = l.Reserve("ETHUSDT", 5000)
	require.Nil(t, rej)

	_, rej = l.Reserve("SOLUSDT", 2000)
	require.NotNil(t, rej)
	assert.Equal(t, RejectPortfolioCap, rej.Code)

	assert.InDelta(t, 14000.0, l.TotalCommitted(), 1e-9)
}

// TestRelease_Idempotent verifies releasing twice, or an unknown id, is harmless
func TestRelease_Idempotent(t *testing.T) {
	l := NewLedger(Config{PerInstrumentCap: 10000})

	id, rej := l.Reserve("BTCUSDT", 9000)
	require.Nil(t, rej)

	l.Release(id)
	assert.Zero(t, l.Committed("BTCUSDT"))
	l.Release(id)
	l.Release("never-existed")
	assert.Zero(t, l.Committed("BTCUSDT"))

	// freed capacity admits the next reservation
	_, rej = l.Reserve("BTCUSDT", 9500)
	assert.Nil(t, rej)
}

// TestConfirm_AdjustsToActualNotional verifies the fill notional replaces the estimate
func TestConfirm_AdjustsToActualNotional(t *testing.T) {
	l := NewLedger(Config{PerInstrumentCap: 10000})

	id, rej := l.Reserve("BTCUSDT", 9000)
	require.Nil(t, rej)
	require.NoError(t, l.Confirm(id, 9150))

	assert.InDelta(t, 9150.0, l.Committed("BTCUSDT"), 1e-9)
}

// TestConfirm_UnknownReservation verifies confirming a released id fails loudly
func TestConfirm_UnknownReservation(t *testing.T) {
	l := NewLedger(Config{})
	id, _ := l.Reserve("BTCUSDT", 100)
	l.Release(id)
	assert.Error(t, l.Confirm(id, 100))
}

// TestReserveExit_BypassesCaps verifies exit reservations are admitted
// at full caps and never add notional
func TestReserveExit_BypassesCaps(t *testing.T) {
	l := NewLedger(Config{PerInstrumentCap: 1000})

	id, rej := l.Reserve("BTCUSDT", 1000)
	require.Nil(t, rej)
	require.NoError(t, l.Confirm(id, 1000))

	exitID := l.ReserveExit("BTCUSDT")
	assert.NotEmpty(t, exitID)
	assert.InDelta(t, 1000.0, l.Committed("BTCUSDT"), 1e-9)

	require.NoError(t, l.Confirm(exitID, 0))
	l.CloseExposure(id)
	assert.Zero(t, l.Committed("BTCUSDT"))
}

// TestSnapshot verifies per-instrument exposure records
func TestSnapshot(t *testing.T) {
	l := NewLedger(Config{})
	idA, _ := l.Reserve("BTCUSDT", 500)
	l.Reserve("ETHUSDT", 300)
	require.NoError(t, l.Confirm(idA, 500))

	records := l.Snapshot()
	byInstrument := make(map[string]float64)
	for _, rec := range records {
		byInstrument[rec.Instrument] = rec.CommittedNotional
	}
	assert.InDelta(t, 500.0, byInstrument["BTCUSDT"], 1e-9)
	assert.InDelta(t, 300.0, byInstrument["ETHUSDT"], 1e-9)
}

func entryOrder(notional float64) types.OrderRequest {
	return types.OrderRequest{
		Instrument:       "BTCUSDT",
		Action:           types.ActionBuy,
		Quantity:         1,
		NotionalEstimate: notional,
		StrategyID:       "s1",
	}
}

// TestGate_PerTradeCap verifies the gate rejects oversized single orders
// before consulting the ledger
func TestGate_PerTradeCap(t *testing.T) {
	l := NewLedger(Config{})
	g := NewGate(GateConfig{PerTradeNotionalCap: 1000}, l)

	_, rej := g.AdmitEntry(entryOrder(1500))
	require.NotNil(t, rej)
	assert.Equal(t, RejectPerTradeCap, rej.Code)
	assert.Zero(t, l.TotalCommitted())

	id, rej := g.AdmitEntry(entryOrder(900))
	require.Nil(t, rej)
	assert.NotEmpty(t, id)
}

// TestReserve_MaxActivePositions verifies the position-count limit is
// enforced at reservation time, so in-flight entries count before any
// order fills
func TestReserve_MaxActivePositions(t *testing.T) {
	l := NewLedger(Config{MaxActivePositions: 2})
	g := NewGate(GateConfig{}, l)

	idA, rej := g.AdmitEntry(entryOrder(100))
	require.Nil(t, rej)
	_, rej = g.AdmitEntry(entryOrder(100))
	require.Nil(t, rej)

	// both slots held by pending reservations: third entry refused
	_, rej = g.AdmitEntry(entryOrder(100))
	require.NotNil(t, rej)
	assert.Equal(t, RejectMaxPositions, rej.Code)

	// confirming keeps the slot occupied
	require.NoError(t, l.Confirm(idA, 100))
	_, rej = g.AdmitEntry(entryOrder(100))
	require.NotNil(t, rej)
	assert.Equal(t, RejectMaxPositions, rej.Code)

	// exit reservations never consume a slot
	exitID := l.ReserveExit("BTCUSDT")
	assert.NotEmpty(t, exitID)

	// closing the confirmed exposure frees its slot
	l.CloseExposure(idA)
	_, rej = g.AdmitEntry(entryOrder(100))
	assert.Nil(t, rej)
}

// TestReserve_MaxActivePositionsConcurrent verifies parallel admissions
// cannot race past the position-count limit
func TestReserve_MaxActivePositionsConcurrent(t *testing.T) {
	l := NewLedger(Config{MaxActivePositions: 3})

	var wg sync.WaitGroup
	admitted := make([]bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, rej := l.Reserve("BTCUSDT", 100)
			admitted[i] = rej == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range admitted {
		if ok {
			count++
		}
	}
	assert.Equal(t, 3, count)
}

// TestGate_ExitRequiresPosition verifies exits are refused without a held position
func TestGate_ExitRequiresPosition(t *testing.T) {
	l := NewLedger(Config{})
	g := NewGate(GateConfig{}, l)

	_, rej := g.AdmitExit(entryOrder(0), false)
	require.NotNil(t, rej)
	assert.Equal(t, RejectNoPosition, rej.Code)

	id, rej := g.AdmitExit(entryOrder(0), true)
	require.Nil(t, rej)
	assert.NotEmpty(t, id)
}
