package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/strategy-engine/pkg/data"
	"github.com/quantfold/strategy-engine/pkg/types"
)

// TestOrderResultFromHistory_Filled verifies a filled history row maps to ACCEPTED
func TestOrderResultFromHistory_Filled(t *testing.T) {
	payload := map[string]interface{}{
		"list": []map[string]interface{}{{
			"orderStatus": "Filled",
			"avgPrice":    "101.25",
			"cumExecQty":  "0.5",
		}},
	}

	result, err := orderResultFromHistory(payload)
	require.NoError(t, err)
	assert.Equal(t, types.OrderAccepted, result.Status)
	assert.InDelta(t, 101.25, result.FillPrice, 1e-9)
	assert.InDelta(t, 0.5, result.FillQuantity, 1e-9)
}

// TestOrderResultFromHistory_Rejected verifies cancelled and rejected rows carry the reason
func TestOrderResultFromHistory_Rejected(t *testing.T) {
	payload := map[string]interface{}{
		"list": []map[string]interface{}{{
			"orderStatus":  "Rejected",
			"rejectReason": "EC_InsufficientBalance",
		}},
	}

	result, err := orderResultFromHistory(payload)
	require.NoError(t, err)
	assert.Equal(t, types.OrderRejected, result.Status)
	assert.Equal(t, "EC_InsufficientBalance", result.Reason)
}

// TestOrderResultFromHistory_Unsettled verifies an empty list and an in-flight
// status both stay PENDING
func TestOrderResultFromHistory_Unsettled(t *testing.T) {
	result, err := orderResultFromHistory(map[string]interface{}{"list": []interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, types.OrderPending, result.Status)

	payload := map[string]interface{}{
		"list": []map[string]interface{}{{"orderStatus": "New"}},
	}
	result, err = orderResultFromHistory(payload)
	require.NoError(t, err)
	assert.Equal(t, types.OrderPending, result.Status)
}

// TestBarsFromKlines verifies the newest-first payload comes back oldest first
func TestBarsFromKlines(t *testing.T) {
	payload := map[string]interface{}{
		"list": [][]string{
			{"1767229200000", "101", "103", "100", "102", "1100", "112200"},
			{"1767225600000", "100", "102", "99", "101", "1000", "101000"},
		},
	}

	bars, err := barsFromKlines(payload, "BTCUSDT", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.InDelta(t, 101.0, bars[0].Close, 1e-9)
	assert.InDelta(t, 102.0, bars[1].Close, 1e-9)
	assert.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
}

// TestBarsFromKlines_InsufficientHistory verifies short payloads wrap the sentinel
func TestBarsFromKlines_InsufficientHistory(t *testing.T) {
	payload := map[string]interface{}{
		"list": [][]string{{"1767225600000", "100", "102", "99", "101", "1000", "101000"}},
	}

	_, err := barsFromKlines(payload, "BTCUSDT", 5)
	assert.True(t, errors.Is(err, data.ErrInsufficientHistory))
}

// TestNewBybitGateway_Defaults verifies category and interval fall back sanely
func TestNewBybitGateway_Defaults(t *testing.T) {
	gw := NewBybitGateway(BybitConfig{APIKey: "k", APISecret: "s"})
	assert.Equal(t, "spot", gw.category)
	assert.Equal(t, "60", gw.interval)
}
