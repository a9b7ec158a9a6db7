package sizing

import (
	"fmt"
	"math"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// Config holds the risk-budget parameters for position sizing.
type Config struct {
	RiskFraction        float64 // fraction of equity risked per trade
	MaxPositionFraction float64 // cap on single-position notional as fraction of equity
	ATRMultiple         float64 // risk per unit = ATRMultiple x ATR
	MinCashBuffer       float64 // fraction of equity kept out of any single position
	MinUnit             float64 // smallest tradable quantity
}

func DefaultConfig() Config {
	return Config{
		RiskFraction:        0.015,
		MaxPositionFraction: 0.08,
		ATRMultiple:         2.0,
		MinUnit:             1.0,
	}
}

// DropReason says why a signal was not sized into an order. Drops are
// policy outcomes, not errors.
type DropReason string

const (
	DropBelowMinUnit  DropReason = "BELOW_MIN_UNIT"
	DropDegenerateATR DropReason = "DEGENERATE_ATR"
	DropBadPrice      DropReason = "BAD_REFERENCE_PRICE"
)

type Drop struct {
	Reason  DropReason
	Message string
}

// Sizer converts a raw signal plus equity and volatility into a concrete
// quantity under the shared risk budget.
type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) *Sizer {
	if cfg.ATRMultiple <= 0 {
		cfg.ATRMultiple = 2.0
	}
	if cfg.MinUnit <= 0 {
		cfg.MinUnit = 1.0
	}
	return &Sizer{cfg: cfg}
}

// Size computes the final quantity for a signal. Adjustments are
// strategy-supplied scalar multipliers applied multiplicatively; their
// order does not matter. A nil Drop means the quantity is tradable.
func (s *Sizer) Size(sig types.Signal, equity, atr float64, adjustments ...float64) (float64, *Drop) {
	if sig.ReferencePrice <= 0 {
		return 0, &Drop{Reason: DropBadPrice, Message: fmt.Sprintf("reference price %.4f", sig.ReferencePrice)}
	}
	if atr <= 0 {
		return 0, &Drop{Reason: DropDegenerateATR, Message: fmt.Sprintf("ATR %.4f", atr)}
	}

	riskAmount := equity * s.cfg.RiskFraction
	riskPerUnit := s.cfg.ATRMultiple * atr
	quantity := riskAmount / riskPerUnit

	for _, adj := range adjustments {
		if adj > 0 {
			quantity *= adj
		}
	}

	maxNotional := equity * s.cfg.MaxPositionFraction
	if s.cfg.MinCashBuffer > 0 {
		buffered := equity * (1 - s.cfg.MinCashBuffer)
		if buffered < maxNotional {
			maxNotional = buffered
		}
	}
	maxQuantity := maxNotional / sig.ReferencePrice

	quantity = math.Floor(math.Min(quantity, maxQuantity))
	if quantity < s.cfg.MinUnit {
		return 0, &Drop{Reason: DropBelowMinUnit, Message: fmt.Sprintf("sized %.2f below minimum unit %.2f", quantity, s.cfg.MinUnit)}
	}
	return quantity, nil
}

// StrengthScaling maps a signal strength in [0,1] to a multiplier in
// [0.5, 1.5].
func StrengthScaling(strength float64) float64 {
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	return 0.5 + strength
}

// VolatilityDampening shrinks sizing when trailing annualized volatility
// exceeds the threshold. Returns 1 while volatility stays below it.
func VolatilityDampening(window []types.OHLCV, lookback int, threshold, barsPerYear float64) float64 {
	if threshold <= 0 || len(window) < lookback+1 || lookback < 2 {
		return 1
	}

	returns := make([]float64, 0, lookback)
	for i := len(window) - lookback; i < len(window); i++ {
		prev := window[i-1].Close
		if prev <= 0 {
			return 1
		}
		returns = append(returns, window[i].Close/prev-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	annualized := math.Sqrt(variance) * math.Sqrt(barsPerYear)
	if annualized <= threshold {
		return 1
	}
	return threshold / annualized
}

// TrendAmplification boosts sizing with trend strength, capped at
// maxBoost.
func TrendAmplification(trendStrength, maxBoost float64) float64 {
	if trendStrength <= 0 {
		return 1
	}
	boost := 1 + trendStrength
	if maxBoost > 1 && boost > maxBoost {
		return maxBoost
	}
	return boost
}
