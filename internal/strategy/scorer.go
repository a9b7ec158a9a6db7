package strategy

// Scorer is an opaque prediction model consumed by ML-based strategy
// variants. The engine never assumes a model family, only this contract;
// training lives outside the core.
type Scorer interface {
	// Predict returns a score for one feature vector. Higher magnitude
	// means a more extreme observation.
	Predict(features []float64) (float64, error)
}
