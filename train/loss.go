package train

import (
	"math"

	"github.com/poiesic/relevance/model"
)

// LossFunc scores a single logit against its binary label.
type LossFunc interface {
	// Loss returns the loss of logit z for label y.
	Loss(z float64, y bool) float64

	// Gradient returns d(Loss)/dz.
	Gradient(z float64, y bool) float64
}

// BinaryCrossEntropy is binary cross-entropy computed directly from logits.
// It never evaluates log(sigmoid(z)), so large logits do not overflow.
type BinaryCrossEntropy struct{}

var _ LossFunc = BinaryCrossEntropy{}

// Loss returns max(z,0) - z*y + log(1 + exp(-|z|)).
func (BinaryCrossEntropy) Loss(z float64, y bool) float64 {
	return math.Max(z, 0) - z*target(y) + math.Log1p(math.Exp(-math.Abs(z)))
}

// Gradient returns sigmoid(z) - y.
func (BinaryCrossEntropy) Gradient(z float64, y bool) float64 {
	return model.Sigmoid(z) - target(y)
}

func target(y bool) float64 {
	if y {
		return 1
	}
	return 0
}
