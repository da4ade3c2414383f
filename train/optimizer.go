package train

import (
	"fmt"
	"math"

	"github.com/poiesic/relevance/model"
)

// Optimizer turns a batch gradient into a parameter update.
type Optimizer interface {
	// Step updates the classifier's parameters from the mean batch gradient.
	Step(c model.Classifier, grad []float64) error
}

// AdamW is Adam with decoupled weight decay. Moment estimates are kept in
// float64 whatever precision the loop computes activations in.
type AdamW struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64

	m    []float64
	v    []float64
	step int
}

var _ Optimizer = (*AdamW)(nil)

// NewAdamW returns an AdamW optimizer with betas (0.9, 0.999) and epsilon 1e-8.
func NewAdamW(learningRate, weightDecay float64) *AdamW {
	return &AdamW{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  weightDecay,
	}
}

// Steps returns the number of updates applied so far.
func (o *AdamW) Steps() int {
	return o.step
}

// Step applies one AdamW update to c.
func (o *AdamW) Step(c model.Classifier, grad []float64) error {
	update, err := o.Update(c.Parameters(), grad)
	if err != nil {
		return err
	}
	return c.ApplyGradient(update)
}

// Update advances the moment estimates with grad and returns the delta to add
// to params.
func (o *AdamW) Update(params, grad []float64) ([]float64, error) {
	if len(params) != len(grad) {
		return nil, fmt.Errorf("%w: gradient has %d values for %d parameters", model.ErrParameterShape, len(grad), len(params))
	}
	if o.m == nil {
		o.m = make([]float64, len(grad))
		o.v = make([]float64, len(grad))
	}
	if len(o.m) != len(grad) {
		return nil, fmt.Errorf("%w: optimizer state has %d values, gradient %d", model.ErrParameterShape, len(o.m), len(grad))
	}

	o.step++
	c1 := 1 - math.Pow(o.Beta1, float64(o.step))
	c2 := 1 - math.Pow(o.Beta2, float64(o.step))

	update := make([]float64, len(grad))
	for i, g := range grad {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*g
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*g*g
		mHat := o.m[i] / c1
		vHat := o.v[i] / c2
		update[i] = -o.LearningRate * (mHat/(math.Sqrt(vHat)+o.Epsilon) + o.WeightDecay*params[i])
	}
	return update, nil
}
