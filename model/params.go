package model

import (
	"fmt"
	"math/rand/v2"
)

// params holds a flat parameter vector and implements the mutation half of
// the Classifier interface for every variant.
type params struct {
	values []float64
}

func (p *params) Parameters() []float64 {
	out := make([]float64, len(p.values))
	copy(out, p.values)
	return out
}

func (p *params) ApplyGradient(update []float64) error {
	if len(update) != len(p.values) {
		return fmt.Errorf("%w: got %d, want %d", ErrParameterShape, len(update), len(p.values))
	}
	for i, u := range update {
		p.values[i] += u
	}
	return nil
}

func (p *params) SetParameters(values []float64) error {
	if len(values) != len(p.values) {
		return fmt.Errorf("%w: got %d, want %d", ErrParameterShape, len(values), len(p.values))
	}
	copy(p.values, values)
	return nil
}

func (p *params) NumParameters() int {
	return len(p.values)
}

// newRand returns the generator used to initialize a classifier. The stream
// constant keeps initialization independent of the generators used for
// splitting and shuffling with the same seed.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0x5eed1417a7e5))
}

// fillNormal fills dst with N(0, std) samples.
func fillNormal(r *rand.Rand, dst []float64, std float64) {
	for i := range dst {
		dst[i] = r.NormFloat64() * std
	}
}

// fillUniform fills dst with samples from U(-limit, limit).
func fillUniform(r *rand.Rand, dst []float64, limit float64) {
	for i := range dst {
		dst[i] = (r.Float64()*2 - 1) * limit
	}
}
