package model

import (
	"context"
	"math"
)

// HashedMLP encodes hashed words and bigrams through one tanh hidden layer
// and scores the hidden activations with a linear head.
//
// Parameter layout, with D = Dimensions and H = HiddenSize:
//
//	W1[j*D+i]  hidden weights   H*D
//	b1[j]      hidden biases    H
//	w2[j]      head weights     H
//	b2         head bias        1
type HashedMLP struct {
	params
	spec Spec
}

var _ Classifier = (*HashedMLP)(nil)

func newHashedMLP(spec Spec, seed uint64, _ Deps) (Classifier, error) {
	d, h := spec.Dimensions, spec.HiddenSize
	c := &HashedMLP{
		params: params{values: make([]float64, h*d+2*h+1)},
		spec:   spec,
	}
	r := newRand(seed)
	fillUniform(r, c.values[:h*d], math.Sqrt(6/float64(d+h)))
	fillUniform(r, c.values[h*d+h:h*d+2*h], math.Sqrt(6/float64(h+1)))
	return c, nil
}

func (c *HashedMLP) Architecture() string {
	return ArchHashedMLP
}

func (c *HashedMLP) Spec() Spec {
	return c.spec
}

func (c *HashedMLP) Encode(ctx context.Context, texts []string) ([]Encoding, error) {
	out := make([]Encoding, len(texts))
	for i, text := range texts {
		tokens := Tokenize(text, c.spec.MaxSequenceLength)
		out[i] = hashFeatures(append(tokens, bigrams(tokens)...), c.spec.Dimensions)
	}
	return out, nil
}

func (c *HashedMLP) offsets() (b1, w2, b2 int) {
	d, h := c.spec.Dimensions, c.spec.HiddenSize
	return h * d, h*d + h, h*d + 2*h
}

// hidden computes the tanh activations of the hidden layer.
func (c *HashedMLP) hidden(x Encoding, p Precision) []float64 {
	d, h := c.spec.Dimensions, c.spec.HiddenSize
	b1, _, _ := c.offsets()
	act := make([]float64, h)
	for j := 0; j < h; j++ {
		z := dot(x, c.values, j*d, c.values[b1+j], p)
		act[j] = p.Round(math.Tanh(z))
	}
	return act
}

func (c *HashedMLP) Forward(x Encoding, p Precision) float64 {
	_, w2, b2 := c.offsets()
	act := c.hidden(x, p)
	return dot(Encoding{Values: act}, c.values, w2, c.values[b2], p)
}

func (c *HashedMLP) Backward(x Encoding, dlogit float64, p Precision, grad []float64) {
	d, h := c.spec.Dimensions, c.spec.HiddenSize
	b1, w2, b2 := c.offsets()
	act := c.hidden(x, p)

	grad[b2] += dlogit
	for j := 0; j < h; j++ {
		grad[w2+j] += dlogit * act[j]
		dz := p.Round(dlogit * c.values[w2+j] * (1 - act[j]*act[j]))
		grad[b1+j] += dz
		for k, v := range x.Values {
			grad[j*d+x.index(k)] += dz * v
		}
	}
}

func (c *HashedMLP) Score(batch []Encoding) []float64 {
	logits := make([]float64, len(batch))
	for i, x := range batch {
		logits[i] = c.Forward(x, FullPrecision)
	}
	return logits
}
