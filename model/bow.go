package model

import (
	"context"
)

// HashedBOW scores hashed bag-of-words features with a linear head.
// Parameter layout: weights[0:Dimensions], bias[Dimensions].
type HashedBOW struct {
	params
	spec Spec
}

var _ Classifier = (*HashedBOW)(nil)

func newHashedBOW(spec Spec, seed uint64, _ Deps) (Classifier, error) {
	c := &HashedBOW{
		params: params{values: make([]float64, spec.Dimensions+1)},
		spec:   spec,
	}
	fillNormal(newRand(seed), c.values[:spec.Dimensions], 0.01)
	return c, nil
}

func (c *HashedBOW) Architecture() string {
	return ArchHashedBOW
}

func (c *HashedBOW) Spec() Spec {
	return c.spec
}

func (c *HashedBOW) Encode(ctx context.Context, texts []string) ([]Encoding, error) {
	out := make([]Encoding, len(texts))
	for i, text := range texts {
		out[i] = hashFeatures(Tokenize(text, c.spec.MaxSequenceLength), c.spec.Dimensions)
	}
	return out, nil
}

func (c *HashedBOW) Forward(x Encoding, p Precision) float64 {
	return dot(x, c.values, 0, c.values[c.spec.Dimensions], p)
}

func (c *HashedBOW) Backward(x Encoding, dlogit float64, p Precision, grad []float64) {
	for k, v := range x.Values {
		grad[x.index(k)] += dlogit * v
	}
	grad[c.spec.Dimensions] += dlogit
}

func (c *HashedBOW) Score(batch []Encoding) []float64 {
	logits := make([]float64, len(batch))
	for i, x := range batch {
		logits[i] = c.Forward(x, FullPrecision)
	}
	return logits
}
