package model

import (
	"context"
	"fmt"
	"math"

	"github.com/patrickmn/go-cache"
)

// EmbeddingLinear scores vectors from an external embedder with a linear
// head. Vectors are L2-normalized and cached per text, so repeated epochs
// over the same partition call the embedder once per distinct text.
// Parameter layout: weights[0:Dimensions], bias[Dimensions].
type EmbeddingLinear struct {
	params
	spec  Spec
	deps  Deps
	cache *cache.Cache
}

var _ Classifier = (*EmbeddingLinear)(nil)

func newEmbeddingLinear(spec Spec, seed uint64, deps Deps) (Classifier, error) {
	if deps.Embedder == nil {
		return nil, ErrEmbedderRequired
	}
	c := &EmbeddingLinear{
		params: params{values: make([]float64, spec.Dimensions+1)},
		spec:   spec,
		deps:   deps,
		cache:  cache.New(cache.NoExpiration, 0),
	}
	fillNormal(newRand(seed), c.values[:spec.Dimensions], 0.01)
	return c, nil
}

func (c *EmbeddingLinear) Architecture() string {
	return ArchEmbedding
}

func (c *EmbeddingLinear) Spec() Spec {
	return c.spec
}

func (c *EmbeddingLinear) Encode(ctx context.Context, texts []string) ([]Encoding, error) {
	out := make([]Encoding, len(texts))

	var (
		missing   []string
		positions = make(map[string][]int)
	)
	for i, text := range texts {
		key := c.cacheKey(text)
		if v, ok := c.cache.Get(key); ok {
			out[i] = Encoding{Values: v.([]float64)}
			continue
		}
		if _, seen := positions[key]; !seen {
			missing = append(missing, c.truncate(text))
		}
		positions[key] = append(positions[key], i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.deps.Embedder.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: expected %d embeddings, received %d", ErrEmbeddingShape, len(missing), len(vectors))
	}

	for k, text := range missing {
		if len(vectors[k]) != c.spec.Dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingShape, len(vectors[k]), c.spec.Dimensions)
		}
		values := NormalizeVector(vectors[k])
		key := c.cacheKey(text)
		c.cache.Set(key, values, cache.NoExpiration)
		for _, i := range positions[key] {
			out[i] = Encoding{Values: values}
		}
	}
	return out, nil
}

// truncate keeps text up to the end of its MaxSequenceLength-th token.
// The kept prefix is sent to the embedder as written.
func (c *EmbeddingLinear) truncate(text string) string {
	return TruncateText(text, c.spec.MaxSequenceLength)
}

func (c *EmbeddingLinear) cacheKey(text string) string {
	return c.truncate(text)
}

func (c *EmbeddingLinear) Forward(x Encoding, p Precision) float64 {
	return dot(x, c.values, 0, c.values[c.spec.Dimensions], p)
}

func (c *EmbeddingLinear) Backward(x Encoding, dlogit float64, p Precision, grad []float64) {
	for k, v := range x.Values {
		grad[k] += dlogit * v
	}
	grad[c.spec.Dimensions] += dlogit
}

func (c *EmbeddingLinear) Score(batch []Encoding) []float64 {
	logits := make([]float64, len(batch))
	for i, x := range batch {
		logits[i] = c.Forward(x, FullPrecision)
	}
	return logits
}

// NormalizeVector converts an embedding to float64 and scales it to unit
// length. The zero vector is returned unchanged.
func NormalizeVector(v []float32) []float64 {
	result := make([]float64, len(v))
	var magnitude float64
	for i, val := range v {
		result[i] = float64(val)
		magnitude += result[i] * result[i]
	}
	magnitude = math.Sqrt(magnitude)

	// Can't normalize zero vector
	if magnitude == 0 {
		return result
	}

	for i := range result {
		result[i] /= magnitude
	}
	return result
}
