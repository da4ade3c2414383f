package model

import (
	"context"
	"fmt"
	"math"

	"github.com/poiesic/relevance/ai"
)

// Architecture tags. They are written into persisted artifacts.
const (
	ArchHashedBOW = "hashed-bow"
	ArchHashedMLP = "hashed-mlp"
	ArchEmbedding = "embedding"
)

// Classifier is the capability set shared by every encoder variant.
type Classifier interface {
	// Architecture returns the variant tag.
	Architecture() string

	// Spec returns the shape of the classifier.
	Spec() Spec

	// Encode turns texts into fixed-length representations, in input order.
	Encode(ctx context.Context, texts []string) ([]Encoding, error)

	// Forward computes the logit of one encoded example.
	Forward(x Encoding, p Precision) float64

	// Backward adds dlogit * d(logit)/d(params) for one example into grad,
	// which must have NumParameters elements.
	Backward(x Encoding, dlogit float64, p Precision, grad []float64)

	// Score returns full-precision logits for a batch.
	Score(batch []Encoding) []float64

	// Parameters returns a copy of the parameter vector.
	Parameters() []float64

	// ApplyGradient adds update element-wise to the parameters.
	ApplyGradient(update []float64) error

	// SetParameters replaces the parameters with an exact copy of params.
	SetParameters(params []float64) error

	// NumParameters returns the length of the parameter vector.
	NumParameters() int
}

// Spec describes the shape of a classifier. It is the explicit configuration
// passed to construction and is stored alongside persisted parameters.
type Spec struct {
	Architecture      string
	Dimensions        int    // hash buckets, or embedding size for the embedding variant
	HiddenSize        int    // hashed-mlp only
	MaxSequenceLength int    // tokens kept per text
	EmbeddingModel    string // embedding only; informational
}

// DefaultSpec returns the default shape for an architecture.
func DefaultSpec(arch string) Spec {
	spec := Spec{
		Architecture:      arch,
		Dimensions:        4096,
		MaxSequenceLength: 128,
	}
	switch arch {
	case ArchHashedMLP:
		spec.HiddenSize = 16
	case ArchEmbedding:
		spec.Dimensions = 768
	}
	return spec
}

// Validate checks that s describes a buildable classifier.
func (s Spec) Validate() error {
	if _, ok := factories[s.Architecture]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownArchitecture, s.Architecture)
	}
	if s.Dimensions < 1 {
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidSpec)
	}
	if s.MaxSequenceLength < 1 {
		return fmt.Errorf("%w: max sequence length must be positive", ErrInvalidSpec)
	}
	if s.Architecture == ArchHashedMLP && s.HiddenSize < 1 {
		return fmt.Errorf("%w: hidden size must be positive", ErrInvalidSpec)
	}
	return nil
}

// NumParameters returns the length of the parameter vector s describes.
// ok is false when the count does not fit in an int.
func (s Spec) NumParameters() (n int, ok bool) {
	d, h := s.Dimensions, s.HiddenSize
	if d < 1 || d == math.MaxInt {
		return 0, false
	}
	if s.Architecture != ArchHashedMLP {
		return d + 1, true
	}
	if h < 1 || d > math.MaxInt-2 || h > (math.MaxInt-1)/(d+2) {
		return 0, false
	}
	return h*(d+2) + 1, true
}

// Deps carries the external collaborators some variants need.
type Deps struct {
	Embedder ai.Embedder
}

// Sigmoid is the numerically stable logistic function.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Decide turns a logit into a binary relevance decision.
func Decide(logit float64) bool {
	return Sigmoid(logit) > 0.5
}
