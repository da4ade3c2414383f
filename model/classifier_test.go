package model_test

import (
	"context"
	"math"
	"testing"

	"github.com/poiesic/relevance/ai/mock"
	"github.com/poiesic/relevance/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T, arch string, seed uint64) model.Classifier {
	t.Helper()
	spec := model.DefaultSpec(arch)
	deps := model.Deps{}
	if arch == model.ArchEmbedding {
		spec.Dimensions = 32
		deps.Embedder = mock.NewMockEmbedder(32)
	} else {
		spec.Dimensions = 256
	}
	c, err := model.New(spec, seed, deps)
	require.NoError(t, err)
	return c
}

func TestNew_UnknownArchitecture(t *testing.T) {
	_, err := model.New(model.Spec{Architecture: "transformer", Dimensions: 8, MaxSequenceLength: 8}, 1, model.Deps{})
	assert.ErrorIs(t, err, model.ErrUnknownArchitecture)
}

func TestNew_InvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec model.Spec
	}{
		{"zero dimensions", model.Spec{Architecture: model.ArchHashedBOW, MaxSequenceLength: 8}},
		{"zero sequence length", model.Spec{Architecture: model.ArchHashedBOW, Dimensions: 8}},
		{"mlp without hidden layer", model.Spec{Architecture: model.ArchHashedMLP, Dimensions: 8, MaxSequenceLength: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.New(tt.spec, 1, model.Deps{})
			assert.ErrorIs(t, err, model.ErrInvalidSpec)
		})
	}
}

func TestNew_EmbeddingRequiresEmbedder(t *testing.T) {
	_, err := model.New(model.DefaultSpec(model.ArchEmbedding), 1, model.Deps{})
	assert.ErrorIs(t, err, model.ErrEmbedderRequired)
}

func TestArchitectures(t *testing.T) {
	assert.Equal(t, []string{model.ArchEmbedding, model.ArchHashedBOW, model.ArchHashedMLP}, model.Architectures())
}

func TestNew_SeedDeterminesInitialization(t *testing.T) {
	for _, arch := range model.Architectures() {
		t.Run(arch, func(t *testing.T) {
			a := newTestClassifier(t, arch, 7)
			b := newTestClassifier(t, arch, 7)
			c := newTestClassifier(t, arch, 8)
			assert.Equal(t, a.Parameters(), b.Parameters())
			assert.NotEqual(t, a.Parameters(), c.Parameters())
		})
	}
}

func TestParameters_ReturnsCopy(t *testing.T) {
	c := newTestClassifier(t, model.ArchHashedBOW, 1)
	p := c.Parameters()
	p[0] = 1000
	assert.NotEqual(t, 1000.0, c.Parameters()[0])
}

func TestSetParameters(t *testing.T) {
	c := newTestClassifier(t, model.ArchHashedMLP, 1)
	values := make([]float64, c.NumParameters())
	for i := range values {
		values[i] = float64(i) * 0.001
	}
	require.NoError(t, c.SetParameters(values))
	assert.Equal(t, values, c.Parameters())

	err := c.SetParameters(values[:3])
	assert.ErrorIs(t, err, model.ErrParameterShape)
	err = c.ApplyGradient(values[:3])
	assert.ErrorIs(t, err, model.ErrParameterShape)
}

func TestEncode_PreservesOrderAndLength(t *testing.T) {
	ctx := context.Background()
	texts := []string{"the cat sat", "", "dogs bark loudly at night"}
	for _, arch := range model.Architectures() {
		t.Run(arch, func(t *testing.T) {
			c := newTestClassifier(t, arch, 1)
			enc, err := c.Encode(ctx, texts)
			require.NoError(t, err)
			require.Len(t, enc, len(texts))

			again, err := c.Encode(ctx, texts[2:])
			require.NoError(t, err)
			assert.Equal(t, enc[2], again[0])
		})
	}
}

func TestForward_FiniteForEmptyText(t *testing.T) {
	ctx := context.Background()
	for _, arch := range model.Architectures() {
		t.Run(arch, func(t *testing.T) {
			c := newTestClassifier(t, arch, 3)
			enc, err := c.Encode(ctx, []string{""})
			require.NoError(t, err)
			logit := c.Forward(enc[0], model.FullPrecision)
			assert.False(t, math.IsNaN(logit) || math.IsInf(logit, 0))
		})
	}
}

func TestScore_IsPure(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t, model.ArchHashedMLP, 5)
	enc, err := c.Encode(ctx, []string{"alpha beta", "gamma delta epsilon"})
	require.NoError(t, err)

	before := c.Parameters()
	first := c.Score(enc)
	second := c.Score(enc)
	assert.Equal(t, first, second)
	assert.Equal(t, before, c.Parameters())
}

func TestForward_ReducedPrecisionCloseToFull(t *testing.T) {
	ctx := context.Background()
	for _, arch := range model.Architectures() {
		t.Run(arch, func(t *testing.T) {
			c := newTestClassifier(t, arch, 11)
			enc, err := c.Encode(ctx, []string{"reduced precision should stay close to full precision"})
			require.NoError(t, err)
			full := c.Forward(enc[0], model.FullPrecision)
			reduced := c.Forward(enc[0], model.ReducedPrecision)
			assert.InDelta(t, full, reduced, 1e-4)
		})
	}
}

// Backward must agree with a central finite difference of Forward.
func TestBackward_MatchesFiniteDifference(t *testing.T) {
	ctx := context.Background()
	for _, arch := range model.Architectures() {
		t.Run(arch, func(t *testing.T) {
			c := newTestClassifier(t, arch, 13)
			enc, err := c.Encode(ctx, []string{"gradient check for the relevance classifier"})
			require.NoError(t, err)
			x := enc[0]

			grad := make([]float64, c.NumParameters())
			c.Backward(x, 1, model.FullPrecision, grad)

			base := c.Parameters()
			const h = 1e-6
			checked := 0
			for i := range base {
				if grad[i] == 0 && i%37 != 0 {
					continue
				}
				plus := append([]float64(nil), base...)
				plus[i] += h
				require.NoError(t, c.SetParameters(plus))
				up := c.Forward(x, model.FullPrecision)

				minus := append([]float64(nil), base...)
				minus[i] -= h
				require.NoError(t, c.SetParameters(minus))
				down := c.Forward(x, model.FullPrecision)

				assert.InDelta(t, (up-down)/(2*h), grad[i], 1e-5, "param %d", i)
				checked++
				if checked > 200 {
					break
				}
			}
			require.NoError(t, c.SetParameters(base))
			assert.Positive(t, checked)
		})
	}
}

func TestSpec_NumParameters(t *testing.T) {
	for _, arch := range []string{model.ArchHashedBOW, model.ArchHashedMLP, model.ArchEmbedding} {
		t.Run(arch, func(t *testing.T) {
			c := newTestClassifier(t, arch, 1)
			n, ok := c.Spec().NumParameters()
			require.True(t, ok)
			assert.Equal(t, c.NumParameters(), n)
		})
	}

	t.Run("overflow", func(t *testing.T) {
		spec := model.Spec{Architecture: model.ArchHashedMLP, Dimensions: 1 << 40, HiddenSize: 1 << 40, MaxSequenceLength: 1}
		_, ok := spec.NumParameters()
		assert.False(t, ok)

		spec = model.Spec{Architecture: model.ArchHashedBOW, Dimensions: math.MaxInt, MaxSequenceLength: 1}
		_, ok = spec.NumParameters()
		assert.False(t, ok)
	})
}

func TestSigmoidAndDecide(t *testing.T) {
	assert.InDelta(t, 0.5, model.Sigmoid(0), 1e-12)
	assert.InDelta(t, 1.0, model.Sigmoid(800), 1e-12)
	assert.InDelta(t, 0.0, model.Sigmoid(-800), 1e-12)
	assert.False(t, math.IsNaN(model.Sigmoid(-800)))

	assert.True(t, model.Decide(0.01))
	assert.False(t, model.Decide(0))
	assert.False(t, model.Decide(-2))
}
