package model_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/relevance/ai/mock"
	"github.com/poiesic/relevance/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddingClassifier(t *testing.T, embedder *mock.MockEmbedder, dims int) model.Classifier {
	t.Helper()
	spec := model.DefaultSpec(model.ArchEmbedding)
	spec.Dimensions = dims
	c, err := model.New(spec, 1, model.Deps{Embedder: embedder})
	require.NoError(t, err)
	return c
}

func TestEmbeddingEncode_CachesVectors(t *testing.T) {
	ctx := context.Background()
	embedder := mock.NewMockEmbedder(16)
	c := newEmbeddingClassifier(t, embedder, 16)

	enc, err := c.Encode(ctx, []string{"one", "two", "one"})
	require.NoError(t, err)
	require.Len(t, enc, 3)
	assert.Equal(t, enc[0], enc[2])
	assert.True(t, enc[0].Dense())
	assert.Equal(t, 1, embedder.CallCount())
	assert.Equal(t, 2, embedder.TextCount())

	_, err = c.Encode(ctx, []string{"two", "one"})
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.CallCount())

	_, err = c.Encode(ctx, []string{"three", "one"})
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.CallCount())
	assert.Equal(t, 3, embedder.TextCount())
}

func TestEmbeddingEncode_Normalizes(t *testing.T) {
	c := newEmbeddingClassifier(t, mock.NewMockEmbedder(16), 16)
	enc, err := c.Encode(context.Background(), []string{"unit length"})
	require.NoError(t, err)

	var norm float64
	for _, v := range enc[0].Values {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbeddingEncode_WrongDimensions(t *testing.T) {
	c := newEmbeddingClassifier(t, mock.NewMockEmbedder(8), 16)
	_, err := c.Encode(context.Background(), []string{"too short"})
	assert.ErrorIs(t, err, model.ErrEmbeddingShape)
}

func TestEmbeddingEncode_EmbedderError(t *testing.T) {
	embedder := mock.NewMockEmbedder(16)
	boom := errors.New("embedding service unavailable")
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}
	c := newEmbeddingClassifier(t, embedder, 16)
	_, err := c.Encode(context.Background(), []string{"anything"})
	assert.ErrorIs(t, err, boom)
}

func TestEmbeddingEncode_TruncatesRawText(t *testing.T) {
	embedder := mock.NewMockEmbedder(8)
	var received []string
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		received = append(received, texts...)
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 0, 0, 0, 0, 0, 0, 0}
		}
		return out, nil
	}

	spec := model.DefaultSpec(model.ArchEmbedding)
	spec.Dimensions = 8
	spec.MaxSequenceLength = 3
	c, err := model.New(spec, 1, model.Deps{Embedder: embedder})
	require.NoError(t, err)

	_, err = c.Encode(context.Background(), []string{
		"Short, Mixed Case!",
		"Long Text: with MANY tokens, beyond the limit.",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Short, Mixed Case!", "Long Text: with"}, received)
}

func TestNormalizeVector(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, model.NormalizeVector([]float32{0, 0}))
	got := model.NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-9)
	assert.InDelta(t, 0.8, got[1], 1e-9)
}
