package relevance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/relevance/ai/mock"
	"github.com/poiesic/relevance/core"
	"github.com/poiesic/relevance/cotrain"
	"github.com/poiesic/relevance/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corpus(n int) []core.LabeledExample {
	var out []core.LabeledExample
	for i := 0; i < n; i++ {
		out = append(out,
			core.LabeledExample{Text: fmt.Sprintf("mountain trail guide %d", i), Label: true},
			core.LabeledExample{Text: fmt.Sprintf("quarterly invoice memo %d", i), Label: false})
	}
	return out
}

func TestOpenWorkspace(t *testing.T) {
	t.Run("create new run log", func(t *testing.T) {
		ws, err := OpenWorkspace(filepath.Join(t.TempDir(), "runs"))
		require.NoError(t, err)
		defer ws.Close()

		assert.NotNil(t, ws.RunRepository())
		assert.NotNil(t, ws.Config())
		assert.NotNil(t, ws.backend)
		assert.Nil(t, ws.embedder)
	})

	t.Run("in memory", func(t *testing.T) {
		ws, err := OpenWorkspace("")
		require.NoError(t, err)
		assert.NoError(t, ws.Close())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		ws, err := OpenWorkspace(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, ws)
	})

	t.Run("error with invalid config", func(t *testing.T) {
		ws, err := OpenWorkspace("", WithConfig(cotrain.NewConfig(cotrain.WithEpochs(0, 1))))
		assert.ErrorIs(t, err, cotrain.ErrInvalidConfig)
		assert.Nil(t, ws)
	})
}

func TestWorkspace_TrainAndLoad(t *testing.T) {
	ctx := context.Background()
	output := filepath.Join(t.TempDir(), "model.bin")
	cfg := cotrain.NewConfig(
		cotrain.WithEpochs(2, 1),
		cotrain.WithDimensions(512),
		cotrain.WithOutputPath(output),
	)

	ws, err := OpenWorkspace(filepath.Join(t.TempDir(), "runs"), WithConfig(cfg))
	require.NoError(t, err)
	defer ws.Close()

	trainer, err := ws.NewTrainer(corpus(20), []core.UnlabeledExample{{Text: "alpine trail"}})
	require.NoError(t, err)
	defer trainer.Release()

	run, err := trainer.Run(ctx)
	require.NoError(t, err)

	stored, err := ws.RunRepository().GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusSucceeded, stored.Status)

	c, err := ws.LoadClassifier(output)
	require.NoError(t, err)
	assert.Equal(t, trainer.Classifier().Parameters(), c.Parameters())
}

func TestWorkspace_EmbeddingArchitecture(t *testing.T) {
	ctx := context.Background()
	output := filepath.Join(t.TempDir(), "model.bin")
	cfg := cotrain.NewConfig(
		cotrain.WithArchitecture(model.ArchEmbedding),
		cotrain.WithDimensions(32),
		cotrain.WithEpochs(1, 1),
		cotrain.WithOutputPath(output),
	)
	embedder := mock.NewMockEmbedder(32)

	ws, err := OpenWorkspace("", WithConfig(cfg), WithEmbedder(embedder))
	require.NoError(t, err)
	defer ws.Close()

	trainer, err := ws.NewTrainer(corpus(10), nil)
	require.NoError(t, err)
	defer trainer.Release()

	_, err = trainer.Run(ctx)
	require.NoError(t, err)
	assert.Positive(t, embedder.CallCount())

	c, err := ws.LoadClassifier(output)
	require.NoError(t, err)
	assert.Equal(t, model.ArchEmbedding, c.Architecture())
}

func TestWorkspace_LoadClassifierMissing(t *testing.T) {
	ws, err := OpenWorkspace("")
	require.NoError(t, err)
	defer ws.Close()

	_, err = ws.LoadClassifier(filepath.Join(t.TempDir(), "missing.bin"))
	assert.ErrorIs(t, err, core.ErrPersistence)
}
