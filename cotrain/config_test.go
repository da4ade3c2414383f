package cotrain

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/poiesic/relevance/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5, cfg.EpochsPhase1)
	assert.Equal(t, 3, cfg.EpochsPhase3)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.Equal(t, 128, cfg.MaxSequenceLength)
	assert.True(t, cfg.UseReducedPrecision)
	assert.Equal(t, 0.10, cfg.TestFraction)
	assert.Equal(t, 0.2222, cfg.ValFraction)
	assert.Equal(t, uint64(42), cfg.RandomSeed)
	assert.Equal(t, model.ArchHashedBOW, cfg.Architecture)
	assert.Equal(t, "final_model.bin", cfg.OutputPath)
	assert.Equal(t, runtime.NumCPU(), cfg.PoolSize)
	assert.Equal(t, 5, cfg.SampleCount)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithEpochs(2, 1),
		WithBatchSize(4),
		WithLearningRate(0.5),
		WithReducedPrecision(false),
		WithFractions(0.2, 0.25),
		WithSeed(7),
		WithArchitecture(model.ArchHashedMLP),
		WithOutputPath("out.bin"),
		WithPoolSize(2),
		WithSampleCount(0),
	)

	assert.Equal(t, 2, cfg.EpochsPhase1)
	assert.Equal(t, 1, cfg.EpochsPhase3)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 0.5, cfg.LearningRate)
	assert.Equal(t, model.FullPrecision, cfg.Precision())
	assert.Equal(t, 0.2, cfg.TestFraction)
	assert.Equal(t, 0.25, cfg.ValFraction)
	assert.Equal(t, uint64(7), cfg.RandomSeed)
	assert.Equal(t, "out.bin", cfg.OutputPath)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, 0, cfg.SampleCount)
	assert.Equal(t, model.Spec{
		Architecture:      model.ArchHashedMLP,
		Dimensions:        4096,
		HiddenSize:        16,
		MaxSequenceLength: 128,
	}, cfg.Spec())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_EmbeddingSpec(t *testing.T) {
	cfg := NewConfig(WithArchitecture(model.ArchEmbedding))
	spec := cfg.Spec()
	assert.Equal(t, 768, spec.Dimensions)
	assert.Equal(t, "embeddinggemma", spec.EmbeddingModel)
	assert.Zero(t, spec.HiddenSize)
	assert.NoError(t, cfg.Validate())

	cfg.Embedding.EmbeddingModel = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero phase 1 epochs", func(c *Config) { c.EpochsPhase1 = 0 }},
		{"zero phase 3 epochs", func(c *Config) { c.EpochsPhase3 = 0 }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero learning rate", func(c *Config) { c.LearningRate = 0 }},
		{"negative weight decay", func(c *Config) { c.WeightDecay = -1 }},
		{"test fraction of one", func(c *Config) { c.TestFraction = 1 }},
		{"zero val fraction", func(c *Config) { c.ValFraction = 0 }},
		{"missing output path", func(c *Config) { c.OutputPath = "" }},
		{"zero pool size", func(c *Config) { c.PoolSize = 0 }},
		{"negative sample count", func(c *Config) { c.SampleCount = -1 }},
		{"unknown architecture", func(c *Config) { c.Architecture = "lstm" }},
		{"zero dimensions", func(c *Config) { c.Dimensions = 0 }},
		{"zero sequence length", func(c *Config) { c.MaxSequenceLength = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relevance.yaml")
	content := `
epochs_phase1: 8
learning_rate: 0.02
use_reduced_precision: false
architecture: hashed-mlp
hidden_size: 32
random_seed: 1234
embedding:
  embedding_host: http://embeddings:8080
  retry_delay: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.EpochsPhase1)
	assert.Equal(t, 3, cfg.EpochsPhase3, "unset keys keep defaults")
	assert.Equal(t, 0.02, cfg.LearningRate)
	assert.False(t, cfg.UseReducedPrecision)
	assert.Equal(t, model.ArchHashedMLP, cfg.Architecture)
	assert.Equal(t, 32, cfg.HiddenSize)
	assert.Equal(t, uint64(1234), cfg.RandomSeed)
	assert.Equal(t, "http://embeddings:8080", cfg.Embedding.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.Embedding.EmbeddingModel)
	assert.Equal(t, 250*time.Millisecond, cfg.Embedding.RetryDelay)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("epochs_phase1: [1, 2"), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("batch_size: 0\n"), 0o644))
	_, err = LoadConfig(invalid)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
