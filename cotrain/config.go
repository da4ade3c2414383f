package cotrain

import (
	"fmt"
	"os"
	"runtime"

	"github.com/poiesic/relevance/ai"
	"github.com/poiesic/relevance/model"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a self-training run.
type Config struct {
	// EpochsPhase1 is the number of epochs classifiers A and B each train for.
	// Default: 5
	EpochsPhase1 int `yaml:"epochs_phase1"`

	// EpochsPhase3 is the number of epochs classifier C trains for.
	// Default: 3
	EpochsPhase3 int `yaml:"epochs_phase3"`

	// BatchSize is the number of examples per optimizer step.
	// Default: 16
	BatchSize int `yaml:"batch_size"`

	// LearningRate is the AdamW step size.
	// Default: 0.01
	LearningRate float64 `yaml:"learning_rate"`

	// WeightDecay is the AdamW decoupled weight decay.
	// Default: 0.01
	WeightDecay float64 `yaml:"weight_decay"`

	// MaxSequenceLength is the number of tokens kept per text.
	// Default: 128
	MaxSequenceLength int `yaml:"max_sequence_length"`

	// UseReducedPrecision computes activations in float32.
	// Default: true
	UseReducedPrecision bool `yaml:"use_reduced_precision"`

	// TestFraction is the share of the labeled corpus held out for testing.
	// Default: 0.10
	TestFraction float64 `yaml:"test_fraction"`

	// ValFraction is the share of the remainder used for validation.
	// Default: 0.2222, giving roughly 70/20/10 train/val/test
	ValFraction float64 `yaml:"val_fraction"`

	// RandomSeed drives splitting, initialization and shuffling.
	// Default: 42
	RandomSeed uint64 `yaml:"random_seed"`

	// Architecture selects the classifier variant.
	// Default: "hashed-bow"
	Architecture string `yaml:"architecture"`

	// Dimensions is the number of hash buckets, or the embedding size for
	// the embedding architecture.
	// Default: 4096
	Dimensions int `yaml:"dimensions"`

	// HiddenSize is the hidden layer width of the hashed-mlp architecture.
	// Default: 16
	HiddenSize int `yaml:"hidden_size"`

	// OutputPath is where the trained classifier is written.
	// Default: "final_model.bin"
	OutputPath string `yaml:"output_path"`

	// PoolSize is the number of workers computing examples in parallel.
	// Default: runtime.NumCPU()
	PoolSize int `yaml:"pool_size"`

	// SampleCount is the number of test predictions logged after persisting.
	// Default: 5
	SampleCount int `yaml:"sample_count"`

	// Embedding configures the embedding service for the embedding architecture.
	Embedding ai.Config `yaml:"embedding"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEpochs sets the epoch counts of phase one and phase three.
func WithEpochs(phase1, phase3 int) ConfigOption {
	return func(c *Config) {
		c.EpochsPhase1 = phase1
		c.EpochsPhase3 = phase3
	}
}

// WithBatchSize sets the number of examples per optimizer step.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithLearningRate sets the AdamW step size.
func WithLearningRate(rate float64) ConfigOption {
	return func(c *Config) {
		c.LearningRate = rate
	}
}

// WithReducedPrecision toggles float32 activations.
func WithReducedPrecision(enabled bool) ConfigOption {
	return func(c *Config) {
		c.UseReducedPrecision = enabled
	}
}

// WithFractions sets the test fraction and the validation share of the remainder.
func WithFractions(test, val float64) ConfigOption {
	return func(c *Config) {
		c.TestFraction = test
		c.ValFraction = val
	}
}

// WithSeed sets the random seed.
func WithSeed(seed uint64) ConfigOption {
	return func(c *Config) {
		c.RandomSeed = seed
	}
}

// WithArchitecture selects a classifier variant and resets the shape fields
// to that variant's defaults.
func WithArchitecture(arch string) ConfigOption {
	return func(c *Config) {
		spec := model.DefaultSpec(arch)
		c.Architecture = arch
		c.Dimensions = spec.Dimensions
		if spec.HiddenSize > 0 {
			c.HiddenSize = spec.HiddenSize
		}
	}
}

// WithDimensions sets the hash bucket count or embedding size.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithOutputPath sets where the trained classifier is written.
func WithOutputPath(path string) ConfigOption {
	return func(c *Config) {
		c.OutputPath = path
	}
}

// WithPoolSize sets the number of parallel workers.
func WithPoolSize(size int) ConfigOption {
	return func(c *Config) {
		c.PoolSize = size
	}
}

// WithSampleCount sets how many test predictions are logged after persisting.
func WithSampleCount(n int) ConfigOption {
	return func(c *Config) {
		c.SampleCount = n
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		EpochsPhase1:        5,
		EpochsPhase3:        3,
		BatchSize:           16,
		LearningRate:        0.01,
		WeightDecay:         0.01,
		MaxSequenceLength:   128,
		UseReducedPrecision: true,
		TestFraction:        0.10,
		ValFraction:         0.2222,
		RandomSeed:          42,
		Architecture:        model.ArchHashedBOW,
		Dimensions:          4096,
		HiddenSize:          16,
		OutputPath:          "final_model.bin",
		PoolSize:            runtime.NumCPU(),
		SampleCount:         5,
		Embedding:           *ai.DefaultConfig(),
	}
}

// NewConfig creates a Config with the given options applied over defaults.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Spec returns the classifier shape described by the config.
func (c *Config) Spec() model.Spec {
	spec := model.Spec{
		Architecture:      c.Architecture,
		Dimensions:        c.Dimensions,
		MaxSequenceLength: c.MaxSequenceLength,
	}
	switch c.Architecture {
	case model.ArchHashedMLP:
		spec.HiddenSize = c.HiddenSize
	case model.ArchEmbedding:
		spec.EmbeddingModel = c.Embedding.EmbeddingModel
	}
	return spec
}

// Precision returns the precision the loops run at.
func (c *Config) Precision() model.Precision {
	if c.UseReducedPrecision {
		return model.ReducedPrecision
	}
	return model.FullPrecision
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch {
	case c.EpochsPhase1 < 1:
		return fmt.Errorf("%w: epochs_phase1 must be at least 1", ErrInvalidConfig)
	case c.EpochsPhase3 < 1:
		return fmt.Errorf("%w: epochs_phase3 must be at least 1", ErrInvalidConfig)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch_size must be at least 1", ErrInvalidConfig)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive", ErrInvalidConfig)
	case c.WeightDecay < 0:
		return fmt.Errorf("%w: weight_decay cannot be negative", ErrInvalidConfig)
	case c.TestFraction <= 0 || c.TestFraction >= 1:
		return fmt.Errorf("%w: test_fraction must be in (0, 1)", ErrInvalidConfig)
	case c.ValFraction <= 0 || c.ValFraction >= 1:
		return fmt.Errorf("%w: val_fraction must be in (0, 1)", ErrInvalidConfig)
	case c.OutputPath == "":
		return fmt.Errorf("%w: output_path is required", ErrInvalidConfig)
	case c.PoolSize < 1:
		return fmt.Errorf("%w: pool_size must be at least 1", ErrInvalidConfig)
	case c.SampleCount < 0:
		return fmt.Errorf("%w: sample_count cannot be negative", ErrInvalidConfig)
	}

	if err := c.Spec().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Architecture == model.ArchEmbedding {
		if err := c.Embedding.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
