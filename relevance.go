// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package relevance wires the run log, the embedding service and the
// self-training orchestrator together.
package relevance

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/relevance/ai"
	"github.com/poiesic/relevance/ai/openai"
	"github.com/poiesic/relevance/artifact"
	"github.com/poiesic/relevance/core"
	"github.com/poiesic/relevance/cotrain"
	"github.com/poiesic/relevance/model"
	"github.com/poiesic/relevance/storage"
	"github.com/poiesic/relevance/storage/badger"
)

type Workspace struct {
	backend  *badger.Backend
	runs     storage.RunRepository
	cfg      *cotrain.Config
	embedder ai.Embedder
	logger   *slog.Logger
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*workspaceOptions)

type workspaceOptions struct {
	cfg      *cotrain.Config
	embedder ai.Embedder
	logger   *slog.Logger
}

// WithConfig sets the run configuration. Default is cotrain.DefaultConfig().
func WithConfig(cfg *cotrain.Config) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.cfg = cfg
	}
}

// WithEmbedder sets the embedder used by the embedding architecture instead
// of one built from the configuration.
func WithEmbedder(embedder ai.Embedder) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.embedder = embedder
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.logger = logger
	}
}

// OpenWorkspace opens the run log at dbPath. An empty dbPath keeps the run
// log in memory for the lifetime of the workspace.
func OpenWorkspace(dbPath string, opts ...WorkspaceOption) (*Workspace, error) {
	options := &workspaceOptions{
		cfg:    cotrain.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.cfg.Validate(); err != nil {
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil && options.cfg.Architecture == model.ArchEmbedding {
		e, err := openai.NewEmbedder(&options.cfg.Embedding)
		if err != nil {
			return nil, err
		}
		embedder = e
	}

	backend, err := badger.OpenBackend(dbPath, dbPath == "")
	if err != nil {
		return nil, err
	}

	runs, err := badger.NewRunRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Workspace{
		backend:  backend,
		runs:     runs,
		cfg:      options.cfg,
		embedder: embedder,
		logger:   options.logger,
	}, nil
}

func (w *Workspace) Close() error {
	if err := w.runs.Close(); err != nil {
		w.logger.Error("error closing run repository", "err", err)
		return err
	}
	if err := w.backend.Close(); err != nil {
		w.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (w *Workspace) RunRepository() storage.RunRepository {
	return w.runs
}

func (w *Workspace) Config() *cotrain.Config {
	return w.cfg
}

// NewTrainer creates a trainer that records its runs in the workspace run log.
func (w *Workspace) NewTrainer(labeled []core.LabeledExample, unlabeled []core.UnlabeledExample, opts ...cotrain.Option) (*cotrain.Trainer, error) {
	base := []cotrain.Option{
		cotrain.WithRunRepository(w.runs),
		cotrain.WithLogger(w.logger),
	}
	if w.embedder != nil {
		base = append(base, cotrain.WithEmbedder(w.embedder))
	}
	return cotrain.NewTrainer(w.cfg, labeled, unlabeled, append(base, opts...)...)
}

// LoadClassifier restores a persisted classifier of any architecture. An
// embedding classifier without a configured embedder gets one built from the
// workspace configuration and the model name stored in the artifact.
func (w *Workspace) LoadClassifier(path string) (model.Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	header, err := artifact.ReadHeader(data)
	if err != nil {
		return nil, err
	}

	deps := model.Deps{Embedder: w.embedder}
	if header.Spec.Architecture == model.ArchEmbedding && deps.Embedder == nil {
		cfg := w.cfg.Embedding
		if header.Spec.EmbeddingModel != "" {
			cfg.EmbeddingModel = header.Spec.EmbeddingModel
		}
		embedder, err := openai.NewEmbedder(&cfg)
		if err != nil {
			return nil, err
		}
		deps.Embedder = embedder
	}
	return artifact.Decode(data, "", deps)
}
