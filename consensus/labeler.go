// Package consensus pseudo-labels unlabeled text with the agreement of two
// independently trained classifiers.
//
// An example is kept only when both classifiers predict the same binary
// label; disagreements are dropped, never averaged or imputed.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/relevance/core"
	"github.com/poiesic/relevance/model"
	"github.com/poiesic/relevance/train"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPredictorRequired is returned when NewLabeler is given a nil predictor.
	ErrPredictorRequired = errors.New("predictor is required")
)

// Predictor scores texts with a classifier. *train.Loop satisfies it.
type Predictor interface {
	Predict(ctx context.Context, c model.Classifier, texts []string) ([]train.Prediction, error)
}

// Result is the outcome of one labeling pass.
type Result struct {
	Examples []core.PseudoLabeledExample
	Covered  int
	Total    int
}

// Coverage returns the fraction of unlabeled examples that were kept.
// An empty pool has coverage 0.
func (r *Result) Coverage() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Covered) / float64(r.Total)
}

// Err returns an error wrapping core.ErrConsensus when nothing was kept.
// It is informational: training can continue without pseudo-labels.
func (r *Result) Err() error {
	if r.Covered > 0 {
		return nil
	}
	return fmt.Errorf("%w: no pseudo-labels produced (%d/%d)", core.ErrConsensus, r.Covered, r.Total)
}

// Labeler builds pseudo-labeled examples from two classifiers.
type Labeler struct {
	predictor Predictor
	logger    *slog.Logger
}

// Option configures a Labeler.
type Option func(*Labeler) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Labeler) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// NewLabeler creates a Labeler that scores text with predictor.
func NewLabeler(predictor Predictor, opts ...Option) (*Labeler, error) {
	if predictor == nil {
		return nil, ErrPredictorRequired
	}
	l := &Labeler{
		predictor: predictor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "consensus")
	return l, nil
}

// Label predicts every unlabeled example with a and b and keeps those on
// which they agree, labeled with the shared prediction, in input order.
// a and b are only read; their predictions are computed concurrently.
func (l *Labeler) Label(ctx context.Context, unlabeled []core.UnlabeledExample, a, b model.Classifier) (*Result, error) {
	if a == nil || b == nil {
		return nil, train.ErrClassifierRequired
	}

	texts := make([]string, len(unlabeled))
	for i, ex := range unlabeled {
		texts[i] = ex.Text
	}

	var predA, predB []train.Prediction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		predA, err = l.predictor.Predict(gctx, a, texts)
		if err != nil {
			return fmt.Errorf("predicting with classifier A: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		predB, err = l.predictor.Predict(gctx, b, texts)
		if err != nil {
			return fmt.Errorf("predicting with classifier B: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Total: len(unlabeled)}
	for i, ex := range unlabeled {
		if predA[i].Label != predB[i].Label {
			continue
		}
		result.Examples = append(result.Examples, core.PseudoLabeledExample{Text: ex.Text, Label: predA[i].Label})
	}
	result.Covered = len(result.Examples)

	l.logger.Debug("pseudo-labeling complete", "covered", result.Covered, "total", result.Total, "coverage", result.Coverage())
	return result, nil
}

// Combine returns labeled followed by the pseudo-labeled examples as a new slice.
func Combine(labeled []core.LabeledExample, pseudo []core.PseudoLabeledExample) []core.LabeledExample {
	combined := make([]core.LabeledExample, 0, len(labeled)+len(pseudo))
	combined = append(combined, labeled...)
	for _, p := range pseudo {
		combined = append(combined, p.Labeled())
	}
	return combined
}
