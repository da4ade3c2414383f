package cotrain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/relevance/ai"
	"github.com/poiesic/relevance/artifact"
	"github.com/poiesic/relevance/consensus"
	"github.com/poiesic/relevance/core"
	"github.com/poiesic/relevance/model"
	"github.com/poiesic/relevance/split"
	"github.com/poiesic/relevance/storage"
	"github.com/poiesic/relevance/train"
)

// Classifier identifiers used in logs and the run log.
const (
	ClassifierA = "A"
	ClassifierB = "B"
	ClassifierC = "C"
)

// Trainer owns every classifier and partition of a self-training run and
// moves the run through its states. A Trainer is driven by one goroutine.
type Trainer struct {
	cfg       Config
	labeled   []core.LabeledExample
	unlabeled []core.UnlabeledExample
	deps      model.Deps
	runs      storage.RunRepository
	progress  io.Writer
	logger    *slog.Logger

	loop    *train.Loop
	labeler *consensus.Labeler
	lossFn  train.LossFunc

	state      State
	run        *core.Run
	partitions split.Result
	a, b, c    model.Classifier
	pseudo     *consensus.Result
	combined   []core.LabeledExample
}

// Option configures a Trainer.
type Option func(*Trainer) error

// WithRunRepository records runs and epoch metrics in repo.
func WithRunRepository(repo storage.RunRepository) Option {
	return func(t *Trainer) error {
		t.runs = repo
		return nil
	}
}

// WithEmbedder supplies the embedder used by the embedding architecture.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(t *Trainer) error {
		t.deps.Embedder = embedder
		return nil
	}
}

// WithProgress writes per-epoch progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(t *Trainer) error {
		t.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trainer) error {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
		return nil
	}
}

// NewTrainer creates a trainer for one labeled and one unlabeled corpus.
// cfg is copied; a nil cfg uses DefaultConfig.
func NewTrainer(cfg *Config, labeled []core.LabeledExample, unlabeled []core.UnlabeledExample, opts ...Option) (*Trainer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer{
		cfg:       *cfg,
		labeled:   labeled,
		unlabeled: unlabeled,
		lossFn:    train.BinaryCrossEntropy{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	if t.cfg.Architecture == model.ArchEmbedding && t.deps.Embedder == nil {
		return nil, model.ErrEmbedderRequired
	}
	t.logger = t.logger.With("component", "cotrain")

	loopOpts := []train.Option{
		train.WithBatchSize(t.cfg.BatchSize),
		train.WithPrecision(t.cfg.Precision()),
		train.WithPoolSize(t.cfg.PoolSize),
		train.WithLogger(t.logger),
	}
	if t.progress != nil {
		loopOpts = append(loopOpts, train.WithProgress(t.progress))
	}
	loop, err := train.NewLoop(loopOpts...)
	if err != nil {
		return nil, err
	}

	labeler, err := consensus.NewLabeler(loop, consensus.WithLogger(t.logger))
	if err != nil {
		loop.Release()
		return nil, err
	}

	t.loop = loop
	t.labeler = labeler
	return t, nil
}

// Release releases the worker pool. The trainer should not be used afterwards.
func (t *Trainer) Release() {
	if t.loop != nil {
		t.loop.Release()
	}
}

// State returns the current state.
func (t *Trainer) State() State {
	return t.state
}

// Config returns a copy of the trainer's configuration.
func (t *Trainer) Config() Config {
	return t.cfg
}

// RunRecord returns a copy of the current run record, or nil before the first run.
func (t *Trainer) RunRecord() *core.Run {
	if t.run == nil {
		return nil
	}
	r := *t.run
	return &r
}

// Partitions returns the train, val and test partitions of the current run.
func (t *Trainer) Partitions() split.Result {
	return t.partitions
}

// PhaseOneClassifiers returns classifiers A and B once phase 1 has run.
func (t *Trainer) PhaseOneClassifiers() (a, b model.Classifier) {
	return t.a, t.b
}

// Classifier returns classifier C once phase 3 has run.
func (t *Trainer) Classifier() model.Classifier {
	return t.c
}

// PseudoLabels returns the result of pseudo-labeling.
func (t *Trainer) PseudoLabels() *consensus.Result {
	return t.pseudo
}

// CombinedTrain returns the training set of phase 3.
func (t *Trainer) CombinedTrain() []core.LabeledExample {
	return t.combined
}

// Run executes every remaining step. After a failure it starts a new run
// from the beginning; after a successful run it returns ErrRunComplete.
func (t *Trainer) Run(ctx context.Context) (*core.Run, error) {
	switch t.state {
	case StatePersisted:
		return nil, ErrRunComplete
	case StateFailed:
		t.reset()
	}

	steps := []func(context.Context) error{
		t.Initialize,
		t.TrainPhaseOne,
		t.PseudoLabel,
		t.TrainPhaseThree,
		t.Evaluate,
		t.Persist,
	}
	for _, step := range steps[t.state:] {
		if err := step(ctx); err != nil {
			return t.RunRecord(), err
		}
	}

	t.logSamples(ctx)
	return t.RunRecord(), nil
}

// Initialize validates the labeled corpus and splits it. NEW to INIT.
func (t *Trainer) Initialize(ctx context.Context) error {
	if t.state != StateNew {
		return t.invalid(StateInit)
	}

	now := time.Now().UTC()
	t.run = &core.Run{
		ID:             uuid.NewString(),
		State:          StateNew.String(),
		Status:         core.RunStatusRunning,
		Architecture:   t.cfg.Architecture,
		StartedAt:      now,
		UnlabeledTotal: len(t.unlabeled),
		ArtifactPath:   t.cfg.OutputPath,
	}
	t.logger.Info("starting run", "run", t.run.ID, "architecture", t.cfg.Architecture,
		"labeled", len(t.labeled), "unlabeled", len(t.unlabeled), "seed", t.cfg.RandomSeed)
	t.saveRun(ctx)

	return t.advance(ctx, StateInit, func() error {
		if err := core.ValidateLabeledCorpus(t.labeled); err != nil {
			return err
		}
		parts, err := split.Split(t.labeled, t.cfg.TestFraction, t.cfg.ValFraction, t.cfg.RandomSeed)
		if err != nil {
			return err
		}
		t.partitions = parts
		t.run.TrainSize = parts.Train.Len()
		t.run.ValSize = parts.Val.Len()
		t.run.TestSize = parts.Test.Len()

		for _, p := range []core.Partition{parts.Train, parts.Val, parts.Test} {
			negatives, positives := split.ClassCounts(p.Examples)
			t.logger.Info("partition", "name", p.Name, "size", p.Len(),
				"positive", positives, "negative", negatives)
		}
		return nil
	})
}

// TrainPhaseOne trains classifiers A and B. For every epoch A trains and
// validates before B does. INIT to PHASE1_TRAINED.
func (t *Trainer) TrainPhaseOne(ctx context.Context) error {
	if t.state != StateInit {
		return t.invalid(StatePhase1Trained)
	}
	return t.advance(ctx, StatePhase1Trained, func() error {
		a, err := t.newClassifier(ClassifierA)
		if err != nil {
			return err
		}
		b, err := t.newClassifier(ClassifierB)
		if err != nil {
			return err
		}

		members := []member{
			{name: ClassifierA, c: a, opt: t.newOptimizer()},
			{name: ClassifierB, c: b, opt: t.newOptimizer()},
		}
		if err := t.trainEpochs(ctx, core.PhaseOne, t.cfg.EpochsPhase1, t.partitions.Train.Examples, members); err != nil {
			return err
		}
		t.a, t.b = a, b
		return nil
	})
}

// PseudoLabel labels the unlabeled corpus where A and B agree and builds the
// combined training set. PHASE1_TRAINED to PSEUDO_LABELED.
func (t *Trainer) PseudoLabel(ctx context.Context) error {
	if t.state != StatePhase1Trained {
		return t.invalid(StatePseudoLabeled)
	}
	return t.advance(ctx, StatePseudoLabeled, func() error {
		result, err := t.labeler.Label(ctx, t.unlabeled, t.a, t.b)
		if err != nil {
			return err
		}
		t.pseudo = result
		t.run.PseudoLabeled = result.Covered

		if cerr := result.Err(); cerr != nil {
			t.logger.Warn("no pseudo-labels, phase 3 trains on the training partition only",
				"err", cerr, "covered", result.Covered, "total", result.Total)
		} else {
			t.logger.Info("pseudo-labeled", "covered", result.Covered, "total", result.Total,
				"coverage", result.Coverage())
		}

		t.combined = consensus.Combine(t.partitions.Train.Examples, result.Examples)
		return nil
	})
}

// TrainPhaseThree trains a fresh classifier C on the combined training set,
// validating on the same val partition. PSEUDO_LABELED to PHASE3_TRAINED.
func (t *Trainer) TrainPhaseThree(ctx context.Context) error {
	if t.state != StatePseudoLabeled {
		return t.invalid(StatePhase3Trained)
	}
	return t.advance(ctx, StatePhase3Trained, func() error {
		c, err := t.newClassifier(ClassifierC)
		if err != nil {
			return err
		}
		members := []member{{name: ClassifierC, c: c, opt: t.newOptimizer()}}
		if err := t.trainEpochs(ctx, core.PhaseThree, t.cfg.EpochsPhase3, t.combined, members); err != nil {
			return err
		}
		t.c = c
		return nil
	})
}

// Evaluate scores C on the test partition. PHASE3_TRAINED to EVALUATED.
func (t *Trainer) Evaluate(ctx context.Context) error {
	if t.state != StatePhase3Trained {
		return t.invalid(StateEvaluated)
	}
	return t.advance(ctx, StateEvaluated, func() error {
		metrics, err := t.loop.Evaluate(ctx, t.c, t.partitions.Test.Examples, t.lossFn)
		if err != nil {
			return err
		}
		t.run.Test = metrics
		t.logger.Info("test results", "loss", metrics.Loss, "accuracy", metrics.Accuracy,
			"correct", metrics.Correct, "total", metrics.Total)
		return nil
	})
}

// Persist writes C to the output path. EVALUATED to PERSISTED.
func (t *Trainer) Persist(ctx context.Context) error {
	if t.state != StateEvaluated {
		return t.invalid(StatePersisted)
	}
	return t.advance(ctx, StatePersisted, func() error {
		checksum, err := artifact.Save(t.c, t.cfg.OutputPath)
		if err != nil {
			return err
		}
		t.run.Checksum = checksum
		t.run.Status = core.RunStatusSucceeded
		t.run.FinishedAt = time.Now().UTC()
		t.logger.Info("classifier saved", "path", t.cfg.OutputPath, "checksum", checksum)
		return nil
	})
}

type member struct {
	name string
	c    model.Classifier
	opt  train.Optimizer
}

// trainEpochs trains members for epochs, one epoch per member at a time and
// in member order, validating after each epoch. Cancellation is honored
// between epochs.
func (t *Trainer) trainEpochs(ctx context.Context, phase string, epochs int, examples []core.LabeledExample, members []member) error {
	for epoch := 1; epoch <= epochs; epoch++ {
		for _, m := range members {
			if err := ctx.Err(); err != nil {
				return err
			}

			trainMetrics, err := t.loop.TrainEpoch(ctx, m.c, examples, m.opt, t.lossFn, train.Epoch{
				Seed:       t.seedFor(m.name),
				Index:      epoch,
				Phase:      phase,
				Classifier: m.name,
			})
			if err != nil {
				return fmt.Errorf("training %s classifier %s epoch %d: %w", phase, m.name, epoch, err)
			}
			valMetrics, err := t.loop.Evaluate(ctx, m.c, t.partitions.Val.Examples, t.lossFn)
			if err != nil {
				return fmt.Errorf("validating %s classifier %s epoch %d: %w", phase, m.name, epoch, err)
			}

			t.logger.Info("epoch",
				"phase", phase,
				"epoch", epoch,
				"classifier", m.name,
				"train_loss", trainMetrics.Loss,
				"train_accuracy", trainMetrics.Accuracy,
				"val_loss", valMetrics.Loss,
				"val_accuracy", valMetrics.Accuracy,
				"skipped_batches", trainMetrics.SkippedBatches)
			t.appendEpoch(ctx, &core.EpochRecord{
				RunID:      t.run.ID,
				Phase:      phase,
				Classifier: m.name,
				Epoch:      epoch,
				Train:      trainMetrics,
				Val:        valMetrics,
				RecordedAt: time.Now().UTC(),
			})
		}
	}
	return nil
}

// seedFor derives an independent seed per classifier from the run seed.
func (t *Trainer) seedFor(name string) uint64 {
	return uint64(core.IDFromContent(fmt.Sprintf("%d/%s", t.cfg.RandomSeed, name)))
}

func (t *Trainer) newClassifier(name string) (model.Classifier, error) {
	return model.New(t.cfg.Spec(), t.seedFor(name), t.deps)
}

func (t *Trainer) newOptimizer() train.Optimizer {
	return train.NewAdamW(t.cfg.LearningRate, t.cfg.WeightDecay)
}

// advance runs fn and moves to next on success, or to FAILED on error.
func (t *Trainer) advance(ctx context.Context, next State, fn func() error) error {
	if err := fn(); err != nil {
		return t.fail(ctx, next, err)
	}
	t.state = next
	t.run.State = next.String()
	t.logger.Info("state transition", "run", t.run.ID, "state", next)
	t.saveRun(ctx)
	return nil
}

func (t *Trainer) fail(ctx context.Context, target State, err error) error {
	err = fmt.Errorf("entering %s: %w", target, err)
	t.logger.Error("run failed", "run", t.run.ID, "state", t.state, "err", err)

	t.state = StateFailed
	t.run.State = StateFailed.String()
	t.run.Status = core.RunStatusFailed
	t.run.Error = err.Error()
	t.run.FinishedAt = time.Now().UTC()
	t.saveRun(context.WithoutCancel(ctx))
	return err
}

func (t *Trainer) invalid(target State) error {
	return fmt.Errorf("%w: cannot enter %s from %s", ErrInvalidTransition, target, t.state)
}

// reset discards everything from a failed run.
func (t *Trainer) reset() {
	t.state = StateNew
	t.run = nil
	t.partitions = split.Result{}
	t.a, t.b, t.c = nil, nil, nil
	t.pseudo = nil
	t.combined = nil
}

// logSamples reloads the persisted artifact and logs its predictions for a
// few test examples.
func (t *Trainer) logSamples(ctx context.Context) {
	n := min(t.cfg.SampleCount, t.partitions.Test.Len())
	if n == 0 {
		return
	}

	c, err := artifact.Load(t.cfg.OutputPath, t.cfg.Architecture, t.deps)
	if err != nil {
		t.logger.Warn("reloading artifact for sample predictions", "err", err)
		return
	}

	samples := t.partitions.Test.Examples[:n]
	texts := make([]string, n)
	for i, ex := range samples {
		texts[i] = ex.Text
	}
	predictions, err := t.loop.Predict(ctx, c, texts)
	if err != nil {
		t.logger.Warn("sample predictions", "err", err)
		return
	}
	for i, p := range predictions {
		t.logger.Info("sample prediction", "text", samples[i].Text,
			"predicted", p.Label, "actual", samples[i].Label, "logit", p.Logit)
	}
}

func (t *Trainer) saveRun(ctx context.Context) {
	if t.runs == nil {
		return
	}
	if err := t.runs.SaveRun(ctx, t.run); err != nil {
		t.logger.Warn("recording run", "run", t.run.ID, "err", err)
	}
}

func (t *Trainer) appendEpoch(ctx context.Context, record *core.EpochRecord) {
	if t.runs == nil {
		return
	}
	if err := t.runs.AppendEpoch(ctx, record); err != nil {
		t.logger.Warn("recording epoch", "run", record.RunID, "err", err)
	}
}
