package train

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/relevance/core"
	"github.com/poiesic/relevance/model"
)

// DefaultBatchSize is the number of examples per optimizer step.
const DefaultBatchSize = 16

// Loop runs training, evaluation and prediction passes.
// A Loop may be reused for any number of classifiers but is not safe for
// concurrent passes that share a classifier being trained.
type Loop struct {
	pool      *ants.Pool
	batchSize int
	precision model.Precision
	progress  io.Writer
	logger    *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop) error

// WithBatchSize sets the number of examples per batch.
func WithBatchSize(size int) Option {
	return func(l *Loop) error {
		if size < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidBatchSize, size)
		}
		l.batchSize = size
		return nil
	}
}

// WithPrecision selects full or reduced precision for activations.
func WithPrecision(p model.Precision) Option {
	return func(l *Loop) error {
		l.precision = p
		return nil
	}
}

// WithPoolSize sets the number of workers computing examples in parallel.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(l *Loop) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if l.pool != nil {
			l.pool.Release()
		}
		l.pool = pool
		return nil
	}
}

// WithProgress writes per-epoch progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(l *Loop) error {
		l.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// NewLoop creates a Loop. Call Release when done with it.
func NewLoop(opts ...Option) (*Loop, error) {
	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		return nil, err
	}

	l := &Loop{
		pool:      pool,
		batchSize: DefaultBatchSize,
		precision: model.FullPrecision,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(l); optErr != nil {
			l.Release()
			return nil, optErr
		}
	}
	l.logger = l.logger.With("component", "train")
	return l, nil
}

// Release releases the worker pool. The loop should not be used afterwards.
func (l *Loop) Release() {
	if l.pool != nil {
		l.pool.Release()
	}
}

// BatchSize returns the configured batch size.
func (l *Loop) BatchSize() int {
	return l.batchSize
}

// Precision returns the configured precision.
func (l *Loop) Precision() model.Precision {
	return l.precision
}

// Epoch identifies one training pass. Seed and Index select the shuffle;
// Phase and Classifier only label log output.
type Epoch struct {
	Seed       uint64
	Index      int
	Phase      string
	Classifier string
}

// TrainEpoch runs one epoch over examples and returns the mean batch loss and
// the accuracy of the predictions made before each update.
//
// The epoch always runs to completion once started. Encoding is not
// cancelled by ctx; callers check for cancellation between epochs.
func (l *Loop) TrainEpoch(ctx context.Context, c model.Classifier, examples []core.LabeledExample, opt Optimizer, lossFn LossFunc, epoch Epoch) (core.Metrics, error) {
	if c == nil {
		return core.Metrics{}, ErrClassifierRequired
	}
	if opt == nil {
		return core.Metrics{}, ErrOptimizerRequired
	}
	if lossFn == nil {
		return core.Metrics{}, ErrLossRequired
	}
	if len(examples) == 0 {
		return core.Metrics{}, nil
	}

	logger := l.logger.With("phase", epoch.Phase, "classifier", epoch.Classifier, "epoch", epoch.Index)

	order := rand.New(rand.NewPCG(epoch.Seed, uint64(epoch.Index))).Perm(len(examples))
	batches := l.batches(order)

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()
	encoded := l.prefetch(runCtx, c, examples, batches)

	tracker := l.tracker(fmt.Sprintf("%s %s epoch %d", epoch.Phase, epoch.Classifier, epoch.Index), len(examples))

	var (
		acc      accumulator
		gradSize = c.NumParameters()
		buffers  = make([][]float64, l.batchSize)
	)
	for i := range buffers {
		buffers[i] = make([]float64, gradSize)
	}

	for b := range batches {
		batch := <-encoded
		if batch.err != nil {
			return core.Metrics{}, fmt.Errorf("encoding batch %d: %w", b, batch.err)
		}

		n := len(batch.labels)
		logits := make([]float64, n)
		losses := make([]float64, n)
		err := l.parallel(n, func(i int) {
			grad := buffers[i]
			clear(grad)
			logits[i] = c.Forward(batch.encodings[i], l.precision)
			losses[i] = lossFn.Loss(logits[i], batch.labels[i])
			dlogit := l.precision.Round(lossFn.Gradient(logits[i], batch.labels[i]))
			c.Backward(batch.encodings[i], dlogit, l.precision, grad)
		})
		if err != nil {
			return core.Metrics{}, err
		}

		acc.count(logits, batch.labels)
		batchLoss := mean(losses)
		grad := sumGradients(buffers[:n])

		if !finite(batchLoss) || !allFinite(grad) {
			acc.skipped++
			logger.Warn("skipping batch update",
				"err", fmt.Errorf("%w: non-finite loss or gradient", core.ErrTraining),
				"batch", b,
				"loss", batchLoss)
			tracker.Increment(n)
			continue
		}

		if err := opt.Step(c, grad); err != nil {
			return core.Metrics{}, fmt.Errorf("updating parameters after batch %d: %w", b, err)
		}
		acc.addLoss(batchLoss)
		tracker.Increment(n)
	}
	tracker.Finish()

	metrics := acc.metrics()
	logger.Debug("epoch trained", "loss", metrics.Loss, "accuracy", metrics.Accuracy, "skipped_batches", metrics.SkippedBatches)
	return metrics, nil
}

// Evaluate computes the mean batch loss and accuracy of c over examples
// without changing c. An empty partition yields zero metrics.
func (l *Loop) Evaluate(ctx context.Context, c model.Classifier, examples []core.LabeledExample, lossFn LossFunc) (core.Metrics, error) {
	if c == nil {
		return core.Metrics{}, ErrClassifierRequired
	}
	if lossFn == nil {
		return core.Metrics{}, ErrLossRequired
	}

	texts := make([]string, len(examples))
	labels := make([]bool, len(examples))
	for i, ex := range examples {
		texts[i] = ex.Text
		labels[i] = ex.Label
	}

	logits, err := l.logits(ctx, c, texts)
	if err != nil {
		return core.Metrics{}, err
	}

	var acc accumulator
	acc.count(logits, labels)
	for start := 0; start < len(logits); start += l.batchSize {
		end := min(start+l.batchSize, len(logits))
		losses := make([]float64, end-start)
		for i := start; i < end; i++ {
			losses[i-start] = lossFn.Loss(logits[i], labels[i])
		}
		acc.addLoss(mean(losses))
	}
	return acc.metrics(), nil
}

// Prediction is the output of a classifier for one text.
type Prediction struct {
	Logit float64
	Label bool
}

// Predict scores texts with c and returns one prediction per text, in order.
func (l *Loop) Predict(ctx context.Context, c model.Classifier, texts []string) ([]Prediction, error) {
	if c == nil {
		return nil, ErrClassifierRequired
	}
	logits, err := l.logits(ctx, c, texts)
	if err != nil {
		return nil, err
	}
	predictions := make([]Prediction, len(logits))
	for i, z := range logits {
		predictions[i] = Prediction{Logit: z, Label: model.Decide(z)}
	}
	return predictions, nil
}

// logits encodes and scores texts batch by batch, in order.
func (l *Loop) logits(ctx context.Context, c model.Classifier, texts []string) ([]float64, error) {
	out := make([]float64, len(texts))
	for start := 0; start < len(texts); start += l.batchSize {
		end := min(start+l.batchSize, len(texts))
		encodings, err := c.Encode(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("encoding texts %d-%d: %w", start, end-1, err)
		}
		err = l.parallel(len(encodings), func(i int) {
			out[start+i] = c.Forward(encodings[i], l.precision)
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type encodedBatch struct {
	encodings []model.Encoding
	labels    []bool
	err       error
}

// prefetch encodes batches on a separate goroutine, one batch ahead of the
// consumer, delivering them in order.
func (l *Loop) prefetch(ctx context.Context, c model.Classifier, examples []core.LabeledExample, batches [][]int) <-chan encodedBatch {
	out := make(chan encodedBatch, 1)
	go func() {
		defer close(out)
		for _, positions := range batches {
			texts := make([]string, len(positions))
			labels := make([]bool, len(positions))
			for i, pos := range positions {
				texts[i] = examples[pos].Text
				labels[i] = examples[pos].Label
			}
			encodings, err := c.Encode(ctx, texts)
			select {
			case out <- encodedBatch{encodings: encodings, labels: labels, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

func (l *Loop) batches(order []int) [][]int {
	var out [][]int
	for start := 0; start < len(order); start += l.batchSize {
		out = append(out, order[start:min(start+l.batchSize, len(order))])
	}
	return out
}

// parallel runs fn(0..n-1) on the pool and waits for all of them.
func (l *Loop) parallel(n int, fn func(i int)) error {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		if err := l.pool.Submit(func() {
			defer wg.Done()
			fn(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("submitting work to pool: %w", err)
		}
	}
	wg.Wait()
	return nil
}

func (l *Loop) tracker(label string, total int) *ProgressTracker {
	if l.progress == nil {
		return NewProgressTracker(io.Discard, label, total, total+1)
	}
	t := NewProgressTracker(l.progress, label, total, l.batchSize)
	t.Start()
	return t
}

// accumulator collects per-batch losses and per-example correctness.
type accumulator struct {
	lossSum float64
	batches int
	correct int
	total   int
	skipped int
}

func (a *accumulator) count(logits []float64, labels []bool) {
	for i, z := range logits {
		if model.Decide(z) == labels[i] {
			a.correct++
		}
		a.total++
	}
}

func (a *accumulator) addLoss(loss float64) {
	a.lossSum += loss
	a.batches++
}

func (a *accumulator) metrics() core.Metrics {
	m := core.Metrics{
		Correct:        a.correct,
		Total:          a.total,
		SkippedBatches: a.skipped,
	}
	if a.batches > 0 {
		m.Loss = a.lossSum / float64(a.batches)
	}
	if a.total > 0 {
		m.Accuracy = float64(a.correct) / float64(a.total)
	}
	return m
}

// sumGradients adds the per-example buffers in order and divides by their
// count, giving the mean gradient of the batch.
func sumGradients(buffers [][]float64) []float64 {
	out := make([]float64, len(buffers[0]))
	for _, buf := range buffers {
		for j, g := range buf {
			out[j] += g
		}
	}
	scale := 1 / float64(len(buffers))
	for j := range out {
		out[j] *= scale
	}
	return out
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if !finite(v) {
			return false
		}
	}
	return true
}
