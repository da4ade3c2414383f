package train_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/poiesic/relevance/core"
	"github.com/poiesic/relevance/model"
	"github.com/poiesic/relevance/train"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	positiveWords = []string{"hiking", "trail", "summit", "canyon", "waterfall", "campsite"}
	negativeWords = []string{"invoice", "mortgage", "spreadsheet", "payroll", "audit", "ledger"}
)

// toyCorpus builds a linearly separable corpus of n examples per class.
func toyCorpus(n int) []core.LabeledExample {
	var out []core.LabeledExample
	for i := 0; i < n; i++ {
		p := positiveWords[i%len(positiveWords)]
		q := positiveWords[(i+1)%len(positiveWords)]
		out = append(out, core.LabeledExample{Text: fmt.Sprintf("%s and %s number %d", p, q, i), Label: true})

		p = negativeWords[i%len(negativeWords)]
		q = negativeWords[(i+2)%len(negativeWords)]
		out = append(out, core.LabeledExample{Text: fmt.Sprintf("%s and %s number %d", p, q, i), Label: false})
	}
	return out
}

func newClassifier(t *testing.T, arch string, seed uint64) model.Classifier {
	t.Helper()
	spec := model.DefaultSpec(arch)
	if arch == model.ArchHashedMLP {
		spec.Dimensions = 512
		spec.HiddenSize = 8
	}
	c, err := model.New(spec, seed, model.Deps{})
	require.NoError(t, err)
	return c
}

func newLoop(t *testing.T, opts ...train.Option) *train.Loop {
	t.Helper()
	loop, err := train.NewLoop(opts...)
	require.NoError(t, err)
	t.Cleanup(loop.Release)
	return loop
}

func trainEpochs(t *testing.T, loop *train.Loop, c model.Classifier, examples []core.LabeledExample, epochs int) []core.Metrics {
	t.Helper()
	opt := train.NewAdamW(0.05, 0.01)
	var history []core.Metrics
	for e := 1; e <= epochs; e++ {
		m, err := loop.TrainEpoch(context.Background(), c, examples, opt, train.BinaryCrossEntropy{},
			train.Epoch{Seed: 42, Index: e, Phase: core.PhaseOne, Classifier: "A"})
		require.NoError(t, err)
		history = append(history, m)
	}
	return history
}

func TestNewLoop_Options(t *testing.T) {
	loop := newLoop(t, train.WithBatchSize(4), train.WithPrecision(model.ReducedPrecision), train.WithPoolSize(2))
	assert.Equal(t, 4, loop.BatchSize())
	assert.Equal(t, model.ReducedPrecision, loop.Precision())

	_, err := train.NewLoop(train.WithBatchSize(0))
	assert.ErrorIs(t, err, train.ErrInvalidBatchSize)
}

func TestTrainEpoch_Learns(t *testing.T) {
	for _, arch := range []string{model.ArchHashedBOW, model.ArchHashedMLP} {
		t.Run(arch, func(t *testing.T) {
			loop := newLoop(t, train.WithBatchSize(8))
			c := newClassifier(t, arch, 1)
			examples := toyCorpus(24)

			history := trainEpochs(t, loop, c, examples, 15)
			first, last := history[0], history[len(history)-1]
			assert.Less(t, last.Loss, first.Loss)
			assert.Equal(t, len(examples), last.Total)
			assert.Zero(t, last.SkippedBatches)

			eval, err := loop.Evaluate(context.Background(), c, examples, train.BinaryCrossEntropy{})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, eval.Accuracy, 0.9)
		})
	}
}

func TestTrainEpoch_DeterministicAcrossPoolSizes(t *testing.T) {
	examples := toyCorpus(20)

	serial := newClassifier(t, model.ArchHashedMLP, 3)
	trainEpochs(t, newLoop(t, train.WithPoolSize(1), train.WithBatchSize(5)), serial, examples, 3)

	wide := newClassifier(t, model.ArchHashedMLP, 3)
	trainEpochs(t, newLoop(t, train.WithPoolSize(8), train.WithBatchSize(5)), wide, examples, 3)

	assert.Equal(t, serial.Parameters(), wide.Parameters())
}

func TestTrainEpoch_ShuffleDependsOnEpoch(t *testing.T) {
	examples := toyCorpus(20)
	loop := newLoop(t, train.WithBatchSize(4))

	run := func(index int) []float64 {
		c := newClassifier(t, model.ArchHashedBOW, 5)
		_, err := loop.TrainEpoch(context.Background(), c, examples, train.NewAdamW(0.05, 0), train.BinaryCrossEntropy{},
			train.Epoch{Seed: 42, Index: index})
		require.NoError(t, err)
		return c.Parameters()
	}

	assert.Equal(t, run(1), run(1))
	assert.NotEqual(t, run(1), run(2))
}

func TestTrainEpoch_ReducedPrecisionMatchesFull(t *testing.T) {
	examples := toyCorpus(20)
	for _, arch := range []string{model.ArchHashedBOW, model.ArchHashedMLP} {
		t.Run(arch, func(t *testing.T) {
			full := trainEpochs(t, newLoop(t, train.WithBatchSize(8)), newClassifier(t, arch, 9), examples, 5)
			reduced := trainEpochs(t, newLoop(t, train.WithBatchSize(8), train.WithPrecision(model.ReducedPrecision)),
				newClassifier(t, arch, 9), examples, 5)

			for e := range full {
				assert.InDelta(t, full[e].Loss, reduced[e].Loss, 1e-3, "epoch %d", e+1)
				assert.InDelta(t, full[e].Accuracy, reduced[e].Accuracy, 0.05, "epoch %d", e+1)
			}
		})
	}
}

// poisoned returns a NaN encoding for one text so its batch has a
// non-finite loss.
type poisoned struct {
	model.Classifier
}

func (p poisoned) Encode(ctx context.Context, texts []string) ([]model.Encoding, error) {
	out, err := p.Classifier.Encode(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, text := range texts {
		if text == "poison" {
			out[i] = model.Encoding{Values: []float64{math.NaN()}}
		}
	}
	return out, nil
}

func TestTrainEpoch_SkipsNonFiniteBatch(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	loop := newLoop(t, train.WithBatchSize(1), train.WithLogger(logger))

	c := poisoned{newClassifier(t, model.ArchHashedBOW, 1)}
	examples := []core.LabeledExample{
		{Text: "hiking trail", Label: true},
		{Text: "poison", Label: true},
		{Text: "payroll audit", Label: false},
		{Text: "summit canyon", Label: true},
	}

	m, err := loop.TrainEpoch(context.Background(), c, examples, train.NewAdamW(0.01, 0.01), train.BinaryCrossEntropy{},
		train.Epoch{Seed: 1, Index: 1, Phase: core.PhaseThree, Classifier: "C"})
	require.NoError(t, err)

	assert.Equal(t, 1, m.SkippedBatches)
	assert.Equal(t, 4, m.Total)
	assert.False(t, math.IsNaN(m.Loss))
	for _, p := range c.Parameters() {
		require.False(t, math.IsNaN(p))
	}

	out := logs.String()
	assert.Contains(t, out, "skipping batch update")
	assert.Contains(t, out, core.ErrTraining.Error())
	assert.Contains(t, out, "phase=phase3")
	assert.Contains(t, out, "batch=")
}

func TestEvaluate_IsPure(t *testing.T) {
	loop := newLoop(t)
	c := newClassifier(t, model.ArchHashedMLP, 2)
	examples := toyCorpus(10)

	before := c.Parameters()
	first, err := loop.Evaluate(context.Background(), c, examples, train.BinaryCrossEntropy{})
	require.NoError(t, err)
	second, err := loop.Evaluate(context.Background(), c, examples, train.BinaryCrossEntropy{})
	require.NoError(t, err)

	assert.Equal(t, before, c.Parameters())
	assert.Equal(t, first, second)
	assert.Equal(t, len(examples), first.Total)
}

func TestEvaluate_EmptyPartition(t *testing.T) {
	loop := newLoop(t)
	m, err := loop.Evaluate(context.Background(), newClassifier(t, model.ArchHashedBOW, 1), nil, train.BinaryCrossEntropy{})
	require.NoError(t, err)
	assert.Equal(t, core.Metrics{}, m)
}

func TestPredict(t *testing.T) {
	loop := newLoop(t, train.WithBatchSize(3))
	c := newClassifier(t, model.ArchHashedBOW, 4)
	texts := []string{"a", "b c", "d e f", "g", "h i"}

	predictions, err := loop.Predict(context.Background(), c, texts)
	require.NoError(t, err)
	require.Len(t, predictions, len(texts))

	encodings, err := c.Encode(context.Background(), texts)
	require.NoError(t, err)
	for i, p := range predictions {
		assert.Equal(t, c.Forward(encodings[i], model.FullPrecision), p.Logit)
		assert.Equal(t, model.Decide(p.Logit), p.Label)
	}
}

func TestLoop_RequiresArguments(t *testing.T) {
	loop := newLoop(t)
	c := newClassifier(t, model.ArchHashedBOW, 1)
	examples := toyCorpus(1)
	ctx := context.Background()

	_, err := loop.TrainEpoch(ctx, nil, examples, train.NewAdamW(0.01, 0), train.BinaryCrossEntropy{}, train.Epoch{})
	assert.ErrorIs(t, err, train.ErrClassifierRequired)
	_, err = loop.TrainEpoch(ctx, c, examples, nil, train.BinaryCrossEntropy{}, train.Epoch{})
	assert.ErrorIs(t, err, train.ErrOptimizerRequired)
	_, err = loop.TrainEpoch(ctx, c, examples, train.NewAdamW(0.01, 0), nil, train.Epoch{})
	assert.ErrorIs(t, err, train.ErrLossRequired)
	_, err = loop.Evaluate(ctx, c, examples, nil)
	assert.ErrorIs(t, err, train.ErrLossRequired)
}

func TestTrainEpoch_WritesProgress(t *testing.T) {
	var buf bytes.Buffer
	loop := newLoop(t, train.WithBatchSize(4), train.WithProgress(&buf))
	trainEpochs(t, loop, newClassifier(t, model.ArchHashedBOW, 1), toyCorpus(4), 1)
	assert.Contains(t, buf.String(), "phase1 A epoch 1: 8/8")
}
