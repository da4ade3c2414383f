package train

import (
	"testing"

	"github.com/poiesic/relevance/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdamW_FirstStep(t *testing.T) {
	opt := NewAdamW(0.1, 0)
	update, err := opt.Update([]float64{1, 1, 1}, []float64{2, -0.5, 0})
	require.NoError(t, err)

	// bias-corrected first step moves each coordinate by lr against the gradient sign
	assert.InDelta(t, -0.1, update[0], 1e-6)
	assert.InDelta(t, 0.1, update[1], 1e-6)
	assert.InDelta(t, 0, update[2], 1e-12)
	assert.Equal(t, 1, opt.Steps())
}

func TestAdamW_WeightDecay(t *testing.T) {
	opt := NewAdamW(0.1, 0.01)
	update, err := opt.Update([]float64{2, -4}, []float64{0, 0})
	require.NoError(t, err)

	assert.InDelta(t, -0.1*0.01*2, update[0], 1e-12)
	assert.InDelta(t, 0.1*0.01*4, update[1], 1e-12)
}

func TestAdamW_ShapeMismatch(t *testing.T) {
	opt := NewAdamW(0.1, 0)
	_, err := opt.Update([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, model.ErrParameterShape)

	_, err = opt.Update([]float64{1, 2}, []float64{1, 1})
	require.NoError(t, err)
	_, err = opt.Update([]float64{1, 2, 3}, []float64{1, 1, 1})
	assert.ErrorIs(t, err, model.ErrParameterShape)
}

func TestAdamW_StepAppliesUpdate(t *testing.T) {
	spec := model.DefaultSpec(model.ArchHashedBOW)
	spec.Dimensions = 8
	c, err := model.New(spec, 1, model.Deps{})
	require.NoError(t, err)

	before := c.Parameters()
	grad := make([]float64, c.NumParameters())
	grad[0] = 1

	opt := NewAdamW(0.01, 0)
	require.NoError(t, opt.Step(c, grad))

	after := c.Parameters()
	assert.InDelta(t, before[0]-0.01, after[0], 1e-6)
	assert.Equal(t, before[1], after[1])
}
