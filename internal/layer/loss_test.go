package layer

import (
	"math"
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lossInput builds a (2, 2, 2) batch with lengths [2, 1]; position 3 is padding.
func lossInput(t *testing.T) (*Env[Backend], *Data[Backend]) {
	t.Helper()
	env := newEnv(t, []int{2, 1}, 2)
	data := denseInput(t, env, []float32{2, 0, 0, 0, 1, 3, 5, 5}, 2, 2, 2)
	setParam(t, env, "loss.W_in_data", identity(2), 2, 2)
	return env, data
}

// -log softmax([2, 0])[0] + -log softmax([0, 0])[1] + -log softmax([1, 3])[1]
var wantNLL = 2*math.Log1p(math.Exp(-2)) + math.Log(2)

func TestLossCrossEntropyClasses(t *testing.T) {
	env, data := lossInput(t)

	l, err := NewLoss(env, "loss", Sources[Backend](data), nil,
		ClassTarget([]int32{0, 1, 1, 0}), LossConfig{Kind: LossCE, NOut: 2})
	require.NoError(t, err)

	require.NotNil(t, l.Constraint())
	assert.InDelta(t, wantNLL, l.Constraint().Item(), 1e-5)
	assert.Equal(t, 1.0, l.Error())

	post := l.Output()
	require.Equal(t, tensor.Shape{2, 2, 2}, post.Shape())
	d := post.Data()
	for p := range 4 {
		assert.InDelta(t, 1.0, d[2*p]+d[2*p+1], 1e-5)
	}
}

func TestLossCrossEntropyOneHot(t *testing.T) {
	env, data := lossInput(t)
	target := OneHotTarget([]float32{1, 0, 0, 1, 0, 1, 1, 0}, 2)

	l, err := NewLoss(env, "loss", Sources[Backend](data), nil, target, LossConfig{Kind: LossCE, NOut: 2})
	require.NoError(t, err)

	assert.InDelta(t, wantNLL, l.Constraint().Item(), 1e-5)
	assert.Equal(t, 1.0, l.Error())
}

func TestLossPriori(t *testing.T) {
	env, data := lossInput(t)

	l, err := NewLoss(env, "loss", Sources[Backend](data), nil,
		ClassTarget([]int32{0, 1, 1, 0}), LossConfig{Kind: LossPriori, NOut: 2})
	require.NoError(t, err)

	assert.InDelta(t, wantNLL, l.Constraint().Item(), 1e-5)
}

func TestLossSSEClasses(t *testing.T) {
	env, data := lossInput(t)

	l, err := NewLoss(env, "loss", Sources[Backend](data), nil,
		ClassTarget([]int32{0, 1, 1, 0}), LossConfig{Kind: LossSSE, NOut: 2})
	require.NoError(t, err)

	// (1 + 1 + 5) squared errors over 3 valid positions of width 2.
	assert.InDelta(t, 7.0/6, l.Constraint().Item(), 1e-5)
	assert.Equal(t, data.Output().Data(), l.Output().Data())
}

func TestLossSSEDense(t *testing.T) {
	env, data := lossInput(t)
	target := DenseTarget([]float32{2, 1, 0, 0, 1, 1, 9, 9}, 2)

	l, err := NewLoss(env, "loss", Sources[Backend](data), nil, target, LossConfig{Kind: LossSSE, NOut: 2})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, l.Constraint().Item(), 1e-5)
	assert.InDelta(t, 5.0, l.Error(), 1e-6)
}

func TestLossSSEDenseIgnoresPadding(t *testing.T) {
	build := func(padding []float32) float32 {
		env, data := lossInput(t)
		values := append([]float32{2, 1, 0, 0, 1, 1}, padding...)
		l, err := NewLoss(env, "loss", Sources[Backend](data), nil, DenseTarget(values, 2), LossConfig{Kind: LossSSE, NOut: 2})
		require.NoError(t, err)
		return l.Constraint().Item()
	}

	want := build([]float32{9, 9})
	assert.InDelta(t, want, build([]float32{-7, 100}), 1e-6)
	assert.InDelta(t, want, build([]float32{100, -7}), 1e-6)
}

func TestLossEntropy(t *testing.T) {
	env := newEnv(t, []int{2, 2}, 2)
	data := denseInput(t, env, []float32{2, 0, 0, 0, 2, 0, 0, 0}, 2, 2, 2)
	setParam(t, env, "loss.W_in_data", identity(2), 2, 2)

	l, err := NewLoss(env, "loss", Sources[Backend](data), nil,
		ClassTarget([]int32{1, 0, 0, 0}), LossConfig{Kind: LossEntropy, NOut: 2})
	require.NoError(t, err)

	// Sequence 0 is labelled: class NLL. Sequence 1 is not: posterior entropy.
	labelled := math.Log1p(math.Exp(2)) + math.Log1p(math.Exp(-2))
	unlabelled := 2 * math.Log(2)
	assert.InDelta(t, labelled+unlabelled, l.Constraint().Item(), 1e-4)
}

func TestLossInference(t *testing.T) {
	env, data := lossInput(t)

	l, err := NewLoss(env, "loss", Sources[Backend](data), nil, nil, LossConfig{Kind: LossCE, NOut: 2})
	require.NoError(t, err)

	assert.Nil(t, l.Constraint())
	assert.Zero(t, l.Error())
	assert.Equal(t, tensor.Shape{2, 2, 2}, l.Output().Shape())
}

func TestLossCopyInputRepeats(t *testing.T) {
	env := newEnv(t, []int{2}, 2)
	data := denseInput(t, env, []float32{1, 0, 0, 3}, 2, 1, 2)
	state, err := NewStateToAct(env, "s", Sources[Backend](data), StateToActConfig{})
	require.NoError(t, err)

	l, err := NewLoss(env, "loss", Sources[Backend](data), state,
		ClassTarget([]int32{1, 1}), LossConfig{Kind: LossCE})
	require.NoError(t, err)

	assert.Empty(t, l.Parameters())
	assert.Equal(t, "s", l.Attrs()["copy_input"])
	assert.Equal(t, []float32{0, 3, 0, 3}, l.Predictions().Data())
	assert.Zero(t, l.Error())
}

func TestLossErrors(t *testing.T) {
	env, data := lossInput(t)
	src := Sources[Backend](data)

	_, err := NewLoss(env, "loss", src, nil, nil, LossConfig{Kind: "hinge", NOut: 2})
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = NewLoss(env, "loss", src, nil, DenseTarget(make([]float32, 8), 2), LossConfig{Kind: LossEntropy, NOut: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewLoss(env, "loss", src, nil, ClassTarget([]int32{0, 1}), LossConfig{Kind: LossCE, NOut: 2})
	assert.ErrorIs(t, err, ErrWidthMismatch)

	_, err = NewLoss(env, "loss", src, nil, ClassTarget([]int32{0, 1, 7, 0}), LossConfig{Kind: LossCE, NOut: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewLoss[Backend](env, "loss", nil, nil, nil, LossConfig{Kind: LossCE, NOut: 2})
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestLossPaddingOutOfRangeClassIgnored(t *testing.T) {
	env, data := lossInput(t)

	l, err := NewLoss(env, "loss", Sources[Backend](data), nil,
		ClassTarget([]int32{0, 1, 1, -1}), LossConfig{Kind: LossCE, NOut: 2})
	require.NoError(t, err)
	assert.InDelta(t, wantNLL, l.Constraint().Item(), 1e-5)
}

func TestLossGradient(t *testing.T) {
	env, data := lossInput(t)

	env.Backend.Tape().StartRecording()
	l, err := NewLoss(env, "loss", Sources[Backend](data), nil,
		ClassTarget([]int32{0, 1, 1, 0}), LossConfig{Kind: LossCE, NOut: 2})
	require.NoError(t, err)
	grads := autodiff.Backward(l.Constraint(), env.Backend)
	env.Backend.Tape().StopRecording()

	require.Contains(t, grads, l.Bias.Tensor().Raw())
	// Σ (softmax - onehot) over the valid positions.
	assert.InDeltaSlice(t, []float32{0.5, -0.5}, grads[l.Bias.Tensor().Raw()].AsFloat32(), 1e-5)
}

func TestLossCopyInputTimeMismatch(t *testing.T) {
	env := newEnv(t, []int{4}, 4)
	data := denseInput(t, env, []float32{1, 2, 3, 4}, 4, 1, 1)
	chunk, err := NewChunking(env, "chunk", Sources[Backend](data), ChunkingConfig{ChunkSize: 2})
	require.NoError(t, err)

	require.NotPanics(t, func() {
		_, err = NewLoss(env, "loss", Sources[Backend](data), chunk,
			ClassTarget([]int32{0, 1, 0, 1}), LossConfig{Kind: LossSSE})
	})
	assert.ErrorIs(t, err, ErrWidthMismatch)
}

func TestLossSparseWindowUsesFirstSlot(t *testing.T) {
	env := newEnv(t, []int{2}, 2)
	data := sparseInput(t, env, 3, []float32{0, 2, 1, 0}, 2, 1, 2)
	setParam(t, env, "loss.W_in_data", []float32{1, 2, 3, 4, 5, 6}, 3, 2)

	var l *Loss[Backend]
	var err error
	require.NotPanics(t, func() {
		l, err = NewLoss(env, "loss", Sources[Backend](data), nil,
			ClassTarget([]int32{1, 1}), LossConfig{Kind: LossSSE, NOut: 2})
	})
	require.NoError(t, err)

	require.Equal(t, tensor.Shape{2, 1, 2}, l.Output().Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, l.Output().Data())
}
