package activation

import (
	"math"
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.Backend[*cpu.Backend]

func TestResolveIdentity(t *testing.T) {
	b := autodiff.New(cpu.New())
	x, err := tensor.FromSlice([]float32{-1, 2}, tensor.Shape{1, 1, 2}, b)
	require.NoError(t, err)

	for _, name := range []string{"", "identity", "linear"} {
		fn, err := Resolve[Backend](name)
		require.NoError(t, err, name)
		assert.Equal(t, []float32{-1, 2}, fn(x).Data(), name)
	}
}

func TestResolveRegistry(t *testing.T) {
	for _, name := range Names {
		_, err := Resolve[Backend](name)
		assert.NoError(t, err, name)
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve[Backend]("elu")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknown)

	_, err = Resolve[Backend]("relu,swish")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestResolveComposes(t *testing.T) {
	b := autodiff.New(cpu.New())
	x, err := tensor.FromSlice([]float32{-1, 0, 1}, tensor.Shape{1, 1, 3}, b)
	require.NoError(t, err)

	fn, err := Resolve[Backend]("relu,exp")
	require.NoError(t, err)

	y := fn(x).Data()
	assert.InDelta(t, 1.0, y[0], 1e-6)
	assert.InDelta(t, 1.0, y[1], 1e-6)
	assert.InDelta(t, math.E, y[2], 1e-5)
}

func TestSoftmaxLastAxis(t *testing.T) {
	b := autodiff.New(cpu.New())
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 1, 2}, b)
	require.NoError(t, err)

	fn, err := Resolve[Backend]("softmax")
	require.NoError(t, err)

	y := fn(x).Data()
	assert.InDelta(t, 1.0, y[0]+y[1], 1e-6)
	assert.InDelta(t, 1.0, y[2]+y[3], 1e-6)
}
