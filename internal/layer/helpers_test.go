package layer

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.Backend[*cpu.Backend]

func newEnv(t *testing.T, lengths []int, steps int) *Env[Backend] {
	t.Helper()
	b := autodiff.New(cpu.New())
	idx, err := IndexFromLengths(lengths, steps, b)
	require.NoError(t, err)
	return NewEnv(b, idx, rand.NewPCG(1, 2))
}

func fromSlice(t *testing.T, b Backend, data []float32, shape ...int) *tensor.Tensor[float32, Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape), b)
	require.NoError(t, err)
	return x
}

func denseInput(t *testing.T, env *Env[Backend], data []float32, shape ...int) *Data[Backend] {
	t.Helper()
	l, err := NewData(env, "data", fromSlice(t, env.Backend, data, shape...), false, 0)
	require.NoError(t, err)
	return l
}

func sparseInput(t *testing.T, env *Env[Backend], classes int, ids []float32, shape ...int) *Data[Backend] {
	t.Helper()
	l, err := NewData(env, "data", fromSlice(t, env.Backend, ids, shape...), true, classes)
	require.NoError(t, err)
	return l
}

// setParam preloads a parameter value; the layer picks it up when built.
func setParam(t *testing.T, env *Env[Backend], key string, data []float32, shape ...int) {
	t.Helper()
	x := fromSlice(t, env.Backend, data, shape...)
	require.NoError(t, env.Params.LoadStateDict(map[string]*tensor.RawTensor{key: x.Raw()}))
}

func identity(n int) []float32 {
	out := make([]float32, n*n)
	for i := range n {
		out[i*n+i] = 1
	}
	return out
}
