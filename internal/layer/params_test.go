package layer

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamStoreGetOrCreate(t *testing.T) {
	b := autodiff.New(cpu.New())
	s := NewParamStore(b, rand.NewPCG(7, 7))

	w, err := s.Get("out", "W_in_data", tensor.Shape{3, 2}, InitXavier)
	require.NoError(t, err)
	assert.Equal(t, "out.W_in_data", w.Name())

	again, err := s.Get("out", "W_in_data", tensor.Shape{3, 2}, InitXavier)
	require.NoError(t, err)
	assert.Same(t, w, again)

	_, err = s.Get("out", "W_in_data", tensor.Shape{2, 2}, InitXavier)
	assert.ErrorIs(t, err, ErrWidthMismatch)

	bias, err := s.Get("out", "b", tensor.Shape{2}, InitZeros)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, bias.Tensor().Data())

	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.Parameters(), 2)
}

func TestParamStoreXavierRange(t *testing.T) {
	b := autodiff.New(cpu.New())
	s := NewParamStore(b, rand.NewPCG(1, 1))

	w, err := s.Get("l", "W", tensor.Shape{4, 2}, InitXavier)
	require.NoError(t, err)
	for _, v := range w.Tensor().Data() {
		assert.LessOrEqual(t, v, float32(1.0))
		assert.GreaterOrEqual(t, v, float32(-1.0))
	}
}

func TestParamStoreSeeded(t *testing.T) {
	b := autodiff.New(cpu.New())
	s1 := NewParamStore(b, rand.NewPCG(3, 4))
	s2 := NewParamStore(b, rand.NewPCG(3, 4))

	w1, err := s1.Get("l", "W", tensor.Shape{5, 5}, InitUniform)
	require.NoError(t, err)
	w2, err := s2.Get("l", "W", tensor.Shape{5, 5}, InitUniform)
	require.NoError(t, err)

	assert.Equal(t, w1.Tensor().Data(), w2.Tensor().Data())
}

func TestParamStoreFrozen(t *testing.T) {
	b := autodiff.New(cpu.New())
	s := NewParamStore(b, rand.NewPCG(1, 1))

	_, err := s.Get("l", "W", tensor.Shape{2, 2}, InitXavier)
	require.NoError(t, err)
	_, err = s.Frozen("l", "P", tensor.Shape{2, 2}, InitUniform)
	require.NoError(t, err)

	assert.Len(t, s.Parameters(), 1)
	assert.Contains(t, s.StateDict(), "l.P")
}

func TestParamStoreLoadStateDict(t *testing.T) {
	b := autodiff.New(cpu.New())
	src := NewParamStore(b, rand.NewPCG(1, 2))
	_, err := src.Get("l", "W", tensor.Shape{2, 3}, InitXavier)
	require.NoError(t, err)

	dst := NewParamStore(b, rand.NewPCG(9, 9))
	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, 0, dst.Len(), "values wait for the layer")

	w, err := dst.Get("l", "W", tensor.Shape{2, 3}, InitXavier)
	require.NoError(t, err)
	want, _ := src.Lookup("l", "W")
	assert.Equal(t, want.Tensor().Data(), w.Tensor().Data())

	// Reload into the existing parameter.
	zero := tensor.Zeros[float32](tensor.Shape{2, 3}, b)
	require.NoError(t, dst.LoadStateDict(map[string]*tensor.RawTensor{"l.W": zero.Raw()}))
	assert.Equal(t, make([]float32, 6), w.Tensor().Data())

	bad := tensor.Zeros[float32](tensor.Shape{3, 3}, b)
	assert.Error(t, dst.LoadStateDict(map[string]*tensor.RawTensor{"l.W": bad.Raw()}))
}

func TestParamStoreLoadedShapeMismatch(t *testing.T) {
	b := autodiff.New(cpu.New())
	s := NewParamStore(b, nil)
	v := tensor.Zeros[float32](tensor.Shape{2, 2}, b)
	require.NoError(t, s.LoadStateDict(map[string]*tensor.RawTensor{"l.W": v.Raw()}))

	_, err := s.Get("l", "W", tensor.Shape{3, 2}, InitXavier)
	assert.ErrorIs(t, err, ErrWidthMismatch)
}
