package layer

import (
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopy(t *testing.T) {
	env := newEnv(t, []int{1}, 1)
	data := denseInput(t, env, []float32{-1, 2}, 1, 1, 2)

	l, err := NewCopy(env, "c", Sources[Backend](data, data), "relu")
	require.NoError(t, err)

	assert.Equal(t, 4, l.NOut())
	assert.Empty(t, l.Parameters())
	assert.Equal(t, []float32{0, 2, 0, 2}, l.Output().Data())

	_, err = NewCopy[Backend](env, "empty", nil, "")
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestCopyOfForwardIsExact(t *testing.T) {
	env := newEnv(t, []int{2, 1}, 2)
	data := denseInput(t, env, []float32{1, -2, 0.5, 3, -1, 4, 2, 2}, 2, 2, 2)

	f, err := NewForward(env, "f", Sources[Backend](data), HiddenConfig{NOut: 3, Activation: "tanh"})
	require.NoError(t, err)
	c, err := NewCopy(env, "c", Sources[Backend](f), "")
	require.NoError(t, err)

	assert.Equal(t, f.Output().Shape(), c.Output().Shape())
	assert.Equal(t, f.Output().Data(), c.Output().Data())
	assert.Equal(t, f.Index(), c.Index())
}

func TestConstant(t *testing.T) {
	env := newEnv(t, []int{2}, 2)

	scalar, err := NewConstant[Backend](env, "s", nil, ConstantConfig{Value: 2.5})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 1}, scalar.Output().Shape())
	assert.Equal(t, "float32", scalar.Attrs()["dtype"])

	vec, err := NewConstant[Backend](env, "v", nil, ConstantConfig{Value: []any{1, 2.0, 3}, DType: "int32"})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 3}, vec.Output().Shape())
	assert.Equal(t, []float32{1, 2, 3}, vec.Output().Data())
	assert.Equal(t, 3, vec.NOut())

	_, err = NewConstant[Backend](env, "m", nil, ConstantConfig{Value: []any{[]any{1, 2}, []any{3, 4}}})
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = NewConstant[Backend](env, "x", nil, ConstantConfig{Value: "abc"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewConstant(env, "src", Sources[Backend](scalar), ConstantConfig{Value: 1})
	assert.ErrorIs(t, err, ErrSourceCount)
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		op   Operator
		act  string
		fail bool
	}{
		{in: "+", op: OpAdd},
		{in: "add", op: OpAdd},
		{in: "-", op: OpSub},
		{in: "sub", op: OpSub},
		{in: "*", op: OpMul},
		{in: "mul", op: OpMul},
		{in: "/", op: OpDiv},
		{in: "div", op: OpDiv},
		{in: "maximum", op: OpMax},
		{in: "minimum:tanh", op: OpMin, act: "tanh"},
		{in: "pow", fail: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			op, act, err := ParseOperator(tt.in)
			if tt.fail {
				assert.ErrorIs(t, err, ErrUnknownOperator)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.act, act)
		})
	}
}

func TestBinaryOp(t *testing.T) {
	env := newEnv(t, []int{1}, 1)
	a := denseInput(t, env, []float32{1, 5}, 1, 1, 2)
	b, err := NewConstant[Backend](env, "k", nil, ConstantConfig{Value: []float64{3, 2}})
	require.NoError(t, err)

	tests := []struct {
		mode string
		want []float32
	}{
		{"+", []float32{4, 7}},
		{"sub", []float32{-2, 3}},
		{"*", []float32{3, 10}},
		{"maximum", []float32{3, 5}},
		{"minimum", []float32{1, 2}},
		{"-:relu", []float32{0, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			l, err := NewBinaryOp(env, "op", Sources[Backend](a, b), tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{1, 1, 2}, l.Output().Shape())
			assert.InDeltaSlice(t, tt.want, l.Output().Data(), 1e-6)
		})
	}
	assert.Equal(t, []float32{1, 5}, a.Output().Data())
}

func TestBinaryOpErrors(t *testing.T) {
	env := newEnv(t, []int{1}, 1)
	a := denseInput(t, env, []float32{1, 5}, 1, 1, 2)
	c, err := NewConstant[Backend](env, "c", nil, ConstantConfig{Value: 1})
	require.NoError(t, err)

	_, err = NewBinaryOp(env, "op", Sources[Backend](a), "+")
	assert.ErrorIs(t, err, ErrSourceCount)

	_, err = NewBinaryOp(env, "op", Sources[Backend](a, a), "pow")
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = NewBinaryOp(env, "op", Sources[Backend](a, c), "+")
	assert.ErrorIs(t, err, ErrWidthMismatch)
}
