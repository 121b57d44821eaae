// Package ops holds the tensor-expression helpers the layers are written in.
//
// Every helper is composed from engine operations the autodiff backend records
// on its tape (elementwise arithmetic, SumDim, Gather, Where, Softmax and the
// nn activation modules). Scalar arithmetic goes through a broadcast rank-0
// tensor and full reductions through chained SumDim: the tensor methods
// MulScalar, AddScalar, Sum and Expand are not recorded and would cut the
// gradient.
//
// Binary helpers never write into their operands: the CPU backend reuses the
// left operand's buffer when it is uniquely referenced, and layer outputs are
// shared between layers.
package ops

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Add returns a + b.
func Add[B tensor.Backend](a, b *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	defer a.Raw().ForceNonUnique()()
	return a.Add(b)
}

// Sub returns a - b.
func Sub[B tensor.Backend](a, b *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	defer a.Raw().ForceNonUnique()()
	return a.Sub(b)
}

// Mul returns a * b elementwise.
func Mul[B tensor.Backend](a, b *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	defer a.Raw().ForceNonUnique()()
	return a.Mul(b)
}

// Div returns a / b elementwise.
func Div[B tensor.Backend](a, b *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	defer a.Raw().ForceNonUnique()()
	return a.Div(b)
}

// Sqr returns x * x.
func Sqr[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return Mul(x, x)
}

// Neg returns -x.
func Neg[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return Scale(x, -1)
}

// Scale returns s * x.
func Scale[B tensor.Backend](x *tensor.Tensor[float32, B], s float32) *tensor.Tensor[float32, B] {
	return Mul(x, Scalar(s, x.Backend()))
}

// Shift returns x + s.
func Shift[B tensor.Backend](x *tensor.Tensor[float32, B], s float32) *tensor.Tensor[float32, B] {
	return Add(x, Scalar(s, x.Backend()))
}

// SumAll reduces every element of x into a rank-0 tensor.
func SumAll[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.Reshape(x.NumElements()).SumDim(0, false)
}

// Sum reduces x along dim.
func Sum[B tensor.Backend](x *tensor.Tensor[float32, B], dim int, keepDim bool) *tensor.Tensor[float32, B] {
	return x.SumDim(dim, keepDim)
}

// Mean averages x along dim.
func Mean[B tensor.Backend](x *tensor.Tensor[float32, B], dim int, keepDim bool) *tensor.Tensor[float32, B] {
	return x.MeanDim(dim, keepDim)
}

// Max returns the maximum of x along dim.
//
// The value is selected with Gather, so the gradient flows to the arg-max element only.
func Max[B tensor.Backend](x *tensor.Tensor[float32, B], dim int, keepDim bool) *tensor.Tensor[float32, B] {
	dim = normDim(dim, len(x.Shape()))
	idx := x.Argmax(dim).Unsqueeze(dim)
	m := x.Gather(dim, idx)
	if !keepDim {
		m = m.Squeeze(dim)
	}
	return m
}

// Argmin returns the index of the minimum of x along dim (the dim is removed).
func Argmin[B tensor.Backend](x *tensor.Tensor[float32, B], dim int) *tensor.Tensor[int32, B] {
	return Neg(x).Argmax(dim)
}

// LogSoftmax returns log(softmax(x)) along dim, shifting by the maximum first.
func LogSoftmax[B tensor.Backend](x *tensor.Tensor[float32, B], dim int) *tensor.Tensor[float32, B] {
	dim = normDim(dim, len(x.Shape()))
	shifted := Sub(x, Max(x, dim, true))
	lse := Sum(shifted.Exp(), dim, true).Log()
	return Sub(shifted, lse)
}

// Softmax returns the normalised exponential of x along dim.
func Softmax[B tensor.Backend](x *tensor.Tensor[float32, B], dim int) *tensor.Tensor[float32, B] {
	return x.Softmax(normDim(dim, len(x.Shape())))
}

// Clip limits x to [lo, hi].
func Clip[B tensor.Backend](x *tensor.Tensor[float32, B], lo, hi float32) *tensor.Tensor[float32, B] {
	b := x.Backend()
	low := tensor.Full[float32](x.Shape(), lo, b)
	high := tensor.Full[float32](x.Shape(), hi, b)
	x = tensor.Where(x.Lt(low), low, x)
	return tensor.Where(x.Gt(high), high, x)
}

// Sigmoid returns 1 / (1 + exp(-x)).
//
// Like the nn activation modules it needs a backend that implements the
// activation, such as the autodiff backend.
func Sigmoid[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.NewSigmoid[B]().Forward(x)
}

// Tanh returns the hyperbolic tangent of x.
func Tanh[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.NewTanh[B]().Forward(x)
}

// ReLU returns max(x, 0).
func ReLU[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.NewReLU[B]().Forward(x)
}

// Abs returns |x|.
func Abs[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	zeros := tensor.Zeros[float32](x.Shape(), x.Backend())
	return tensor.Where(x.Lt(zeros), Neg(x), x)
}

// Softplus returns log(1 + exp(x)) computed as relu(x) + log(1 + exp(-|x|)).
func Softplus[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return Add(ReLU(x), Shift(Neg(Abs(x)).Exp(), 1).Log())
}

// Maximum returns the elementwise maximum of a and b (equal shapes).
func Maximum[B tensor.Backend](a, b *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.Where(a.Ge(b), a, b)
}

// Minimum returns the elementwise minimum of a and b (equal shapes).
func Minimum[B tensor.Backend](a, b *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.Where(a.Le(b), a, b)
}

// Project multiplies the last axis of a (T, B, D) tensor by a (D, E) matrix.
func Project[B tensor.Backend](x, w *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	s := x.Shape()
	if len(s) != 3 {
		panic(fmt.Sprintf("ops: Project expects (time, batch, feature), got %v", s))
	}
	ws := w.Shape()
	if len(ws) != 2 || ws[0] != s[2] {
		panic(fmt.Sprintf("ops: Project weight %v does not match input %v", ws, s))
	}
	flat := x.Reshape(s[0]*s[1], s[2])
	return flat.MatMul(w).Reshape(s[0], s[1], ws[1])
}

// ApplyMask scales a (T, B, D) tensor by a (T, B) mask and a scalar mass.
func ApplyMask[B tensor.Backend](x, mask *tensor.Tensor[float32, B], mass float32) *tensor.Tensor[float32, B] {
	s := x.Shape()
	out := Mul(x, mask.Reshape(s[0], s[1], 1))
	if mass != 1 {
		out = Scale(out, mass)
	}
	return out
}

// Rows selects rows of a 2-D tensor. The result has shape (len(rows), D).
func Rows[B tensor.Backend](x *tensor.Tensor[float32, B], rows []int) *tensor.Tensor[float32, B] {
	s := x.Shape()
	idx := make([]int32, 0, len(rows)*s[1])
	for _, r := range rows {
		for range s[1] {
			idx = append(idx, int32(r))
		}
	}
	it, err := tensor.FromSlice(idx, tensor.Shape{len(rows), s[1]}, x.Backend())
	if err != nil {
		panic(fmt.Sprintf("ops: Rows index: %v", err))
	}
	return x.Gather(0, it)
}

// Step selects time step t of a (T, B, D) tensor, keeping the time axis: (1, B, D).
func Step[B tensor.Backend](x *tensor.Tensor[float32, B], t int) *tensor.Tensor[float32, B] {
	s := x.Shape()
	idx := make([]int32, s[1]*s[2])
	for i := range idx {
		idx[i] = int32(t)
	}
	it, err := tensor.FromSlice(idx, tensor.Shape{1, s[1], s[2]}, x.Backend())
	if err != nil {
		panic(fmt.Sprintf("ops: Step index: %v", err))
	}
	return x.Gather(0, it)
}

// Repeat tiles a (1, B, D) tensor n times along the time axis.
func Repeat[B tensor.Backend](x *tensor.Tensor[float32, B], n int) *tensor.Tensor[float32, B] {
	s := x.Shape()
	return Expand(x, tensor.Shape{n, s[1], s[2]})
}

// Expand broadcasts x to shape. The gradient is summed back over the
// broadcast axes.
func Expand[B tensor.Backend](x *tensor.Tensor[float32, B], shape tensor.Shape) *tensor.Tensor[float32, B] {
	if x.Shape().Equal(shape) {
		return x
	}
	return Add(tensor.Zeros[float32](shape, x.Backend()), x)
}

// Scalar returns a rank-0 tensor holding v.
func Scalar[B tensor.Backend](v float32, b B) *tensor.Tensor[float32, B] {
	return tensor.Full[float32](tensor.Shape{}, v, b)
}

// OneHot builds an (N, n) float tensor with a one at every class id.
func OneHot[B tensor.Backend](ids []int32, n int, b B) *tensor.Tensor[float32, B] {
	data := make([]float32, len(ids)*n)
	for i, id := range ids {
		if int(id) >= 0 && int(id) < n {
			data[i*n+int(id)] = 1
		}
	}
	t, err := tensor.FromSlice(data, tensor.Shape{len(ids), n}, b)
	if err != nil {
		panic(fmt.Sprintf("ops: OneHot: %v", err))
	}
	return t
}

func normDim(dim, rank int) int {
	if dim < 0 {
		return dim + rank
	}
	return dim
}
