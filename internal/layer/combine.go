package layer

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/ops"
)

// Combine sums the projections of every source through its weight matrix.
//
// A sparse source looks up the weight rows of its class ids; with a window of
// W ids per position the rows are laid side by side, giving (T, B, W·E). A
// dense source is multiplied through its weight, after its mask is applied.
func Combine[B tensor.Backend](sources []Source[B], weights []*nn.Parameter[B]) (*tensor.Tensor[float32, B], error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if len(weights) != len(sources) {
		return nil, fmt.Errorf("%w: %d sources, %d weights", ErrSourceCount, len(sources), len(weights))
	}

	var z *tensor.Tensor[float32, B]
	for i, s := range sources {
		w := weights[i].Tensor()
		var c *tensor.Tensor[float32, B]
		switch s.Kind {
		case SparseCategorical:
			ids, err := s.ids()
			if err != nil {
				return nil, err
			}
			sh := ids.Shape()
			emb := w.Embedding(ids)
			c = emb.Reshape(sh[0], sh[1], sh[2]*w.Shape()[1])
		default:
			out := s.Output()
			if out.Shape()[2] != w.Shape()[0] {
				return nil, fmt.Errorf("%w: source %q has width %d, weight expects %d",
					ErrWidthMismatch, s.Layer.Name(), out.Shape()[2], w.Shape()[0])
			}
			c = ops.Project(out, w)
		}
		if z == nil {
			z = c
			continue
		}
		if !z.Shape().Equal(c.Shape()) {
			return nil, fmt.Errorf("%w: source %q contributes %v, expected %v",
				ErrWidthMismatch, s.Layer.Name(), c.Shape(), z.Shape())
		}
		z = ops.Add(z, c)
	}
	return z, nil
}

// ids returns the class ids of a sparse source, cut to its window.
func (s Source[B]) ids() (*tensor.Tensor[int32, B], error) {
	out := s.Layer.Output()
	sh := out.Shape()
	if s.Window <= 0 || s.Window >= sh[2] {
		return out.Int32(), nil
	}
	data := out.Data()
	cut := make([]int32, 0, sh[0]*sh[1]*s.Window)
	for p := range sh[0] * sh[1] {
		for _, v := range data[p*sh[2] : p*sh[2]+s.Window] {
			cut = append(cut, int32(v))
		}
	}
	return tensor.FromSlice(cut, tensor.Shape{sh[0], sh[1], s.Window}, out.Backend())
}

// Concat joins the masked source outputs along the feature axis.
func Concat[B tensor.Backend](sources []Source[B]) (*tensor.Tensor[float32, B], error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	outs := make([]*tensor.Tensor[float32, B], len(sources))
	first := sources[0].Layer.Output().Shape()
	for i, s := range sources {
		out := s.Output()
		sh := out.Shape()
		if sh[0] != first[0] || sh[1] != first[1] {
			return nil, fmt.Errorf("%w: source %q is %v, expected time and batch of %v",
				ErrWidthMismatch, s.Layer.Name(), sh, first)
		}
		outs[i] = out
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	return tensor.Cat(outs, 2), nil
}

// width sums the output widths of the sources.
func width[B tensor.Backend](sources []Source[B]) int {
	n := 0
	for _, s := range sources {
		n += s.Layer.NOut()
	}
	return n
}
