package layer

import (
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/ops"
)

// InterpolationConfig configures a base interpolation layer.
type InterpolationConfig struct {
	Activation    string
	Method        string // only "softmax" (the default)
	OutputWeights bool   // output the (T', B, T) weights instead of the interpolation
}

// BaseInterpolation expresses every step of its input (over T') as a
// combination of the steps of a set of base layers (over T).
//
// A forward projection of width 1 scores the query q(t', b); every base
// contributes base(t, b) · W_base_<base>. The scores
//
//	s(t', b, t) = Σ_base base(t, b) · W_base + q(t', b)
//
// are normalised over t.
type BaseInterpolation[B tensor.Backend] struct {
	*Forward[B]
	Bases       []Layer[B]
	BaseWeights []*nn.Parameter[B]
	weights     *tensor.Tensor[float32, B]
}

// NewBaseInterpolation builds a base interpolation layer.
func NewBaseInterpolation[B tensor.Backend](env *Env[B], name string, sources []Source[B], bases []Layer[B], cfg InterpolationConfig) (*BaseInterpolation[B], error) {
	const class = "base"
	if len(bases) == 0 {
		return nil, configError(class, name, ErrMissingReference, "missing base")
	}
	method := cfg.Method
	if method == "" {
		method = "softmax"
	}
	if method != "softmax" {
		return nil, configError(class, name, ErrNotImplemented, "method %q", method)
	}
	f, err := newForward(env, class, name, sources, HiddenConfig{NOut: 1, Activation: cfg.Activation})
	if err != nil {
		return nil, err
	}
	l := &BaseInterpolation[B]{Forward: f, Bases: bases}
	l.attrs["method"] = method
	l.attrs["output_weights"] = cfg.OutputWeights
	names := make([]string, len(bases))
	for i, b := range bases {
		names[i] = b.Name()
	}
	l.attrs["base"] = strings.Join(names, ",")

	q := f.Z()
	qs := q.Shape()
	steps, batch := bases[0].Output().Shape()[0], bases[0].Output().Shape()[1]
	if batch != qs[1] {
		return nil, l.fail(ErrWidthMismatch, "base batch %d, input batch %d", batch, qs[1])
	}

	var bz *tensor.Tensor[float32, B]
	feats := make([]*tensor.Tensor[float32, B], 0, len(bases))
	total := 0
	for _, b := range bases {
		out := b.Output()
		if s := out.Shape(); s[0] != steps || s[1] != batch {
			return nil, l.fail(ErrWidthMismatch, "base %q is %v, expected (%d, %d, *)", b.Name(), s, steps, batch)
		}
		w, err := l.param("W_base_"+b.Name(), tensor.Shape{b.NOut(), 1}, InitXavier)
		if err != nil {
			return nil, err
		}
		l.BaseWeights = append(l.BaseWeights, w)
		c := ops.Project(out, w.Tensor())
		if bz == nil {
			bz = c
		} else {
			bz = ops.Add(bz, c)
		}
		feats = append(feats, out)
		total += b.NOut()
	}

	// (T, B, 1) -> (1, B, T)
	bzT := bz.Reshape(steps, batch).Transpose(1, 0).Reshape(1, batch, steps)
	score := ops.Add(tensor.Zeros[float32](tensor.Shape{qs[0], batch, steps}, env.Backend), q)
	score = ops.Add(score, bzT)
	l.weights = ops.Softmax(score, 2)

	if cfg.OutputWeights {
		l.nOut = steps
		l.setOutput(l.weights)
		return l, nil
	}

	base := feats[0]
	if len(feats) > 1 {
		base = tensor.Cat(feats, 2)
	}
	l.nOut = total
	// (B, T', T) @ (B, T, D) -> (B, T', D)
	mixed := l.weights.Transpose(1, 0, 2).BatchMatMul(base.Transpose(1, 0, 2))
	l.setOutput(mixed.Transpose(1, 0, 2))
	return l, nil
}

// Weights returns the (T', B, T) interpolation weights.
func (l *BaseInterpolation[B]) Weights() *tensor.Tensor[float32, B] { return l.weights }
