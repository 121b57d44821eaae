package layer

import (
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/ops"
)

// ReferenceSet is a fixed set of K reference vectors of width D.
type ReferenceSet[B tensor.Backend] interface {
	// Centroids returns the (K, D) reference vectors.
	Centroids() *tensor.Tensor[float32, B]

	// IsDual reports whether consumers derive a tanh channel from their output.
	IsDual() bool
}

// Default entropy weights of the soft-attention layers.
const (
	DefaultCentroidEntropyWeight = 1.0
	DefaultEyeEntropyWeight      = 0.0
)

// probEpsilon bounds the argument of log for probabilities.
const probEpsilon = 1e-8

// CentroidConfig configures the centroid layers.
type CentroidConfig struct {
	Activation    string
	OutputScores  bool    // output the attention (T, B, K) or index (T, B, 1)
	EntropyWeight float32 // weight of the attention entropy in the constraint
}

// attention holds the learned scoring of the soft-attention layers.
type attention[B tensor.Backend] struct {
	*Hidden[B]
	Bias  *nn.Parameter[B]
	WCe   *nn.Parameter[B]
	WIn   *nn.Parameter[B]
	act   [2]*tensor.Tensor[float32, B]
	score *tensor.Tensor[float32, B]
}

// Act implements DualChannel.
func (a *attention[B]) Act() [2]*tensor.Tensor[float32, B] { return a.act }

// Attention returns the (T, B, K) attention distribution.
func (a *attention[B]) Attention() *tensor.Tensor[float32, B] { return a.score }

// newAttention builds the forward part (width D of the references) and scores
// every reference against its pre-activation:
//
//	score(t, b, k) = centroid_k · W_att_ce + z(t, b) · W_att_in
//
// normalised over k. The output is the attention or the attention-weighted sum
// of the references; entropyWeight times the attention entropy is added to the
// constraint.
func newAttention[B tensor.Backend](env *Env[B], class, name string, sources []Source[B],
	refs *tensor.Tensor[float32, B], dual bool, cfg CentroidConfig,
) (*attention[B], error) {
	k, d := refs.Shape()[0], refs.Shape()[1]
	f, err := newForward(env, class, name, sources, HiddenConfig{NOut: d, Activation: cfg.Activation})
	if err != nil {
		return nil, err
	}
	a := &attention[B]{Hidden: f.Hidden, Bias: f.Bias}
	a.attrs["output_scores"] = cfg.OutputScores
	a.attrs["entropy_weight"] = cfg.EntropyWeight

	if a.WCe, err = a.param("W_att_ce", tensor.Shape{d, 1}, InitXavier); err != nil {
		return nil, err
	}
	if a.WIn, err = a.param("W_att_in", tensor.Shape{d, 1}, InitXavier); err != nil {
		return nil, err
	}

	z := a.Z()
	sh := z.Shape()
	ce := refs.MatMul(a.WCe.Tensor()).Reshape(1, 1, k)
	in := ops.Project(z, a.WIn.Tensor())
	score := ops.Add(tensor.Zeros[float32](tensor.Shape{sh[0], sh[1], k}, env.Backend), in)
	score = ops.Add(score, ce)
	att := ops.Softmax(score, 2)
	a.score = att

	var out *tensor.Tensor[float32, B]
	if cfg.OutputScores {
		out = att
		a.nOut = k
	} else {
		out = att.Reshape(sh[0]*sh[1], k).MatMul(refs).Reshape(sh[0], sh[1], d)
	}
	a.setOutput(out)

	if cfg.EntropyWeight != 0 {
		a.addConstraint(ops.Scale(entropy(att), cfg.EntropyWeight))
	}
	if dual {
		a.act = [2]*tensor.Tensor[float32, B]{ops.Tanh(out), out}
	} else {
		a.act = [2]*tensor.Tensor[float32, B]{out, out}
	}
	return a, nil
}

// entropy returns -Σ p·log(p) over all elements. Only the log argument is
// clipped, so a one-hot distribution gives exactly zero.
func entropy[B tensor.Backend](p *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	logp := ops.Clip(p, probEpsilon, 1).Log()
	return ops.Neg(ops.SumAll(ops.Mul(p, logp)))
}

// Centroid attends softly over a reference set.
type Centroid[B tensor.Backend] struct {
	*attention[B]
	References ReferenceSet[B]
}

// NewCentroid builds a centroid layer over refs. The layer width is the
// reference width D.
func NewCentroid[B tensor.Backend](env *Env[B], name string, sources []Source[B], refs ReferenceSet[B], cfg CentroidConfig) (*Centroid[B], error) {
	if refs == nil {
		return nil, configError("centroid", name, ErrMissingReference, "centroids")
	}
	a, err := newAttention(env, "centroid", name, sources, refs.Centroids(), refs.IsDual(), cfg)
	if err != nil {
		return nil, err
	}
	return &Centroid[B]{attention: a, References: refs}, nil
}

// Eye attends softly over the unit vectors of an n_clusters identity matrix.
type Eye[B tensor.Backend] struct {
	*attention[B]
}

// NewEye builds a centroid layer over the identity references. Its channels
// are always (tanh(output), output).
func NewEye[B tensor.Backend](env *Env[B], name string, sources []Source[B], clusters int, cfg CentroidConfig) (*Eye[B], error) {
	if clusters < 1 {
		return nil, configError("eye", name, ErrInvalidConfig, "n_clusters must be >= 1, got %d", clusters)
	}
	a, err := newAttention(env, "eye", name, sources, tensor.Eye[float32](clusters, env.Backend), true, cfg)
	if err != nil {
		return nil, err
	}
	a.attrs["n_clusters"] = clusters
	return &Eye[B]{attention: a}, nil
}

// Centroid2 selects the nearest reference by squared Euclidean distance.
//
// No scoring is learned; the selection does not pass gradient to the
// projection.
type Centroid2[B tensor.Backend] struct {
	*Forward[B]
	References ReferenceSet[B]
	act        [2]*tensor.Tensor[float32, B]
}

// NewCentroid2 builds a nearest-reference layer.
func NewCentroid2[B tensor.Backend](env *Env[B], name string, sources []Source[B], refs ReferenceSet[B], cfg CentroidConfig) (*Centroid2[B], error) {
	if refs == nil {
		return nil, configError("centroid2", name, ErrMissingReference, "centroids")
	}
	c := refs.Centroids()
	k, d := c.Shape()[0], c.Shape()[1]
	f, err := newForward(env, "centroid2", name, sources, HiddenConfig{NOut: d, Activation: cfg.Activation})
	if err != nil {
		return nil, err
	}
	l := &Centroid2[B]{Forward: f, References: refs}
	l.attrs["output_scores"] = cfg.OutputScores

	x := f.Output()
	sh := x.Shape()
	diff := ops.Sub(x.Reshape(sh[0], sh[1], 1, d), c.Reshape(1, 1, k, d))
	dist := ops.Sum(ops.Sqr(diff), 3, false)
	nearest := ops.Argmin(dist, 2)

	var out *tensor.Tensor[float32, B]
	if cfg.OutputScores {
		out = nearest.Float32().Reshape(sh[0], sh[1], 1)
		l.nOut = 1
	} else {
		out = c.Embedding(nearest)
	}
	l.setOutput(out)
	if refs.IsDual() {
		l.act = [2]*tensor.Tensor[float32, B]{ops.Tanh(out), out}
	} else {
		l.act = [2]*tensor.Tensor[float32, B]{out, out}
	}
	return l, nil
}

// Act implements DualChannel.
func (l *Centroid2[B]) Act() [2]*tensor.Tensor[float32, B] { return l.act }

// ProtoConfig configures a prototype layer.
type ProtoConfig struct {
	NOut         int
	Activation   string
	TrainProto   bool // register W_proto as a trainable parameter
	OutputScores bool // output the selected index (T, B, 1)
}

// Proto selects a row of a prototype matrix by the arg-max of its own
// pre-activation.
type Proto[B tensor.Backend] struct {
	*Forward[B]
	Prototypes *nn.Parameter[B]
	act        [2]*tensor.Tensor[float32, B]
}

// NewProto builds a prototype layer.
func NewProto[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg ProtoConfig) (*Proto[B], error) {
	f, err := newForward(env, "proto", name, sources, HiddenConfig{NOut: cfg.NOut, Activation: cfg.Activation})
	if err != nil {
		return nil, err
	}
	l := &Proto[B]{Forward: f}
	l.attrs["train_proto"] = cfg.TrainProto
	l.attrs["output_scores"] = cfg.OutputScores

	shape := tensor.Shape{cfg.NOut, cfg.NOut}
	if cfg.TrainProto {
		l.Prototypes, err = l.param("W_proto", shape, InitUniform)
	} else {
		l.Prototypes, err = l.frozen("W_proto", shape, InitUniform)
	}
	if err != nil {
		return nil, err
	}

	z := f.Z()
	sh := z.Shape()
	best := z.Argmax(2)
	var out *tensor.Tensor[float32, B]
	if cfg.OutputScores {
		out = best.Float32().Reshape(sh[0], sh[1], 1)
		l.nOut = 1
	} else {
		out = l.Prototypes.Tensor().Embedding(best)
	}
	l.setOutput(out)
	l.act = [2]*tensor.Tensor[float32, B]{ops.Tanh(out), out}
	return l, nil
}

// Act implements DualChannel.
func (l *Proto[B]) Act() [2]*tensor.Tensor[float32, B] { return l.act }
