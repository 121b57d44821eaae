package layer

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/ops"
)

// Loss kinds.
const (
	LossCE      = "ce"
	LossEntropy = "entropy"
	LossPriori  = "priori"
	LossSSE     = "sse"
)

// Clip bounds used by the losses.
const (
	minProb        = 1e-30
	entropyMinProb = 1e-6
)

// LossConfig configures a loss layer.
type LossConfig struct {
	Kind string // ce, entropy, priori or sse
	NOut int    // number of classes; ignored with a copy input
}

// Loss scores predictions against a target.
//
// Predictions are a fresh masked projection of the sources plus a bias, or the
// output of a copy-input layer. Predictions with a time extent of 1 are
// repeated over the time extent of the index. With a nil target only the
// output is built.
type Loss[B tensor.Backend] struct {
	Base[B]
	Kind    string
	Weights []*nn.Parameter[B]
	Bias    *nn.Parameter[B]
	target  *Target
	pred    *tensor.Tensor[float32, B]
	err     float64
}

// NewLoss builds a loss layer. copyInput may be nil.
func NewLoss[B tensor.Backend](env *Env[B], name string, sources []Source[B], copyInput Layer[B], target *Target, cfg LossConfig) (*Loss[B], error) {
	const class = "loss"
	switch cfg.Kind {
	case LossCE, LossEntropy, LossPriori, LossSSE:
	default:
		return nil, configError(class, name, ErrNotImplemented, "loss %q", cfg.Kind)
	}

	nOut := cfg.NOut
	if copyInput != nil {
		nOut = copyInput.NOut()
	}
	if nOut < 1 {
		return nil, configError(class, name, ErrInvalidConfig, "n_out must be >= 1, got %d", nOut)
	}
	if copyInput == nil && len(sources) == 0 {
		return nil, configError(class, name, ErrNoSources, "")
	}

	l := &Loss[B]{Base: newBase(env, class, name, nOut, sources), Kind: cfg.Kind, target: target}
	l.attrs["loss"] = cfg.Kind
	if copyInput != nil {
		l.attrs["copy_input"] = copyInput.Name()
		if len(sources) == 0 {
			l.index = copyInput.Index()
		}
	}

	z, err := l.predictions(sources, copyInput)
	if err != nil {
		return nil, err
	}
	sh := z.Shape()
	if (sh[0] != 1 && sh[0] != l.index.Steps()) || sh[1] != l.index.Batch() {
		return nil, l.fail(ErrWidthMismatch, "predictions %v do not match index (%d, %d)",
			sh, l.index.Steps(), l.index.Batch())
	}
	z = ops.Repeat(z, l.index.Steps())
	l.pred = z
	sh = z.Shape()

	ym := z.Reshape(sh[0]*sh[1], sh[2])
	if cfg.Kind == LossSSE {
		l.setOutput(z)
	} else {
		l.setOutput(ops.Softmax(z, 2))
	}
	if target == nil {
		return l, nil
	}

	if err := target.validate(sh[0]*sh[1], sh[2]); err != nil {
		return nil, l.wrap(err)
	}
	valid := l.index.Valid()
	if cfg.Kind != LossSSE && target.Kind != TargetClasses && cfg.Kind != LossCE {
		return nil, l.fail(ErrInvalidConfig, "loss %q needs class targets, got %s", cfg.Kind, target.Kind)
	}
	if target.Kind == TargetClasses {
		if err := checkClasses(target.Classes, valid, sh[2]); err != nil {
			return nil, l.wrap(err)
		}
	}

	var obj *tensor.Tensor[float32, B]
	switch cfg.Kind {
	case LossCE:
		obj = l.crossEntropy(ym, valid)
	case LossEntropy:
		obj = l.entropyLoss(ym)
	case LossPriori:
		obj = l.priori(ym, valid)
	case LossSSE:
		obj = l.sse(ym, valid)
	}
	l.addConstraint(obj)
	l.err = l.errorMetric(ym.Data(), valid, sh[2])
	return l, nil
}

func (l *Loss[B]) predictions(sources []Source[B], copyInput Layer[B]) (*tensor.Tensor[float32, B], error) {
	if copyInput != nil {
		return copyInput.Output(), nil
	}
	// A sparse source contributes its first window slot only.
	srcs := make([]Source[B], len(sources))
	for i, s := range sources {
		if s.Kind == SparseCategorical {
			s = s.WithWindow(1)
		}
		srcs[i] = s
	}
	for _, s := range srcs {
		w, err := l.param("W_in_"+s.Layer.Name(), tensor.Shape{s.Layer.NOut(), l.nOut}, InitXavier)
		if err != nil {
			return nil, err
		}
		l.Weights = append(l.Weights, w)
	}
	bias, err := l.param("b", tensor.Shape{l.nOut}, InitZeros)
	if err != nil {
		return nil, err
	}
	l.Bias = bias
	z, err := Combine(srcs, l.Weights)
	if err != nil {
		return nil, l.wrap(err)
	}
	return ops.Add(z, bias.Tensor().Reshape(1, 1, l.nOut)), nil
}

func (l *Loss[B]) crossEntropy(ym *tensor.Tensor[float32, B], valid []int) *tensor.Tensor[float32, B] {
	if len(valid) == 0 {
		return ops.Scalar(0, l.backend())
	}
	x := ops.Rows(ym, valid)
	if l.target.Kind == TargetClasses {
		return ops.Neg(ops.SumAll(ops.LogSoftmax(x, 1).Gather(1, l.classIndex(valid))))
	}
	y := ops.Rows(l.targetRows(), valid)
	logp := ops.Clip(ops.Softmax(x, 1), minProb, 1).Log()
	return ops.Neg(ops.SumAll(ops.Mul(y, logp)))
}

// entropyLoss sums, per batch entry, the class NLL over time when any class of
// the sequence is > 0, and the posterior entropy over time otherwise.
func (l *Loss[B]) entropyLoss(ym *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	steps, batch := l.index.Steps(), l.index.Batch()
	idx := l.index.Tensor()
	all := make([]int, steps*batch)
	for i := range all {
		all[i] = i
	}

	p := ops.Clip(ops.Softmax(ym, 1), entropyMinProb, 1e6)
	ee := ops.Neg(ops.Sum(ops.Mul(p, p.Log()), 1, false)).Reshape(steps, batch)
	ee = ops.Mul(ee, idx)
	nll := ops.Neg(ops.LogSoftmax(ym, 1).Gather(1, l.classIndex(all))).Reshape(steps, batch)
	nll = ops.Mul(nll, idx)

	labelled := make([]float32, batch)
	mask := idx.Data()
	for pos, c := range l.target.Classes {
		if c > 0 && mask[pos] > 0 {
			labelled[pos%batch] = 1
		}
	}
	f, err := tensor.FromSlice(labelled, tensor.Shape{1, batch}, l.backend())
	if err != nil {
		panic(fmt.Sprintf("entropy loss: %v", err))
	}
	g := ops.Shift(ops.Neg(f), 1)
	return ops.SumAll(ops.Add(ops.Mul(ops.Sum(nll, 0, true), f), ops.Mul(ops.Sum(ee, 0, true), g)))
}

func (l *Loss[B]) priori(ym *tensor.Tensor[float32, B], valid []int) *tensor.Tensor[float32, B] {
	if len(valid) == 0 {
		return ops.Scalar(0, l.backend())
	}
	p := ops.Softmax(ops.Rows(ym, valid), 1).Gather(1, l.classIndex(valid))
	return ops.Neg(ops.SumAll(ops.Clip(p, minProb, 1).Log()))
}

// sse is the mean squared error for class targets and the summed squared
// error otherwise.
func (l *Loss[B]) sse(ym *tensor.Tensor[float32, B], valid []int) *tensor.Tensor[float32, B] {
	if len(valid) == 0 {
		return ops.Scalar(0, l.backend())
	}
	x := ops.Rows(ym, valid)
	if l.target.Kind == TargetClasses {
		ids := make([]int32, len(valid))
		for i, p := range valid {
			ids[i] = l.target.Classes[p]
		}
		y := ops.OneHot(ids, l.nOut, l.backend())
		return ops.Scale(ops.SumAll(ops.Sqr(ops.Sub(x, y))), 1/float32(len(valid)*l.nOut))
	}
	y := ops.Rows(l.targetRows(), valid)
	return ops.SumAll(ops.Sqr(ops.Sub(x, y)))
}

// errorMetric counts arg-max mismatches for class and one-hot targets and
// sums squared errors for dense targets, over valid positions.
func (l *Loss[B]) errorMetric(ym []float32, valid []int, width int) float64 {
	var e float64
	for _, p := range valid {
		row := ym[p*width : (p+1)*width]
		if l.target.Kind == TargetDense {
			ref := l.target.Values[p*width : (p+1)*width]
			for i := range row {
				d := float64(row[i] - ref[i])
				e += d * d
			}
			continue
		}
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		if int32(best) != l.target.Class(p) {
			e++
		}
	}
	return e
}

func (l *Loss[B]) classIndex(positions []int) *tensor.Tensor[int32, B] {
	ids := make([]int32, len(positions))
	for i, p := range positions {
		c := l.target.Classes[p]
		if c < 0 || int(c) >= l.nOut {
			c = 0
		}
		ids[i] = c
	}
	t, err := tensor.FromSlice(ids, tensor.Shape{len(ids), 1}, l.backend())
	if err != nil {
		panic(fmt.Sprintf("loss class index: %v", err))
	}
	return t
}

func (l *Loss[B]) targetRows() *tensor.Tensor[float32, B] {
	t, err := tensor.FromSlice(l.target.Values, tensor.Shape{l.target.Positions(), l.target.Width}, l.backend())
	if err != nil {
		panic(fmt.Sprintf("loss target: %v", err))
	}
	return t
}

func checkClasses(ids []int32, valid []int, classes int) error {
	for _, p := range valid {
		if c := ids[p]; c < 0 || int(c) >= classes {
			return fmt.Errorf("%w: target class %d at position %d, layer has %d classes",
				ErrInvalidConfig, c, p, classes)
		}
	}
	return nil
}

// Error returns the error metric of the last build. It is zero without a target.
func (l *Loss[B]) Error() float64 { return l.err }

// Predictions returns the (T, B, D) predictions before normalisation.
func (l *Loss[B]) Predictions() *tensor.Tensor[float32, B] { return l.pred }

// Target returns the target the layer was built with, or nil.
func (l *Loss[B]) Target() *Target { return l.target }
