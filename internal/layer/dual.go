package layer

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/activation"
	"github.com/born-ml/seqnet/internal/ops"
)

// DualChannel is implemented by layers that expose a pair of activations.
type DualChannel[B tensor.Backend] interface {
	Act() [2]*tensor.Tensor[float32, B]
}

// channelView presents one channel of a dual layer as a layer output.
type channelView[B tensor.Backend] struct {
	Layer[B]
	out *tensor.Tensor[float32, B]
}

func (c channelView[B]) Output() *tensor.Tensor[float32, B] { return c.out }

// DualConfig configures a dual-state layer.
type DualConfig struct {
	NOut int
	ActH string // channel 0 activation (default "tanh")
	ActS string // channel 1 activation (default "relu")
}

// DualState projects both channels of every source into two channels of its own.
//
// Channel i is activation_i(Σ_s mask_s · act_s[i] @ W_in_<s>_<i> + b). The
// output is channel 0.
type DualState[B tensor.Backend] struct {
	Base[B]
	Bias    *nn.Parameter[B]
	Weights [2][]*nn.Parameter[B]
	act     [2]*tensor.Tensor[float32, B]
}

// NewDualState builds a dual-state layer. Every source must implement DualChannel.
func NewDualState[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg DualConfig) (*DualState[B], error) {
	const class = "dual"
	if len(sources) == 0 {
		return nil, configError(class, name, ErrNoSources, "")
	}
	if cfg.NOut < 1 {
		return nil, configError(class, name, ErrInvalidConfig, "n_out must be >= 1, got %d", cfg.NOut)
	}
	if cfg.ActH == "" {
		cfg.ActH = "tanh"
	}
	if cfg.ActS == "" {
		cfg.ActS = "relu"
	}
	var acts [2]activation.Func[B]
	for i, n := range []string{cfg.ActH, cfg.ActS} {
		fn, err := activation.Resolve[B](n)
		if err != nil {
			return nil, configError(class, name, ErrUnknownActivation, "%q", n)
		}
		acts[i] = fn
	}

	l := &DualState[B]{Base: newBase(env, class, name, cfg.NOut, sources)}
	l.attrs["acth"] = cfg.ActH
	l.attrs["acts"] = cfg.ActS

	var channels [2][]Source[B]
	for _, s := range sources {
		d, ok := s.Layer.(DualChannel[B])
		if !ok {
			return nil, l.fail(ErrNoDualChannel, "source %q", s.Layer.Name())
		}
		pair := d.Act()
		for i := range 2 {
			w, err := l.param(fmt.Sprintf("W_in_%s_%d", s.Layer.Name(), i), tensor.Shape{s.Layer.NOut(), cfg.NOut}, InitXavier)
			if err != nil {
				return nil, err
			}
			l.Weights[i] = append(l.Weights[i], w)
			cs := s
			cs.Layer = channelView[B]{Layer: s.Layer, out: pair[i]}
			channels[i] = append(channels[i], cs)
		}
	}
	bias, err := l.param("b", tensor.Shape{cfg.NOut}, InitZeros)
	if err != nil {
		return nil, err
	}
	l.Bias = bias

	for i := range 2 {
		z, err := Combine(channels[i], l.Weights[i])
		if err != nil {
			return nil, l.wrap(err)
		}
		l.act[i] = acts[i](ops.Add(z, bias.Tensor().Reshape(1, 1, cfg.NOut)))
	}
	l.setOutput(l.act[0])
	return l, nil
}

// Act implements DualChannel.
func (l *DualState[B]) Act() [2]*tensor.Tensor[float32, B] { return l.act }

// StateToActConfig configures a state-to-act layer.
type StateToActConfig struct {
	Dual   bool // output channel 1 and derive channel 0 as tanh of it
	Repeat bool // repeat the state over the time extent of the index
}

// StateToAct turns the last time step of its sources into a (1, B, D) state.
//
// Sources that implement DualChannel contribute both channels, others
// contribute their output to both. With Repeat the state is repeated over the
// time extent of the inherited index; otherwise the layer's index is all-valid
// with a single time step.
type StateToAct[B tensor.Backend] struct {
	Base[B]
	act [2]*tensor.Tensor[float32, B]
}

// NewStateToAct builds a state-to-act layer.
func NewStateToAct[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg StateToActConfig) (*StateToAct[B], error) {
	const class = "state_to_act"
	if len(sources) == 0 {
		return nil, configError(class, name, ErrNoSources, "")
	}
	l := &StateToAct[B]{Base: newBase(env, class, name, width(sources), sources)}
	l.attrs["dual"] = cfg.Dual
	l.attrs["repeat"] = cfg.Repeat

	var parts [2][]*tensor.Tensor[float32, B]
	for _, s := range sources {
		pair := [2]*tensor.Tensor[float32, B]{s.Layer.Output(), s.Layer.Output()}
		if d, ok := s.Layer.(DualChannel[B]); ok {
			pair = d.Act()
		}
		for i := range 2 {
			steps := pair[i].Shape()[0]
			parts[i] = append(parts[i], ops.Step(pair[i], steps-1))
		}
	}
	for i := range 2 {
		if len(parts[i]) == 1 {
			l.act[i] = parts[i][0]
		} else {
			l.act[i] = tensor.Cat(parts[i], 2)
		}
	}
	out := l.act[0]
	if cfg.Dual {
		out = l.act[1]
		l.act[0] = ops.Tanh(l.act[1])
	}
	if cfg.Repeat {
		out = ops.Repeat(out, l.index.Steps())
	} else {
		l.index = OnesIndex(1, l.index.Batch(), env.Backend)
	}
	l.setOutput(out)
	return l, nil
}

// Act implements DualChannel.
func (l *StateToAct[B]) Act() [2]*tensor.Tensor[float32, B] { return l.act }
