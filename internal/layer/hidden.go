package layer

import (
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/activation"
	"github.com/born-ml/seqnet/internal/ops"
)

// HiddenConfig configures the layers that project their sources.
type HiddenConfig struct {
	NOut         int    // output width per window slot
	Activation   string // activation name, see package activation
	SparseWindow int    // class ids per position of sparse sources (default 1)
}

// Hidden owns one weight matrix W_in_<source> of shape (source n_out, n_out)
// per source and an activation.
type Hidden[B tensor.Backend] struct {
	Base[B]
	Activation activation.Func[B]
	Weights    []*nn.Parameter[B]
	window     int
	z          *tensor.Tensor[float32, B]
}

func newHidden[B tensor.Backend](env *Env[B], class, name string, sources []Source[B], cfg HiddenConfig) (*Hidden[B], error) {
	if cfg.NOut < 1 {
		return nil, configError(class, name, ErrInvalidConfig, "n_out must be >= 1, got %d", cfg.NOut)
	}
	window := cfg.SparseWindow
	if window < 1 {
		window = 1
	}
	if len(sources) == 0 {
		return nil, configError(class, name, ErrNoSources, "")
	}
	if window > 1 {
		for _, s := range sources {
			if s.Kind != SparseCategorical {
				return nil, configError(class, name, ErrInvalidConfig,
					"sparse_window %d needs sparse sources, %q is dense", window, s.Layer.Name())
			}
		}
	}
	act, err := activation.Resolve[B](cfg.Activation)
	if err != nil {
		return nil, configError(class, name, ErrUnknownActivation, "%q", cfg.Activation)
	}

	h := &Hidden[B]{
		Base:       newBase(env, class, name, cfg.NOut*window, sources),
		Activation: act,
		window:     window,
	}
	h.attrs["activation"] = cfg.Activation
	if window > 1 {
		h.attrs["sparse_window"] = window
	}
	for _, s := range sources {
		w, err := h.param("W_in_"+s.Layer.Name(), tensor.Shape{s.Layer.NOut(), cfg.NOut}, InitXavier)
		if err != nil {
			return nil, err
		}
		h.Weights = append(h.Weights, w)
	}
	return h, nil
}

// Z returns the pre-activation.
func (h *Hidden[B]) Z() *tensor.Tensor[float32, B] { return h.z }

// Forward is the biased projection layer: activation(Σ projections + b).
type Forward[B tensor.Backend] struct {
	*Hidden[B]
	Bias *nn.Parameter[B]
}

// NewForward builds a forward layer.
func NewForward[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg HiddenConfig) (*Forward[B], error) {
	return newForward(env, "forward", name, sources, cfg)
}

func newForward[B tensor.Backend](env *Env[B], class, name string, sources []Source[B], cfg HiddenConfig) (*Forward[B], error) {
	h, err := newHidden(env, class, name, sources, cfg)
	if err != nil {
		return nil, err
	}
	bias, err := h.param("b", tensor.Shape{h.nOut}, InitZeros)
	if err != nil {
		return nil, err
	}
	z, err := Combine(h.sources, h.Weights)
	if err != nil {
		return nil, h.wrap(err)
	}
	h.z = ops.Add(z, bias.Tensor().Reshape(1, 1, h.nOut))
	h.setOutput(h.Activation(h.z))
	return &Forward[B]{Hidden: h, Bias: bias}, nil
}

// Embedding is a projection without bias and without activation.
type Embedding[B tensor.Backend] struct {
	*Hidden[B]
}

// NewEmbedding builds an embedding layer. cfg.Activation is ignored.
func NewEmbedding[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg HiddenConfig) (*Embedding[B], error) {
	cfg.Activation = ""
	h, err := newHidden(env, "embedding", name, sources, cfg)
	if err != nil {
		return nil, err
	}
	z, err := Combine(h.sources, h.Weights)
	if err != nil {
		return nil, h.wrap(err)
	}
	h.z = z
	h.setOutput(z)
	return &Embedding[B]{Hidden: h}, nil
}
