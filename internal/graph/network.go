package graph

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/config"
	"github.com/born-ml/seqnet/internal/datafile"
	"github.com/born-ml/seqnet/internal/layer"
)

// Option configures a Network.
type Option func(*options)

type options struct {
	logger *slog.Logger
	rng    rand.Source
}

// WithLogger sets the logger layer construction is reported to at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRand sets the random stream for initialisation, noise and dropout.
func WithRand(src rand.Source) Option {
	return func(o *options) {
		o.rng = src
	}
}

// Network is a sequence network: a description and its parameters.
//
// Network implements nn.Module. Save and Load persist its parameters as
// safetensors. Parameters are created by the first Build; a state dict loaded before that
// is applied as the parameters are created.
type Network[B tensor.Backend] struct {
	desc    *config.Network
	backend B
	params  *layer.ParamStore[B]
	builder *Builder[B]
}

// New creates a network for desc on backend.
func New[B tensor.Backend](backend B, desc *config.Network, opts ...Option) *Network[B] {
	o := &options{
		logger: slog.New(slog.DiscardHandler),
		rng:    rand.NewPCG(1, 2),
	}
	for _, opt := range opts {
		opt(o)
	}
	params := layer.NewParamStore(backend, o.rng)
	return &Network[B]{
		desc:    desc,
		backend: backend,
		params:  params,
		builder: NewBuilder(desc, backend, params, o.rng, o.logger),
	}
}

// Build constructs the training graph of batch: dropout is applied.
func (n *Network[B]) Build(batch *Batch[B]) (*Graph[B], error) {
	return n.builder.Build(batch, true)
}

// Evaluate constructs the graph of batch without dropout.
func (n *Network[B]) Evaluate(batch *Batch[B]) (*Graph[B], error) {
	return n.builder.Build(batch, false)
}

// Forward builds an evaluation graph on a batch of full-length sequences and
// returns the output layer's output. It panics when the graph cannot be built.
func (n *Network[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	g, err := n.Evaluate(&Batch[B]{Data: input})
	if err != nil {
		panic(fmt.Sprintf("seqnet: forward: %v", err))
	}
	return g.Output.Output()
}

// Parameters returns the trainable parameters created so far.
func (n *Network[B]) Parameters() []*nn.Parameter[B] { return n.params.Parameters() }

// StateDict returns every parameter, frozen ones included, keyed "<layer>.<param>".
func (n *Network[B]) StateDict() map[string]*tensor.RawTensor { return n.params.StateDict() }

// LoadStateDict loads parameter values.
func (n *Network[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return n.params.LoadStateDict(state)
}

// Save writes the state dict to a .safetensors file with meta as header
// metadata.
func (n *Network[B]) Save(path string, meta map[string]string) error {
	return datafile.Write(path, n.StateDict(), meta)
}

// Load reads parameter values from a .safetensors or .gguf file. Values for
// parameters not created yet are applied when their layer is first built.
func (n *Network[B]) Load(path string) error {
	state, err := datafile.ReadAll(path, n.backend)
	if err != nil {
		return err
	}
	return n.LoadStateDict(state)
}

// Params returns the parameter store.
func (n *Network[B]) Params() *layer.ParamStore[B] { return n.params }

// Description returns the network description.
func (n *Network[B]) Description() *config.Network { return n.desc }
