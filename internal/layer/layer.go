// Package layer implements the layers of a sequence network.
//
// A layer is built eagerly from its sources: the constructor evaluates the
// layer's expression through the Born backend and stores the (time, batch,
// feature) result. With an autodiff backend the construction is recorded on
// the gradient tape, so a built graph is both the forward pass and the record
// for the backward pass.
//
// Parameters are not owned by layers. They come from a ParamStore keyed by
// layer name, so the same network can be rebuilt for every minibatch.
package layer

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/ops"
)

// Layer is a built node of a sequence network.
type Layer[B tensor.Backend] interface {
	// Name returns the unique layer name.
	Name() string

	// Class returns the layer class ("forward", "copy", ...).
	Class() string

	// NOut returns the output feature width.
	NOut() int

	// Output returns the rank-3 (time, batch, feature) output.
	Output() *tensor.Tensor[float32, B]

	// Index returns the validity index of the output.
	Index() *Index[B]

	// Sparse reports whether the output holds class ids instead of features.
	Sparse() bool

	// Attrs returns the descriptive attributes of the layer.
	Attrs() map[string]any

	// Parameters returns the trainable parameters the layer uses.
	Parameters() []*nn.Parameter[B]

	// Constraint returns the scalar term the layer adds to the training
	// objective, or nil.
	Constraint() *tensor.Tensor[float32, B]
}

// Env carries what all layers of one graph share.
type Env[B tensor.Backend] struct {
	Backend B
	Index   *Index[B]      // validity index of the network input
	Params  *ParamStore[B] // parameters, persisting across graphs
	Rand    rand.Source    // random stream for noise and masks
}

// NewEnv creates an environment with a fresh parameter store.
func NewEnv[B tensor.Backend](backend B, index *Index[B], rng rand.Source) *Env[B] {
	return &Env[B]{
		Backend: backend,
		Index:   index,
		Params:  NewParamStore(backend, rng),
		Rand:    rng,
	}
}

// Base holds the state every layer shares and implements Layer.
type Base[B tensor.Backend] struct {
	env        *Env[B]
	name       string
	class      string
	nOut       int
	sparse     bool
	sources    []Source[B]
	output     *tensor.Tensor[float32, B]
	index      *Index[B]
	attrs      map[string]any
	params     []*nn.Parameter[B]
	constraint *tensor.Tensor[float32, B]
}

// newBase initialises the shared state. The index is inherited from the first
// source, or is the graph index for layers without sources.
func newBase[B tensor.Backend](env *Env[B], class, name string, nOut int, sources []Source[B]) Base[B] {
	b := Base[B]{
		env:     env,
		name:    name,
		class:   class,
		nOut:    nOut,
		sources: sources,
		index:   env.Index,
		attrs:   map[string]any{"n_out": nOut},
	}
	if len(sources) > 0 {
		b.index = sources[0].Layer.Index()
		names := make([]string, len(sources))
		for i, s := range sources {
			names[i] = s.Layer.Name()
		}
		b.attrs["from"] = strings.Join(names, ",")
	}
	return b
}

// Name implements Layer.
func (b *Base[B]) Name() string { return b.name }

// Class implements Layer.
func (b *Base[B]) Class() string { return b.class }

// NOut implements Layer.
func (b *Base[B]) NOut() int { return b.nOut }

// Output implements Layer.
func (b *Base[B]) Output() *tensor.Tensor[float32, B] { return b.output }

// Index implements Layer.
func (b *Base[B]) Index() *Index[B] { return b.index }

// Sparse implements Layer.
func (b *Base[B]) Sparse() bool { return b.sparse }

// Attrs implements Layer.
func (b *Base[B]) Attrs() map[string]any { return b.attrs }

// Parameters implements Layer.
func (b *Base[B]) Parameters() []*nn.Parameter[B] { return b.params }

// Constraint implements Layer.
func (b *Base[B]) Constraint() *tensor.Tensor[float32, B] { return b.constraint }

// Sources returns the layer's sources.
func (b *Base[B]) Sources() []Source[B] { return b.sources }

func (b *Base[B]) param(name string, shape tensor.Shape, init Init) (*nn.Parameter[B], error) {
	p, err := b.env.Params.Get(b.name, name, shape, init)
	if err != nil {
		return nil, configError(b.class, b.name, ErrInvalidConfig, "%v", err)
	}
	for _, q := range b.params {
		if q == p {
			return p, nil
		}
	}
	b.params = append(b.params, p)
	return p, nil
}

// frozen returns a persisted parameter that the layer does not train.
func (b *Base[B]) frozen(name string, shape tensor.Shape, init Init) (*nn.Parameter[B], error) {
	p, err := b.env.Params.Frozen(b.name, name, shape, init)
	if err != nil {
		return nil, configError(b.class, b.name, ErrInvalidConfig, "%v", err)
	}
	return p, nil
}

func (b *Base[B]) setOutput(t *tensor.Tensor[float32, B]) {
	if len(t.Shape()) != 3 {
		panic(fmt.Sprintf("%s layer %q: output must be (time, batch, feature), got %v", b.class, b.name, t.Shape()))
	}
	b.output = t
}

func (b *Base[B]) addConstraint(c *tensor.Tensor[float32, B]) {
	if b.constraint == nil {
		b.constraint = c
		return
	}
	b.constraint = ops.Add(b.constraint, c)
}

func (b *Base[B]) fail(err error, format string, args ...any) error {
	return configError(b.class, b.name, err, format, args...)
}

func (b *Base[B]) backend() B { return b.env.Backend }

func (b *Base[B]) wrap(err error) error {
	return &ConfigError{Layer: b.name, Class: b.class, Err: err}
}
