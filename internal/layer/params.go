package layer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"gonum.org/v1/gonum/stat/distuv"
)

// Init selects how a new parameter is filled.
type Init int

const (
	// InitXavier draws from U(-a, a) with a = sqrt(6 / (fan_in + fan_out)).
	InitXavier Init = iota
	// InitZeros fills with zeros.
	InitZeros
	// InitUniform draws from the same range as InitXavier, always from the store's stream.
	InitUniform
)

// ParamStore creates parameters on first request and hands out the same
// parameter on every later request, so a network can be rebuilt for every
// minibatch while its weights persist.
//
// Keys are "<layer>.<param>".
//
// Frozen parameters are persisted with the rest but are not handed to the
// optimizer.
type ParamStore[B tensor.Backend] struct {
	backend B
	rng     rand.Source
	params  map[string]*nn.Parameter[B]
	frozen  map[string]bool
	order   []string
	pending map[string]*tensor.RawTensor
}

// NewParamStore creates an empty store. With a nil source, initial values come
// from Born's nn.Xavier.
func NewParamStore[B tensor.Backend](backend B, rng rand.Source) *ParamStore[B] {
	return &ParamStore[B]{
		backend: backend,
		rng:     rng,
		params:  make(map[string]*nn.Parameter[B]),
		frozen:  make(map[string]bool),
		pending: make(map[string]*tensor.RawTensor),
	}
}

// Key returns the store key of a layer parameter.
func Key(layer, param string) string {
	return layer + "." + param
}

// Get returns the trainable parameter of a layer, creating it when absent.
func (s *ParamStore[B]) Get(layer, name string, shape tensor.Shape, init Init) (*nn.Parameter[B], error) {
	return s.get(layer, name, shape, init, false)
}

// Frozen returns a parameter that is persisted but not trained.
func (s *ParamStore[B]) Frozen(layer, name string, shape tensor.Shape, init Init) (*nn.Parameter[B], error) {
	return s.get(layer, name, shape, init, true)
}

func (s *ParamStore[B]) get(layer, name string, shape tensor.Shape, init Init, frozen bool) (*nn.Parameter[B], error) {
	key := Key(layer, name)
	if p, ok := s.params[key]; ok {
		if !p.Tensor().Shape().Equal(shape) {
			return nil, fmt.Errorf("%w: parameter %s has shape %v, requested %v",
				ErrWidthMismatch, key, p.Tensor().Shape(), shape)
		}
		return p, nil
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: parameter %s: %v", ErrInvalidConfig, key, err)
	}
	value, err := s.restore(key, shape)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = s.initial(shape, init)
	}
	p := nn.NewParameter(key, value)
	s.params[key] = p
	s.frozen[key] = frozen
	s.order = append(s.order, key)
	return p, nil
}

// restore takes the value loaded for key before the parameter existed.
func (s *ParamStore[B]) restore(key string, shape tensor.Shape) (*tensor.Tensor[float32, B], error) {
	raw, ok := s.pending[key]
	if !ok {
		return nil, nil
	}
	if !raw.Shape().Equal(shape) {
		return nil, fmt.Errorf("%w: loaded parameter %s has shape %v, requested %v",
			ErrWidthMismatch, key, raw.Shape(), shape)
	}
	delete(s.pending, key)
	return tensor.FromSlice(append([]float32(nil), raw.AsFloat32()...), shape.Clone(), s.backend)
}

// Lookup returns a stored parameter without creating it.
func (s *ParamStore[B]) Lookup(layer, name string) (*nn.Parameter[B], bool) {
	p, ok := s.params[Key(layer, name)]
	return p, ok
}

// Len returns the number of stored parameters.
func (s *ParamStore[B]) Len() int {
	return len(s.order)
}

// Parameters returns the trainable parameters in creation order.
func (s *ParamStore[B]) Parameters() []*nn.Parameter[B] {
	out := make([]*nn.Parameter[B], 0, len(s.order))
	for _, k := range s.order {
		if !s.frozen[k] {
			out = append(out, s.params[k])
		}
	}
	return out
}

// StateDict returns the raw tensors of all parameters, frozen ones included,
// plus loaded values not yet claimed by a layer.
func (s *ParamStore[B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(s.params)+len(s.pending))
	for k, raw := range s.pending {
		out[k] = raw
	}
	for k, p := range s.params {
		out[k] = p.Tensor().Raw()
	}
	return out
}

// LoadStateDict copies values into existing parameters. Values for parameters
// that do not exist yet are kept until a layer requests them, so a store can
// be restored before the first build.
func (s *ParamStore[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		raw := state[k]
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("parameter %s: dtype mismatch: expected float32, got %v", k, raw.DType())
		}
		if p, ok := s.params[k]; ok {
			if !p.Tensor().Shape().Equal(raw.Shape()) {
				return fmt.Errorf("parameter %s: shape mismatch: expected %v, got %v",
					k, p.Tensor().Shape(), raw.Shape())
			}
			copy(p.Tensor().Data(), raw.AsFloat32())
			continue
		}
		s.pending[k] = raw
	}
	return nil
}

func (s *ParamStore[B]) initial(shape tensor.Shape, init Init) *tensor.Tensor[float32, B] {
	switch init {
	case InitZeros:
		return tensor.Zeros[float32](shape, s.backend)
	}
	fanIn, fanOut := fans(shape)
	if init == InitXavier && s.rng == nil {
		return nn.Xavier(fanIn, fanOut, shape, s.backend)
	}
	return s.uniform(shape, math.Sqrt(6/float64(fanIn+fanOut)))
}

func (s *ParamStore[B]) uniform(shape tensor.Shape, bound float64) *tensor.Tensor[float32, B] {
	if s.rng == nil {
		return tensor.Rand[float32](shape, s.backend).MulScalar(float32(2 * bound)).AddScalar(float32(-bound))
	}
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: s.rng}
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(dist.Rand())
	}
	t, err := tensor.FromSlice(data, shape, s.backend)
	if err != nil {
		panic(fmt.Sprintf("param init: %v", err))
	}
	return t
}

func fans(shape tensor.Shape) (int, int) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return shape[0], shape[0]
	}
	return shape[0], shape[1]
}
