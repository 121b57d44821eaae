// Package activation resolves activation names to tensor functions.
//
// Names form a closed registry. A comma-separated list composes the named
// functions left to right, so "relu,softmax" applies relu first.
package activation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/ops"
)

// ErrUnknown is returned for names outside the registry.
var ErrUnknown = errors.New("unknown activation")

// Func maps a tensor to a tensor of the same shape.
type Func[B tensor.Backend] func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

// Names lists the registered activation names.
var Names = []string{"identity", "linear", "sigmoid", "tanh", "relu", "softmax", "exp", "softplus"}

// Resolve returns the function registered under name.
//
// The empty name, "identity" and "linear" resolve to the identity.
func Resolve[B tensor.Backend](name string) (Func[B], error) {
	parts := strings.Split(name, ",")
	fns := make([]Func[B], 0, len(parts))
	for _, p := range parts {
		fn, err := lookup[B](strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	switch len(fns) {
	case 0:
		return Identity[B], nil
	case 1:
		return fns[0], nil
	}
	return func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		for _, fn := range fns {
			x = fn(x)
		}
		return x
	}, nil
}

// Identity returns x unchanged.
func Identity[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x
}

// lookup returns nil for identity names.
func lookup[B tensor.Backend](name string) (Func[B], error) {
	switch strings.ToLower(name) {
	case "", "identity", "linear":
		return nil, nil
	case "sigmoid":
		return ops.Sigmoid[B], nil
	case "tanh":
		return ops.Tanh[B], nil
	case "relu":
		return ops.ReLU[B], nil
	case "softmax":
		return func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
			return ops.Softmax(x, -1)
		}, nil
	case "exp":
		return func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
			return x.Exp()
		}, nil
	case "softplus":
		return ops.Softplus[B], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
}
