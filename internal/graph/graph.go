package graph

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/ops"
)

// Graph is a network built for one minibatch.
type Graph[B tensor.Backend] struct {
	Layers map[string]layer.Layer[B] // every layer, the input under "data"
	Order  []string                  // build order, dependencies first
	Output layer.Layer[B]
	Index  *layer.Index[B] // validity index of the input
}

// Layer returns the named layer.
func (g *Graph[B]) Layer(name string) (layer.Layer[B], bool) {
	l, ok := g.Layers[name]
	return l, ok
}

// Constraint returns the training objective: the sum of all layer
// constraints, or nil when no layer has one.
//
// The sum is always a fresh addition, so right after a build it is the last
// operation on the tape, where backpropagation starts.
func (g *Graph[B]) Constraint() *tensor.Tensor[float32, B] {
	var total *tensor.Tensor[float32, B]
	for _, name := range g.Order {
		c := g.Layers[name].Constraint()
		if c == nil {
			continue
		}
		if total == nil {
			total = ops.Scalar(0, c.Backend())
		}
		total = ops.Add(total, c)
	}
	return total
}

// Losses returns the loss layers in build order.
func (g *Graph[B]) Losses() []*layer.Loss[B] {
	var out []*layer.Loss[B]
	for _, name := range g.Order {
		if l, ok := g.Layers[name].(*layer.Loss[B]); ok {
			out = append(out, l)
		}
	}
	return out
}

// Errors returns the error metric of every loss layer that has a target.
func (g *Graph[B]) Errors() map[string]float64 {
	errs := make(map[string]float64)
	for _, l := range g.Losses() {
		if l.Target() != nil {
			errs[l.Name()] = l.Error()
		}
	}
	return errs
}
