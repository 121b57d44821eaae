// Package graph builds sequence networks from their description.
//
// A Network pairs a description with a parameter store. Every call to Build
// constructs the layers for one minibatch, in dependency order, drawing their
// parameters from the store, so weights persist across minibatches while
// shapes follow the batch.
package graph

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/born-ml/born/tensor"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/seqnet/internal/config"
	"github.com/born-ml/seqnet/internal/datafile"
	"github.com/born-ml/seqnet/internal/layer"
)

// Batch is one minibatch.
type Batch[B tensor.Backend] struct {
	// Data is the (T, B, D) input, or (T, B, W) class ids for a sparse input.
	Data *tensor.Tensor[float32, B]

	// Lengths holds the valid steps of every sequence. Nil marks every step valid.
	Lengths []int

	// Targets maps loss layer names to their targets. A loss layer without a
	// target only computes its output.
	Targets map[string]*layer.Target
}

// Builder constructs the layers of a description.
type Builder[B tensor.Backend] struct {
	net     *config.Network
	backend B
	params  *layer.ParamStore[B]
	rng     rand.Source
	logger  *slog.Logger
	arrays  map[string]*tensor.Tensor[float32, B]
}

// NewBuilder creates a builder. rng drives initialisation, noise and dropout.
func NewBuilder[B tensor.Backend](net *config.Network, backend B, params *layer.ParamStore[B], rng rand.Source, logger *slog.Logger) *Builder[B] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder[B]{
		net:     net,
		backend: backend,
		params:  params,
		rng:     rng,
		logger:  logger,
		arrays:  make(map[string]*tensor.Tensor[float32, B]),
	}
}

// Build constructs every layer for batch. With train set, sources of layers
// with dropout are masked.
func (b *Builder[B]) Build(batch *Batch[B], train bool) (*Graph[B], error) {
	if batch == nil || batch.Data == nil {
		return nil, fmt.Errorf("%w: batch has no data", layer.ErrInvalidConfig)
	}
	sh := batch.Data.Shape()
	if len(sh) != 3 {
		return nil, fmt.Errorf("%w: batch data must be (time, batch, feature), got %v", layer.ErrInvalidConfig, sh)
	}

	var index *layer.Index[B]
	if batch.Lengths == nil {
		index = layer.OnesIndex(sh[0], sh[1], b.backend)
	} else {
		var err error
		if index, err = layer.IndexFromLengths(batch.Lengths, sh[0], b.backend); err != nil {
			return nil, fmt.Errorf("%w: %w", layer.ErrInvalidConfig, err)
		}
		if index.Batch() != sh[1] {
			return nil, fmt.Errorf("%w: %d lengths for a batch of %d", layer.ErrInvalidConfig, index.Batch(), sh[1])
		}
	}

	env := &layer.Env[B]{Backend: b.backend, Index: index, Params: b.params, Rand: b.rng}
	data, err := layer.NewData(env, config.DataName, batch.Data, b.net.Input.Sparse, b.net.Input.NOut)
	if err != nil {
		return nil, fmt.Errorf("build %q: %w", config.DataName, err)
	}

	order, err := b.net.Order()
	if err != nil {
		return nil, err
	}
	g := &Graph[B]{
		Layers: map[string]layer.Layer[B]{config.DataName: data},
		Order:  order,
		Index:  index,
	}
	for _, name := range order {
		l, err := b.build(env, g, name, b.net.Layers[name], batch, train)
		if err != nil {
			return nil, fmt.Errorf("build %q: %w", name, err)
		}
		g.Layers[name] = l
		b.logger.Debug("layer built",
			"name", name, "class", l.Class(), "n_out", l.NOut(), "shape", l.Output().Shape())
	}
	g.Output = g.Layers[b.net.Output]
	return g, nil
}

func (b *Builder[B]) build(env *layer.Env[B], g *Graph[B], name string, desc *config.Layer, batch *Batch[B], train bool) (layer.Layer[B], error) {
	srcs := make([]layer.Source[B], len(desc.From))
	for i, from := range desc.From {
		s := layer.NewSource(g.Layers[from])
		if train && desc.Dropout > 0 {
			s = s.WithMask(b.dropoutMask(s.Layer.Index(), desc.Dropout), float32(1/(1-desc.Dropout)))
		}
		srcs[i] = s
	}

	switch desc.Class {
	case config.ClassHidden, config.ClassForward:
		return built[B](layer.NewForward(env, name, srcs, desc.Hidden()))
	case config.ClassEmbedding:
		return built[B](layer.NewEmbedding(env, name, srcs, desc.Hidden()))
	case config.ClassCopy:
		return built[B](layer.NewCopy(env, name, srcs, desc.Activation))
	case config.ClassConstant:
		return built[B](layer.NewConstant(env, name, srcs, desc.Constant()))
	case config.ClassBinOp:
		return built[B](layer.NewBinaryOp(env, name, srcs, desc.Mode))
	case config.ClassDual:
		return built[B](layer.NewDualState(env, name, srcs, desc.DualState()))
	case config.ClassStateToAct:
		return built[B](layer.NewStateToAct(env, name, srcs, desc.StateToAct()))
	case config.ClassArray:
		arr, err := b.array(name, desc)
		if err != nil {
			return nil, err
		}
		return built[B](layer.NewArray(env, name, arr, desc.Dual))
	case config.ClassCentroid:
		refs, err := references(g, desc.Centroids)
		if err != nil {
			return nil, err
		}
		return built[B](layer.NewCentroid(env, name, srcs, refs, desc.Centroid()))
	case config.ClassCentroid2:
		refs, err := references(g, desc.Centroids)
		if err != nil {
			return nil, err
		}
		return built[B](layer.NewCentroid2(env, name, srcs, refs, desc.Centroid()))
	case config.ClassEye:
		return built[B](layer.NewEye(env, name, srcs, desc.NClusters, desc.Centroid()))
	case config.ClassProto:
		return built[B](layer.NewProto(env, name, srcs, desc.Proto()))
	case config.ClassBase:
		bases := make([]layer.Layer[B], len(desc.Base))
		for i, n := range desc.Base {
			bases[i] = g.Layers[n]
		}
		return built[B](layer.NewBaseInterpolation(env, name, srcs, bases, desc.Interpolation()))
	case config.ClassChunking:
		return built[B](layer.NewChunking(env, name, srcs, desc.Chunking()))
	case config.ClassCorruption:
		return built[B](layer.NewCorruption(env, name, srcs, desc.Corruption()))
	case config.ClassLoss:
		var copyInput layer.Layer[B]
		if desc.CopyInput != "" {
			copyInput = g.Layers[desc.CopyInput]
		}
		return built[B](layer.NewLoss(env, name, srcs, copyInput, batch.Targets[name], desc.LossOptions()))
	}
	return nil, fmt.Errorf("%w: unknown class %q", layer.ErrInvalidConfig, desc.Class)
}

// built drops the concrete layer type, keeping a nil interface on error.
func built[B tensor.Backend, L layer.Layer[B]](l L, err error) (layer.Layer[B], error) {
	if err != nil {
		return nil, err
	}
	return l, nil
}

func references[B tensor.Backend](g *Graph[B], name string) (layer.ReferenceSet[B], error) {
	if name == "" {
		return nil, nil
	}
	refs, ok := g.Layers[name].(layer.ReferenceSet[B])
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a reference set", layer.ErrMissingReference, name)
	}
	return refs, nil
}

// array returns the values of an array layer: inline rows, or a tensor read
// once from its file.
func (b *Builder[B]) array(name string, desc *config.Layer) (*tensor.Tensor[float32, B], error) {
	if arr, ok := b.arrays[name]; ok {
		return arr, nil
	}
	var arr *tensor.Tensor[float32, B]
	switch {
	case desc.File != "":
		key := desc.Tensor
		if key == "" {
			key = name
		}
		a, err := datafile.ReadArray(desc.File, key, b.backend)
		if err != nil {
			return nil, err
		}
		arr = a
	case len(desc.Values) > 0:
		cols := len(desc.Values[0])
		flat := make([]float32, 0, len(desc.Values)*cols)
		for i, row := range desc.Values {
			if len(row) != cols {
				return nil, fmt.Errorf("%w: row %d has %d values, expected %d", layer.ErrWidthMismatch, i, len(row), cols)
			}
			flat = append(flat, row...)
		}
		a, err := tensor.FromSlice(flat, tensor.Shape{len(desc.Values), cols}, b.backend)
		if err != nil {
			return nil, err
		}
		arr = a
	default:
		return nil, fmt.Errorf("%w: array needs values or a file", layer.ErrInvalidConfig)
	}
	b.arrays[name] = arr
	return arr, nil
}

// dropoutMask draws a (T, B) keep mask with keep probability 1-p.
func (b *Builder[B]) dropoutMask(index *layer.Index[B], p float64) *tensor.Tensor[float32, B] {
	keep := distuv.Bernoulli{P: 1 - p, Src: b.rng}
	data := make([]float32, index.Steps()*index.Batch())
	for i := range data {
		data[i] = float32(keep.Rand())
	}
	mask, err := tensor.FromSlice(data, tensor.Shape{index.Steps(), index.Batch()}, b.backend)
	if err != nil {
		panic(fmt.Sprintf("dropout mask: %v", err))
	}
	return mask
}
