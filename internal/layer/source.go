package layer

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/ops"
)

// SourceKind tells how a source's output is read.
type SourceKind int

const (
	// Dense sources carry float features.
	Dense SourceKind = iota
	// SparseCategorical sources carry integral class ids, one per window slot.
	SparseCategorical
)

// String returns the kind name.
func (k SourceKind) String() string {
	if k == SparseCategorical {
		return "sparse"
	}
	return "dense"
}

// Source is a layer registered as input of another layer.
//
// The kind is decided once, at registration, from the source layer's Sparse flag.
// Dense sources may carry a (time, batch) mask and a mass that rescales the
// masked output, as dropout does.
//
// Window limits how many window slots of a sparse source are read; zero reads
// all of them.
type Source[B tensor.Backend] struct {
	Layer  Layer[B]
	Kind   SourceKind
	Mask   *tensor.Tensor[float32, B]
	Mass   float32
	Window int
}

// NewSource registers l as a source.
func NewSource[B tensor.Backend](l Layer[B]) Source[B] {
	kind := Dense
	if l.Sparse() {
		kind = SparseCategorical
	}
	return Source[B]{Layer: l, Kind: kind, Mass: 1}
}

// Sources registers every layer as a source.
func Sources[B tensor.Backend](ls ...Layer[B]) []Source[B] {
	out := make([]Source[B], len(ls))
	for i, l := range ls {
		out[i] = NewSource(l)
	}
	return out
}

// WithMask returns a copy of s carrying mask and mass.
func (s Source[B]) WithMask(mask *tensor.Tensor[float32, B], mass float32) Source[B] {
	s.Mask = mask
	s.Mass = mass
	return s
}

// WithWindow returns a copy of s reading only the first n window slots.
func (s Source[B]) WithWindow(n int) Source[B] {
	s.Window = n
	return s
}

// Output returns the source output with the mask applied.
func (s Source[B]) Output() *tensor.Tensor[float32, B] {
	out := s.Layer.Output()
	if s.Mask == nil || s.Kind == SparseCategorical {
		return out
	}
	return ops.ApplyMask(out, s.Mask, s.Mass)
}
