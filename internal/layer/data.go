package layer

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Data is the network input layer. It owns the graph validity index.
type Data[B tensor.Backend] struct {
	Base[B]
}

// NewData wraps the input batch.
//
// A dense input is (T, B, D) features and its width is D. A sparse input is
// (T, B, W) class ids and nOut is the number of classes.
func NewData[B tensor.Backend](env *Env[B], name string, x *tensor.Tensor[float32, B], sparse bool, nOut int) (*Data[B], error) {
	sh := x.Shape()
	if len(sh) != 3 {
		return nil, configError("data", name, ErrInvalidConfig, "input must be (time, batch, feature), got %v", sh)
	}
	if env.Index != nil && (env.Index.Steps() != sh[0] || env.Index.Batch() != sh[1]) {
		return nil, configError("data", name, ErrWidthMismatch,
			"input %v does not match index (%d, %d)", sh, env.Index.Steps(), env.Index.Batch())
	}
	if !sparse {
		if nOut != 0 && nOut != sh[2] {
			return nil, configError("data", name, ErrWidthMismatch, "n_out %d, input width %d", nOut, sh[2])
		}
		nOut = sh[2]
	} else if nOut < 1 {
		return nil, configError("data", name, ErrInvalidConfig, "sparse input needs the number of classes")
	}

	if env.Index == nil {
		env.Index = OnesIndex(sh[0], sh[1], env.Backend)
	}
	l := &Data[B]{Base: newBase(env, "data", name, nOut, nil)}
	l.sparse = sparse
	l.attrs["sparse"] = sparse
	l.setOutput(x)
	return l, nil
}

// Array is a constant 2-D array exposed as a layer and as a reference set.
//
// An (R, C) array becomes the output (R, C, 1) with an all-valid index.
type Array[B tensor.Backend] struct {
	Base[B]
	array *tensor.Tensor[float32, B]
	dual  bool
}

// NewArray wraps a 2-D array. dual marks the array as a reference set whose
// consumers expose two channels.
func NewArray[B tensor.Backend](env *Env[B], name string, array *tensor.Tensor[float32, B], dual bool) (*Array[B], error) {
	sh := array.Shape()
	if len(sh) != 2 {
		return nil, configError("array", name, ErrNotImplemented, "array must be 2-D, got %v", sh)
	}
	l := &Array[B]{Base: newBase(env, "array", name, sh[1], nil), array: array, dual: dual}
	l.index = OnesIndex(sh[0], sh[1], env.Backend)
	l.attrs["dual"] = dual
	l.setOutput(array.Reshape(sh[0], sh[1], 1))
	return l, nil
}

// Centroids implements ReferenceSet.
func (l *Array[B]) Centroids() *tensor.Tensor[float32, B] { return l.array }

// IsDual implements ReferenceSet.
func (l *Array[B]) IsDual() bool { return l.dual }

// References is a reference set backed by a fixed (K, D) tensor.
type References[B tensor.Backend] struct {
	centroids *tensor.Tensor[float32, B]
	dual      bool
}

// NewReferences wraps a (K, D) tensor.
func NewReferences[B tensor.Backend](centroids *tensor.Tensor[float32, B], dual bool) (*References[B], error) {
	if len(centroids.Shape()) != 2 {
		return nil, fmt.Errorf("%w: references must be (K, D), got %v", ErrInvalidConfig, centroids.Shape())
	}
	return &References[B]{centroids: centroids, dual: dual}, nil
}

// Centroids implements ReferenceSet.
func (r *References[B]) Centroids() *tensor.Tensor[float32, B] { return r.centroids }

// IsDual implements ReferenceSet.
func (r *References[B]) IsDual() bool { return r.dual }
