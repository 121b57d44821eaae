// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package layers

import (
	"math/rand/v2"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/layer"
)

// Core types

// Layer is a built node of a sequence network.
type Layer[B tensor.Backend] = layer.Layer[B]

// Env carries what all layers of one graph share: backend, input index,
// parameter store and random stream.
type Env[B tensor.Backend] = layer.Env[B]

// Index marks the valid (time, batch) positions of a batch.
type Index[B tensor.Backend] = layer.Index[B]

// Source is a layer registered as input of another layer.
type Source[B tensor.Backend] = layer.Source[B]

// ParamStore holds parameters keyed by "<layer>.<param>".
type ParamStore[B tensor.Backend] = layer.ParamStore[B]

// ReferenceSet provides the (K, D) references of the centroid layers.
type ReferenceSet[B tensor.Backend] = layer.ReferenceSet[B]

// DualChannel is implemented by layers that expose two activation channels.
type DualChannel[B tensor.Backend] = layer.DualChannel[B]

// NewEnv creates an environment with a fresh parameter store.
func NewEnv[B tensor.Backend](backend B, index *Index[B], rng rand.Source) *Env[B] {
	return layer.NewEnv(backend, index, rng)
}

// IndexFromLengths builds the index of sequences with the given lengths,
// padded to steps.
func IndexFromLengths[B tensor.Backend](lengths []int, steps int, b B) (*Index[B], error) {
	return layer.IndexFromLengths(lengths, steps, b)
}

// OnesIndex returns an index with every position valid.
func OnesIndex[B tensor.Backend](steps, batch int, b B) *Index[B] {
	return layer.OnesIndex(steps, batch, b)
}

// Sources registers every layer as a source.
func Sources[B tensor.Backend](ls ...Layer[B]) []Source[B] {
	return layer.Sources(ls...)
}

// Inputs

// Data is the network input layer.
type Data[B tensor.Backend] = layer.Data[B]

// NewData wraps a dense (T, B, D) input, or sparse (T, B, W) class ids when
// sparse is set (nOut is then the number of classes).
func NewData[B tensor.Backend](env *Env[B], name string, x *tensor.Tensor[float32, B], sparse bool, nOut int) (*Data[B], error) {
	return layer.NewData(env, name, x, sparse, nOut)
}

// Array exposes a constant (R, C) array as a layer and a reference set.
type Array[B tensor.Backend] = layer.Array[B]

// NewArray wraps a 2-D array.
func NewArray[B tensor.Backend](env *Env[B], name string, array *tensor.Tensor[float32, B], dual bool) (*Array[B], error) {
	return layer.NewArray(env, name, array, dual)
}

// Projections

// HiddenConfig configures Forward and Embedding layers.
type HiddenConfig = layer.HiddenConfig

// Forward is activation(Σ masked source · W + b).
type Forward[B tensor.Backend] = layer.Forward[B]

// NewForward builds a forward (hidden) layer.
//
// Example:
//
//	h, err := layers.NewForward(env, "h", srcs, layers.HiddenConfig{NOut: 64, Activation: "tanh"})
func NewForward[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg HiddenConfig) (*Forward[B], error) {
	return layer.NewForward(env, name, sources, cfg)
}

// Embedding is a bias-free, activation-free projection.
type Embedding[B tensor.Backend] = layer.Embedding[B]

// NewEmbedding builds an embedding layer.
func NewEmbedding[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg HiddenConfig) (*Embedding[B], error) {
	return layer.NewEmbedding(env, name, sources, cfg)
}

// DualConfig configures DualState layers.
type DualConfig = layer.DualConfig

// DualState projects both channels of its sources into two channels.
type DualState[B tensor.Backend] = layer.DualState[B]

// NewDualState builds a dual-state layer.
func NewDualState[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg DualConfig) (*DualState[B], error) {
	return layer.NewDualState(env, name, sources, cfg)
}

// No-parameter layers

// Copy concatenates its sources and applies an activation.
type Copy[B tensor.Backend] = layer.Copy[B]

// NewCopy builds a copy layer.
func NewCopy[B tensor.Backend](env *Env[B], name string, sources []Source[B], activation string) (*Copy[B], error) {
	return layer.NewCopy(env, name, sources, activation)
}

// ConstantConfig configures Constant layers.
type ConstantConfig = layer.ConstantConfig

// Constant outputs a fixed (1, 1, N) value.
type Constant[B tensor.Backend] = layer.Constant[B]

// NewConstant builds a constant layer.
func NewConstant[B tensor.Backend](env *Env[B], name string, cfg ConstantConfig) (*Constant[B], error) {
	return layer.NewConstant(env, name, nil, cfg)
}

// BinaryOp combines two sources elementwise.
type BinaryOp[B tensor.Backend] = layer.BinaryOp[B]

// NewBinaryOp builds a binary operator layer. mode is one of "+", "-", "*",
// "/", "max", "min", optionally followed by ",<activation>".
func NewBinaryOp[B tensor.Backend](env *Env[B], name string, sources []Source[B], mode string) (*BinaryOp[B], error) {
	return layer.NewBinaryOp(env, name, sources, mode)
}

// StateToActConfig configures StateToAct layers.
type StateToActConfig = layer.StateToActConfig

// StateToAct turns the last time step of its sources into a state.
type StateToAct[B tensor.Backend] = layer.StateToAct[B]

// NewStateToAct builds a state-to-activation layer.
func NewStateToAct[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg StateToActConfig) (*StateToAct[B], error) {
	return layer.NewStateToAct(env, name, sources, cfg)
}

// ChunkingConfig configures Chunking layers.
type ChunkingConfig = layer.ChunkingConfig

// Chunking folds consecutive time steps into one.
type Chunking[B tensor.Backend] = layer.Chunking[B]

// NewChunking builds a chunking layer.
func NewChunking[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg ChunkingConfig) (*Chunking[B], error) {
	return layer.NewChunking(env, name, sources, cfg)
}

// CorruptionConfig configures Corruption layers.
type CorruptionConfig = layer.CorruptionConfig

// Corruption standardises its input and adds gaussian noise.
type Corruption[B tensor.Backend] = layer.Corruption[B]

// NewCorruption builds a corruption layer.
func NewCorruption[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg CorruptionConfig) (*Corruption[B], error) {
	return layer.NewCorruption(env, name, sources, cfg)
}

// Attention

// CentroidConfig configures Centroid, Centroid2 and Eye layers.
type CentroidConfig = layer.CentroidConfig

// Centroid attends softly over a reference set.
type Centroid[B tensor.Backend] = layer.Centroid[B]

// NewCentroid builds a centroid layer.
func NewCentroid[B tensor.Backend](env *Env[B], name string, sources []Source[B], refs ReferenceSet[B], cfg CentroidConfig) (*Centroid[B], error) {
	return layer.NewCentroid(env, name, sources, refs, cfg)
}

// Centroid2 selects the nearest reference.
type Centroid2[B tensor.Backend] = layer.Centroid2[B]

// NewCentroid2 builds a nearest-reference layer.
func NewCentroid2[B tensor.Backend](env *Env[B], name string, sources []Source[B], refs ReferenceSet[B], cfg CentroidConfig) (*Centroid2[B], error) {
	return layer.NewCentroid2(env, name, sources, refs, cfg)
}

// Eye attends over the unit vectors of an identity matrix.
type Eye[B tensor.Backend] = layer.Eye[B]

// NewEye builds an eye layer with the given number of clusters.
func NewEye[B tensor.Backend](env *Env[B], name string, sources []Source[B], clusters int, cfg CentroidConfig) (*Eye[B], error) {
	return layer.NewEye(env, name, sources, clusters, cfg)
}

// ProtoConfig configures Proto layers.
type ProtoConfig = layer.ProtoConfig

// Proto selects a prototype row by arg-max.
type Proto[B tensor.Backend] = layer.Proto[B]

// NewProto builds a prototype layer.
func NewProto[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg ProtoConfig) (*Proto[B], error) {
	return layer.NewProto(env, name, sources, cfg)
}

// InterpolationConfig configures BaseInterpolation layers.
type InterpolationConfig = layer.InterpolationConfig

// BaseInterpolation expresses every input step as a combination of base steps.
type BaseInterpolation[B tensor.Backend] = layer.BaseInterpolation[B]

// NewBaseInterpolation builds a base interpolation layer.
func NewBaseInterpolation[B tensor.Backend](env *Env[B], name string, sources []Source[B], bases []Layer[B], cfg InterpolationConfig) (*BaseInterpolation[B], error) {
	return layer.NewBaseInterpolation(env, name, sources, bases, cfg)
}

// Loss

// Target holds the reference values of a loss layer.
type Target = layer.Target

// ClassTarget returns a class-id target, one id per time-major position.
func ClassTarget(ids []int32) *Target { return layer.ClassTarget(ids) }

// OneHotTarget returns a one-hot target.
func OneHotTarget(rows []float32, width int) *Target { return layer.OneHotTarget(rows, width) }

// DenseTarget returns a float target.
func DenseTarget(rows []float32, width int) *Target { return layer.DenseTarget(rows, width) }

// LossConfig configures Loss layers.
type LossConfig = layer.LossConfig

// Loss kinds.
const (
	LossCE      = layer.LossCE
	LossEntropy = layer.LossEntropy
	LossPriori  = layer.LossPriori
	LossSSE     = layer.LossSSE
)

// Loss scores predictions against a target.
type Loss[B tensor.Backend] = layer.Loss[B]

// NewLoss builds a loss layer. copyInput and target may be nil.
func NewLoss[B tensor.Backend](env *Env[B], name string, sources []Source[B], copyInput Layer[B], target *Target, cfg LossConfig) (*Loss[B], error) {
	return layer.NewLoss(env, name, sources, copyInput, target, cfg)
}

// Errors

// ConfigError reports an invalid layer configuration.
type ConfigError = layer.ConfigError

// Sentinel errors.
var (
	ErrNoSources         = layer.ErrNoSources
	ErrSourceCount       = layer.ErrSourceCount
	ErrWidthMismatch     = layer.ErrWidthMismatch
	ErrNoDualChannel     = layer.ErrNoDualChannel
	ErrMissingReference  = layer.ErrMissingReference
	ErrNotImplemented    = layer.ErrNotImplemented
	ErrUnknownOperator   = layer.ErrUnknownOperator
	ErrUnknownActivation = layer.ErrUnknownActivation
	ErrInvalidConfig     = layer.ErrInvalidConfig
)
