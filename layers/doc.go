// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package layers provides the layers of seqnet sequence networks.
//
// # Overview
//
// Every layer reads rank-3 (time, batch, feature) tensors and produces one.
// Batches hold sequences of different lengths padded to a common time extent;
// an Index marks the valid positions and layers never let padding leak into
// their constraints.
//
// This package contains:
//   - Projections: Forward (hidden), Embedding, DualState
//   - No-parameter layers: Copy, Constant, BinaryOp, StateToAct, Chunking, Corruption
//   - Attention over reference sets: Centroid, Centroid2, Eye, Proto, BaseInterpolation
//   - Inputs: Data, Array
//   - Loss: cross-entropy, entropy, priori and squared error against a Target
//
// # Building layers
//
// Layers are built eagerly through a Born backend. With an autodiff backend
// the construction is recorded on the tape, so the built layers are both the
// forward pass and the record for backpropagation:
//
//	backend := autodiff.New(cpu.New())
//	index, _ := layers.IndexFromLengths([]int{3, 2}, 3, backend)
//	env := layers.NewEnv(backend, index, rand.NewPCG(1, 2))
//
//	data, _ := layers.NewData(env, "data", x, false, 0)
//	h, _ := layers.NewForward(env, "h", layers.Sources(layers.Layer[B](data)),
//	    layers.HiddenConfig{NOut: 64, Activation: "tanh"})
//
// Parameters live in the environment's ParamStore, keyed "<layer>.<param>",
// so rebuilding a layer of the same name for the next minibatch reuses them.
//
// Most networks are described in YAML and built with package network instead.
package layers
