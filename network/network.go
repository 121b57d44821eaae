// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"log/slog"
	"math/rand/v2"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/config"
	"github.com/born-ml/seqnet/internal/graph"
)

// Description is a parsed network description.
type Description = config.Network

// LayerDescription describes one layer of a Description.
type LayerDescription = config.Layer

// LoadConfig reads and validates the YAML description at path.
func LoadConfig(path string) (*Description, error) {
	return config.Load(path)
}

// ParseConfig decodes and validates a YAML description.
func ParseConfig(data []byte) (*Description, error) {
	return config.Parse(data)
}

// Network is a description with its parameters.
type Network[B tensor.Backend] = graph.Network[B]

// Option configures a Network.
type Option = graph.Option

// WithLogger reports layer construction to l at debug level.
func WithLogger(l *slog.Logger) Option { return graph.WithLogger(l) }

// WithRand sets the random stream for initialisation, noise and dropout.
func WithRand(src rand.Source) Option { return graph.WithRand(src) }

// New creates a network for desc.
//
// Example:
//
//	net := network.New(backend, desc, network.WithRand(rand.NewPCG(seed, seed)))
func New[B tensor.Backend](backend B, desc *Description, opts ...Option) *Network[B] {
	return graph.New(backend, desc, opts...)
}

// Batch is one minibatch: input, sequence lengths and loss targets.
type Batch[B tensor.Backend] = graph.Batch[B]

// Graph is a network built for one minibatch.
type Graph[B tensor.Backend] = graph.Graph[B]

// Trainer minimises a network's constraint with Adam.
type Trainer[B autodiff.BackwardCapable] = graph.Trainer[B]

// TrainConfig configures the optimizer of a Trainer.
type TrainConfig = graph.TrainConfig

// StepResult reports one training step.
type StepResult = graph.StepResult

// DefaultTrainConfig returns the Adam defaults.
func DefaultTrainConfig() TrainConfig { return graph.DefaultTrainConfig() }

// NewTrainer creates a trainer. logger may be nil.
func NewTrainer[B autodiff.BackwardCapable](net *Network[B], backend B, cfg TrainConfig, logger *slog.Logger) *Trainer[B] {
	return graph.NewTrainer(net, backend, cfg, logger)
}

// ErrNoObjective is returned when a training graph has no constraint.
var ErrNoObjective = graph.ErrNoObjective
