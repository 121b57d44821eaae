// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package network_test

import (
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/layers"
	"github.com/born-ml/seqnet/network"
)

type Backend = *autodiff.Backend[*cpu.Backend]

func TestTrainThroughPublicAPI(t *testing.T) {
	desc, err := network.ParseConfig([]byte(`
output: out
input: {n_out: 2}
layers:
  h: {class: forward, from: data, n_out: 3, activation: sigmoid}
  out: {class: loss, from: h, loss: sse, n_out: 2}
`))
	require.NoError(t, err)

	backend := autodiff.New(cpu.New())
	net := network.New(backend, desc)
	trainer := network.NewTrainer(net, backend, network.TrainConfig{LR: 0.05}, nil)

	x, err := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{2, 1, 2}, backend)
	require.NoError(t, err)
	batch := &network.Batch[Backend]{
		Data:    x,
		Targets: map[string]*layers.Target{"out": layers.DenseTarget([]float32{1, 0, 0, 1}, 2)},
	}

	first, err := trainer.Step(batch)
	require.NoError(t, err)
	var last network.StepResult
	for range 30 {
		last, err = trainer.Step(batch)
		require.NoError(t, err)
	}
	assert.Less(t, last.Objective, first.Objective)
	assert.Len(t, net.Parameters(), 4)
}
