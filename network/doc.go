// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package network builds and trains seqnet networks described in YAML.
//
// # Description format
//
//	output: out
//	input: {sparse: true, n_out: 256}
//	layers:
//	  emb: {class: embedding, from: data, n_out: 32}
//	  h:   {class: hidden, from: emb, n_out: 64, activation: tanh, dropout: 0.1}
//	  out: {class: loss, from: h, loss: ce, n_out: 256}
//
// Layer classes: hidden (forward), embedding, copy, constant, bin_op, dual,
// state_to_act, array, centroid, centroid2, eye, proto, base, chunking,
// corruption, loss. The source name "data" refers to the input.
//
// # Training
//
//	backend := autodiff.New(cpu.New())
//	desc, _ := network.LoadConfig("net.yaml")
//	net := network.New(backend, desc)
//	trainer := network.NewTrainer(net, backend, network.DefaultTrainConfig(), nil)
//
//	res, err := trainer.Step(&network.Batch[B]{Data: x, Lengths: lengths, Targets: targets})
//
// A Network implements nn.Module. Its Save and Load methods persist the
// parameters as .safetensors files.
package network
