// Package main provides the seqnet CLI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/born/tokenizer"

	"github.com/born-ml/seqnet/internal/config"
	"github.com/born-ml/seqnet/internal/graph"
	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/textbatch"
)

const version = "v0.1.0-dev"

type options struct {
	config    string
	text      string
	tokenizer string
	backend   string
	steps     int
	batch     int
	seqLen    int
	lr        float64
	seed      uint64
	save      string
	load      string
	verbose   bool
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("seqnet %s\n", version)
		return
	}

	var o options
	flag.StringVar(&o.config, "config", "", "YAML network description (required)")
	flag.StringVar(&o.text, "text", "", "training text file (required)")
	flag.StringVar(&o.tokenizer, "tokenizer", "cl100k_base", `tiktoken encoding or model name, HuggingFace model directory, or "example" for the built-in toy vocabulary`)
	flag.StringVar(&o.backend, "backend", "cpu", "compute backend: cpu or webgpu")
	flag.IntVar(&o.steps, "steps", 100, "training steps")
	flag.IntVar(&o.batch, "batch", 8, "sequences per minibatch")
	flag.IntVar(&o.seqLen, "seq", 32, "tokens per sequence")
	flag.Float64Var(&o.lr, "lr", 0.001, "Adam learning rate")
	flag.Uint64Var(&o.seed, "seed", 1, "random seed")
	flag.StringVar(&o.save, "save", "", "write parameters to this .safetensors file after training")
	flag.StringVar(&o.load, "load", "", "read parameters from this .safetensors file before training")
	flag.BoolVar(&o.verbose, "v", false, "log layer construction")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(o, logger); err != nil {
		logger.Error("seqnet failed", "err", err)
		os.Exit(1)
	}
}

func run(o options, logger *slog.Logger) error {
	if o.config == "" || o.text == "" {
		flag.Usage()
		return errors.New("-config and -text are required")
	}
	switch o.backend {
	case "cpu":
		return train(autodiff.New(cpu.New()), o, logger)
	case "webgpu":
		return trainGPU(o, logger)
	}
	return fmt.Errorf("unknown backend %q", o.backend)
}

func loadTokenizer(name string) (tokenizer.Tokenizer, error) {
	if name == "example" {
		return tokenizer.ExampleBPE(), nil
	}
	return tokenizer.AutoLoad(name)
}

func train[B tensor.Backend](backend *autodiff.Backend[B], o options, logger *slog.Logger) error {
	desc, err := config.Load(o.config)
	if err != nil {
		return err
	}
	tok, err := loadTokenizer(o.tokenizer)
	if err != nil {
		return fmt.Errorf("tokenizer %q: %w", o.tokenizer, err)
	}
	if desc.Input.Sparse && desc.Input.NOut == 0 {
		desc.Input.NOut = tok.VocabSize()
	}

	text, err := os.ReadFile(o.text)
	if err != nil {
		return fmt.Errorf("read text: %w", err)
	}
	seqs, err := textbatch.EncodeAll(tok, []string{string(text)})
	if err != nil {
		return err
	}
	windows := textbatch.Windows(seqs[0], o.seqLen)
	if len(windows) == 0 {
		return fmt.Errorf("%s: %w", o.text, textbatch.ErrTooShort)
	}
	logger.Info("corpus", "tokens", len(seqs[0]), "sequences", len(windows), "vocab", tok.VocabSize())

	rng := rand.NewPCG(o.seed, o.seed)
	net := graph.New(backend, desc, graph.WithRand(rng), graph.WithLogger(logger))
	if o.load != "" {
		if err := net.Load(o.load); err != nil {
			return fmt.Errorf("load parameters: %w", err)
		}
		logger.Info("parameters loaded", "path", o.load)
	}
	trainer := graph.NewTrainer(net, backend, graph.TrainConfig{LR: float32(o.lr)}, logger)

	losses := desc.Losses()
	for step := range o.steps {
		start := (step * o.batch) % len(windows)
		end := min(start+o.batch, len(windows))
		bt, err := textbatch.New(windows[start:end], tok.PadToken())
		if err != nil {
			return err
		}
		x, err := textbatch.Input(bt, backend)
		if err != nil {
			return err
		}
		targets := make(map[string]*layer.Target, len(losses))
		for _, name := range losses {
			targets[name] = bt.Target()
		}

		res, err := trainer.Step(&graph.Batch[*autodiff.Backend[B]]{Data: x, Lengths: bt.Lengths, Targets: targets})
		if err != nil {
			return fmt.Errorf("step %d: %w", step+1, err)
		}
		args := []any{"step", step + 1, "objective", res.Objective, "per_token", res.Objective / float64(bt.Tokens())}
		for name, e := range res.Errors {
			args = append(args, name+"_err", e/float64(bt.Tokens()))
		}
		logger.Info("train", args...)
	}

	if o.save != "" {
		meta := map[string]string{"config": o.config, "tokenizer": o.tokenizer}
		if err := net.Save(o.save, meta); err != nil {
			return fmt.Errorf("save parameters: %w", err)
		}
		logger.Info("parameters saved", "path", o.save, "tensors", len(net.StateDict()))
	}
	return nil
}
