package graph

import (
	"errors"
	"log/slog"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/optim"
)

// ErrNoObjective is returned when a training graph has no constraint.
var ErrNoObjective = errors.New("graph: network has no training objective")

// TrainConfig configures the optimizer of a Trainer. Zero values take Born's
// Adam defaults.
type TrainConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

// DefaultTrainConfig returns the Adam defaults.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{LR: 1e-3, Betas: [2]float32{0.9, 0.999}, Eps: 1e-8}
}

// StepResult reports one training step.
type StepResult struct {
	Objective float64            // value of the total constraint
	Errors    map[string]float64 // error metric per loss layer
}

// Trainer minimises a network's constraint with Adam.
//
// The optimizer is created on the first step, once the graph has created the
// parameters.
type Trainer[B autodiff.BackwardCapable] struct {
	net     *Network[B]
	backend B
	cfg     TrainConfig
	opt     *optim.Adam[B]
	logger  *slog.Logger
	steps   int
}

// NewTrainer creates a trainer. logger may be nil.
func NewTrainer[B autodiff.BackwardCapable](net *Network[B], backend B, cfg TrainConfig, logger *slog.Logger) *Trainer[B] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Trainer[B]{net: net, backend: backend, cfg: cfg, logger: logger}
}

// Step builds the training graph of batch, back-propagates its constraint and
// updates the parameters.
func (t *Trainer[B]) Step(batch *Batch[B]) (StepResult, error) {
	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	g, err := t.net.Build(batch)
	if err != nil {
		return StepResult{}, err
	}
	obj := g.Constraint()
	if obj == nil {
		return StepResult{}, ErrNoObjective
	}

	if t.opt == nil {
		t.opt = optim.NewAdam(t.net.Parameters(), optim.AdamConfig{
			LR:    t.cfg.LR,
			Betas: t.cfg.Betas,
			Eps:   t.cfg.Eps,
		}, t.backend)
	}
	t.opt.ZeroGrad()
	grads := autodiff.Backward(obj, t.backend)
	t.opt.Step(grads)
	t.steps++

	res := StepResult{Objective: float64(obj.Item()), Errors: g.Errors()}
	t.logger.Debug("train step", "step", t.steps, "objective", res.Objective, "errors", res.Errors)
	return res, nil
}

// Steps returns the number of completed steps.
func (t *Trainer[B]) Steps() int { return t.steps }
