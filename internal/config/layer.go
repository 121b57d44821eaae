package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/seqnet/internal/layer"
)

// Names is a list of layer names. In YAML it is a single name or a sequence.
type Names []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (n *Names) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*n = Names{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	}
	return fmt.Errorf("line %d: expected a layer name or a list of names", node.Line)
}

// Layer describes one layer. Options that do not apply to the class are ignored.
type Layer struct {
	Class      string  `yaml:"class"`
	From       Names   `yaml:"from"`
	NOut       int     `yaml:"n_out"`
	Activation string  `yaml:"activation"`
	Dropout    float64 `yaml:"dropout"`

	SparseWindow int `yaml:"sparse_window"`

	// constant
	Value any    `yaml:"value"`
	DType string `yaml:"dtype"`

	// bin_op
	Mode string `yaml:"mode"`

	// dual, state_to_act, array
	ActH   string `yaml:"acth"`
	ActS   string `yaml:"acts"`
	Dual   bool   `yaml:"dual"`
	Repeat bool   `yaml:"repeat"`

	// array: inline rows, or a tensor of a .safetensors/.gguf file
	Values [][]float32 `yaml:"values"`
	File   string      `yaml:"file"`
	Tensor string      `yaml:"tensor"`

	// centroid family
	Centroids     string   `yaml:"centroids"`
	OutputScores  bool     `yaml:"output_scores"`
	EntropyWeight *float32 `yaml:"entropy_weight"`
	NClusters     int      `yaml:"n_clusters"`
	TrainProto    *bool    `yaml:"train_proto"` // default true

	// base
	Base          Names  `yaml:"base"`
	Method        string `yaml:"method"`
	OutputWeights bool   `yaml:"output_weights"`

	// chunking
	ChunkSize int `yaml:"chunk_size"`

	// corruption
	Noise string  `yaml:"noise"`
	P     float64 `yaml:"p"`

	// loss
	Loss      string `yaml:"loss"`
	CopyInput string `yaml:"copy_input"`
}

// Deps returns every layer name this layer reads: sources, bases, centroids
// and the copy input.
func (l *Layer) Deps() []string {
	deps := make([]string, 0, len(l.From)+len(l.Base)+2)
	deps = append(deps, l.From...)
	deps = append(deps, l.Base...)
	if l.Centroids != "" {
		deps = append(deps, l.Centroids)
	}
	if l.CopyInput != "" {
		deps = append(deps, l.CopyInput)
	}
	return deps
}

// Hidden returns the options of hidden, forward and embedding layers.
func (l *Layer) Hidden() layer.HiddenConfig {
	return layer.HiddenConfig{NOut: l.NOut, Activation: l.Activation, SparseWindow: l.SparseWindow}
}

// Constant returns the options of constant layers.
func (l *Layer) Constant() layer.ConstantConfig {
	return layer.ConstantConfig{Value: l.Value, DType: l.DType}
}

// DualState returns the options of dual layers.
func (l *Layer) DualState() layer.DualConfig {
	return layer.DualConfig{NOut: l.NOut, ActH: l.ActH, ActS: l.ActS}
}

// StateToAct returns the options of state_to_act layers.
func (l *Layer) StateToAct() layer.StateToActConfig {
	return layer.StateToActConfig{Dual: l.Dual, Repeat: l.Repeat}
}

// Centroid returns the options of centroid, centroid2 and eye layers. An
// unset entropy weight takes the class default.
func (l *Layer) Centroid() layer.CentroidConfig {
	w := float32(layer.DefaultCentroidEntropyWeight)
	if l.Class == ClassEye {
		w = layer.DefaultEyeEntropyWeight
	}
	if l.EntropyWeight != nil {
		w = *l.EntropyWeight
	}
	return layer.CentroidConfig{Activation: l.Activation, OutputScores: l.OutputScores, EntropyWeight: w}
}

// Proto returns the options of proto layers. The prototypes are trained
// unless train_proto is false.
func (l *Layer) Proto() layer.ProtoConfig {
	train := true
	if l.TrainProto != nil {
		train = *l.TrainProto
	}
	return layer.ProtoConfig{NOut: l.NOut, Activation: l.Activation, TrainProto: train, OutputScores: l.OutputScores}
}

// Interpolation returns the options of base layers.
func (l *Layer) Interpolation() layer.InterpolationConfig {
	return layer.InterpolationConfig{Activation: l.Activation, Method: l.Method, OutputWeights: l.OutputWeights}
}

// Chunking returns the options of chunking layers.
func (l *Layer) Chunking() layer.ChunkingConfig {
	return layer.ChunkingConfig{ChunkSize: l.ChunkSize}
}

// Corruption returns the options of corruption layers.
func (l *Layer) Corruption() layer.CorruptionConfig {
	return layer.CorruptionConfig{Noise: l.Noise, P: l.P}
}

// LossOptions returns the options of loss layers.
func (l *Layer) LossOptions() layer.LossConfig {
	return layer.LossConfig{Kind: l.Loss, NOut: l.NOut}
}
