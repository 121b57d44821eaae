// Package config reads YAML network descriptions.
//
// A description names its output layer, describes the input and lists the
// layers by name:
//
//	output: out
//	input: {sparse: true, n_out: 50257}
//	layers:
//	  emb: {class: embedding, from: data, n_out: 32}
//	  h:   {class: hidden, from: emb, n_out: 64, activation: tanh, dropout: 0.1}
//	  out: {class: loss, from: h, loss: ce, n_out: 50257}
//
// The source name "data" refers to the input.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/seqnet/internal/layer"
)

// DataName is the source name of the network input.
const DataName = "data"

// Layer classes.
const (
	ClassHidden     = "hidden"
	ClassForward    = "forward"
	ClassEmbedding  = "embedding"
	ClassCopy       = "copy"
	ClassConstant   = "constant"
	ClassBinOp      = "bin_op"
	ClassDual       = "dual"
	ClassStateToAct = "state_to_act"
	ClassArray      = "array"
	ClassCentroid   = "centroid"
	ClassCentroid2  = "centroid2"
	ClassEye        = "eye"
	ClassProto      = "proto"
	ClassBase       = "base"
	ClassChunking   = "chunking"
	ClassCorruption = "corruption"
	ClassLoss       = "loss"
)

var classes = map[string]bool{
	ClassHidden: true, ClassForward: true, ClassEmbedding: true, ClassCopy: true,
	ClassConstant: true, ClassBinOp: true, ClassDual: true, ClassStateToAct: true,
	ClassArray: true, ClassCentroid: true, ClassCentroid2: true, ClassEye: true,
	ClassProto: true, ClassBase: true, ClassChunking: true, ClassCorruption: true,
	ClassLoss: true,
}

// Network is a parsed network description.
type Network struct {
	Output string            `yaml:"output"`
	Input  Input             `yaml:"input"`
	Layers map[string]*Layer `yaml:"layers"`
}

// Input describes the data layer.
type Input struct {
	Sparse bool `yaml:"sparse"` // class ids instead of features
	NOut   int  `yaml:"n_out"`  // feature width, or number of classes when sparse
}

// Load reads and validates the description at path.
func Load(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	n, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// Parse decodes and validates a description. Unknown keys are rejected.
func Parse(data []byte) (*Network, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var n Network
	if err := dec.Decode(&n); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", layer.ErrInvalidConfig, err)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

// Validate checks classes, references and the acyclicity of the description.
func (n *Network) Validate() error {
	if len(n.Layers) == 0 {
		return invalid("no layers")
	}
	if n.Output == "" {
		return invalid("no output layer")
	}
	if _, ok := n.Layers[n.Output]; !ok {
		return invalid("output layer %q is not defined", n.Output)
	}
	if _, ok := n.Layers[DataName]; ok {
		return invalid("layer name %q is reserved for the input", DataName)
	}

	for _, name := range n.Names() {
		l := n.Layers[name]
		if l == nil {
			return invalid("layer %q is empty", name)
		}
		if !classes[l.Class] {
			return invalid("layer %q: unknown class %q", name, l.Class)
		}
		for _, dep := range l.Deps() {
			if dep == DataName {
				continue
			}
			if _, ok := n.Layers[dep]; !ok {
				return invalid("layer %q: unknown source %q", name, dep)
			}
		}
		if l.Centroids != "" && (l.Centroids == DataName || n.Layers[l.Centroids].Class != ClassArray) {
			return invalid("layer %q: centroids %q is not an array layer", name, l.Centroids)
		}
		if l.Class == ClassBinOp {
			if _, _, err := layer.ParseOperator(l.Mode); err != nil {
				return invalid("layer %q: %v", name, err)
			}
		}
		if l.Dropout < 0 || l.Dropout >= 1 {
			return invalid("layer %q: dropout %v outside [0, 1)", name, l.Dropout)
		}
	}
	_, err := n.Order()
	return err
}

// Names returns the layer names in sorted order.
func (n *Network) Names() []string {
	names := make([]string, 0, len(n.Layers))
	for name := range n.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Order returns every layer name so that each layer follows its dependencies.
func (n *Network) Order() ([]string, error) {
	const (
		unseen = iota
		visiting
		done
	)
	state := make(map[string]int, len(n.Layers))
	order := make([]string, 0, len(n.Layers))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return invalid("cycle through %q: %v", name, append(path, name))
		}
		state[name] = visiting
		for _, dep := range n.Layers[name].Deps() {
			if dep == DataName {
				continue
			}
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range n.Names() {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Losses returns the names of the loss layers in sorted order.
func (n *Network) Losses() []string {
	var out []string
	for _, name := range n.Names() {
		if n.Layers[name].Class == ClassLoss {
			out = append(out, name)
		}
	}
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", layer.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
