package layer

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqnet/internal/activation"
	"github.com/born-ml/seqnet/internal/ops"
)

// Copy concatenates its sources on the feature axis and applies an activation.
type Copy[B tensor.Backend] struct {
	Base[B]
}

// NewCopy builds a copy layer.
func NewCopy[B tensor.Backend](env *Env[B], name string, sources []Source[B], act string) (*Copy[B], error) {
	if len(sources) == 0 {
		return nil, configError("copy", name, ErrNoSources, "")
	}
	fn, err := activation.Resolve[B](act)
	if err != nil {
		return nil, configError("copy", name, ErrUnknownActivation, "%q", act)
	}
	l := &Copy[B]{Base: newBase(env, "copy", name, width(sources), sources)}
	l.attrs["activation"] = act
	out, err := Concat(sources)
	if err != nil {
		return nil, l.wrap(err)
	}
	l.setOutput(fn(out))
	return l, nil
}

// Constant outputs a literal broadcastable against (time, batch, feature).
type Constant[B tensor.Backend] struct {
	Base[B]
}

// ConstantConfig configures a constant layer.
type ConstantConfig struct {
	Value any    // a number or a flat list of numbers
	DType string // informational, kept as attribute (default "float32")
}

// NewConstant builds a constant layer. A number becomes (1, 1, 1), a list of
// N numbers (1, 1, N). Nested lists are not supported.
func NewConstant[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg ConstantConfig) (*Constant[B], error) {
	if len(sources) > 0 {
		return nil, configError("constant", name, ErrSourceCount, "constant layers take no sources, got %d", len(sources))
	}
	values, err := constantValues(cfg.Value)
	if err != nil {
		return nil, configError("constant", name, err, "%v", cfg.Value)
	}
	t, err := tensor.FromSlice(values, tensor.Shape{1, 1, len(values)}, env.Backend)
	if err != nil {
		return nil, configError("constant", name, ErrInvalidConfig, "%v", err)
	}
	dtype := cfg.DType
	if dtype == "" {
		dtype = "float32"
	}
	l := &Constant[B]{Base: newBase(env, "constant", name, len(values), nil)}
	l.attrs["dtype"] = dtype
	l.setOutput(t)
	return l, nil
}

func constantValues(v any) ([]float32, error) {
	if f, ok := number(v); ok {
		return []float32{f}, nil
	}
	var items []any
	switch list := v.(type) {
	case []float32:
		if len(list) == 0 {
			return nil, ErrInvalidConfig
		}
		return append([]float32(nil), list...), nil
	case []float64:
		for _, x := range list {
			items = append(items, x)
		}
	case []int:
		for _, x := range list {
			items = append(items, x)
		}
	case []any:
		items = list
	default:
		return nil, ErrInvalidConfig
	}
	if len(items) == 0 {
		return nil, ErrInvalidConfig
	}
	out := make([]float32, len(items))
	for i, x := range items {
		f, ok := number(x)
		if !ok {
			return nil, ErrNotImplemented
		}
		out[i] = f
	}
	return out, nil
}

func number(v any) (float32, bool) {
	switch x := v.(type) {
	case float32:
		return x, true
	case float64:
		return float32(x), true
	case int:
		return float32(x), true
	case int64:
		return float32(x), true
	case int32:
		return float32(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Operator is a binary elementwise operator.
type Operator int

// Binary operators.
const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpMax
	OpMin
)

var operatorNames = map[string]Operator{
	"+": OpAdd, "add": OpAdd,
	"-": OpSub, "sub": OpSub,
	"*": OpMul, "mul": OpMul,
	"/": OpDiv, "div": OpDiv,
	"maximum": OpMax,
	"minimum": OpMin,
}

// String returns the canonical operator name.
func (o Operator) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpMax:
		return "maximum"
	case OpMin:
		return "minimum"
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ParseOperator parses "<op>" or "<op>:<activation>".
func ParseOperator(s string) (Operator, string, error) {
	name, act, _ := strings.Cut(s, ":")
	op, ok := operatorNames[strings.TrimSpace(name)]
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownOperator, name)
	}
	return op, strings.TrimSpace(act), nil
}

// BinaryOp combines exactly two sources of equal width elementwise.
type BinaryOp[B tensor.Backend] struct {
	Base[B]
	Op Operator
}

// NewBinaryOp builds a binary operator layer. mode is "<op>" or "<op>:<activation>".
func NewBinaryOp[B tensor.Backend](env *Env[B], name string, sources []Source[B], mode string) (*BinaryOp[B], error) {
	if len(sources) != 2 {
		return nil, configError("bin_op", name, ErrSourceCount, "needs exactly 2 sources, got %d", len(sources))
	}
	op, act, err := ParseOperator(mode)
	if err != nil {
		return nil, configError("bin_op", name, ErrUnknownOperator, "%q", mode)
	}
	fn, err := activation.Resolve[B](act)
	if err != nil {
		return nil, configError("bin_op", name, ErrUnknownActivation, "%q", act)
	}
	a, c := sources[0], sources[1]
	if a.Layer.NOut() != c.Layer.NOut() {
		return nil, configError("bin_op", name, ErrWidthMismatch, "%q has width %d, %q has width %d",
			a.Layer.Name(), a.Layer.NOut(), c.Layer.Name(), c.Layer.NOut())
	}

	l := &BinaryOp[B]{Base: newBase(env, "bin_op", name, a.Layer.NOut(), sources), Op: op}
	l.attrs["mode"] = mode

	x, y := a.Output(), c.Output()
	shape, _, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		return nil, l.fail(ErrWidthMismatch, "%v and %v: %v", x.Shape(), y.Shape(), err)
	}
	var out *tensor.Tensor[float32, B]
	switch op {
	case OpAdd:
		out = ops.Add(x, y)
	case OpSub:
		out = ops.Sub(x, y)
	case OpMul:
		out = ops.Mul(x, y)
	case OpDiv:
		out = ops.Div(x, y)
	case OpMax:
		out = ops.Maximum(expandTo(x, shape), expandTo(y, shape))
	case OpMin:
		out = ops.Minimum(expandTo(x, shape), expandTo(y, shape))
	}
	if !out.Shape().Equal(shape) {
		out = expandTo(out, shape)
	}
	if c.Layer.Index().Steps() > l.index.Steps() {
		l.index = c.Layer.Index()
	}
	l.setOutput(fn(out))
	return l, nil
}

func expandTo[B tensor.Backend](x *tensor.Tensor[float32, B], shape tensor.Shape) *tensor.Tensor[float32, B] {
	return ops.Expand(x, shape)
}
