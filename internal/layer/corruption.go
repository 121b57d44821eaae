package layer

import (
	"github.com/born-ml/born/tensor"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/seqnet/internal/ops"
)

// Noise kinds of the corruption layer.
const (
	NoiseGaussian = "gaussian"
	NoiseNone     = "none"
)

// varianceEpsilon keeps constant features finite when standardised.
const varianceEpsilon = 1e-12

// CorruptionConfig configures a corruption layer.
type CorruptionConfig struct {
	Noise string  // "gaussian" (default) or "none"
	P     float64 // standard deviation of the gaussian noise
}

// Corruption concatenates its sources and, for gaussian noise, standardises
// every feature over time and batch and adds N(0, P²) noise drawn from the
// environment's random stream.
type Corruption[B tensor.Backend] struct {
	Base[B]
}

// NewCorruption builds a corruption layer.
func NewCorruption[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg CorruptionConfig) (*Corruption[B], error) {
	const class = "corruption"
	noise := cfg.Noise
	if noise == "" {
		noise = NoiseGaussian
	}
	if noise != NoiseGaussian && noise != NoiseNone {
		return nil, configError(class, name, ErrNotImplemented, "noise %q", noise)
	}
	if cfg.P < 0 {
		return nil, configError(class, name, ErrInvalidConfig, "p must be >= 0, got %g", cfg.P)
	}
	if len(sources) == 0 {
		return nil, configError(class, name, ErrNoSources, "")
	}
	l := &Corruption[B]{Base: newBase(env, class, name, width(sources), sources)}
	l.attrs["noise"] = noise
	l.attrs["p"] = cfg.P

	z, err := Concat(sources)
	if err != nil {
		return nil, l.wrap(err)
	}
	if noise == NoiseGaussian {
		z = standardize(z)
		if cfg.P > 0 {
			z = ops.Add(gaussian(z.Shape(), cfg.P, env), z)
		}
	}
	l.setOutput(z)
	return l, nil
}

// standardize scales every feature of a (T, B, D) tensor to zero mean and unit
// population variance over time and batch.
func standardize[B tensor.Backend](z *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mean := ops.Mean(ops.Mean(z, 0, true), 1, true)
	centered := ops.Sub(z, mean)
	variance := ops.Mean(ops.Mean(ops.Sqr(centered), 0, true), 1, true)
	return ops.Div(centered, ops.Shift(variance, varianceEpsilon).Sqrt())
}

func gaussian[B tensor.Backend](shape tensor.Shape, sigma float64, env *Env[B]) *tensor.Tensor[float32, B] {
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: env.Rand}
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(dist.Rand())
	}
	t, err := tensor.FromSlice(data, shape, env.Backend)
	if err != nil {
		panic("corruption noise: " + err.Error())
	}
	return t
}
