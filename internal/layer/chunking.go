package layer

import (
	"github.com/born-ml/born/tensor"
)

// ChunkingConfig configures a chunking layer.
type ChunkingConfig struct {
	ChunkSize int // time steps folded into one output step
}

// Chunking shortens the time axis by folding ChunkSize consecutive steps of
// every batch entry into one feature vector.
//
// The time extent is zero-padded up to a multiple of the chunk size, giving
// (ceil(T/k), B, k·D). The index keeps every k-th row, the first step of each
// chunk, which is never a pad step; layers built on top inherit the shortened
// index.
type Chunking[B tensor.Backend] struct {
	Base[B]
	ChunkSize int
}

// NewChunking builds a chunking layer.
func NewChunking[B tensor.Backend](env *Env[B], name string, sources []Source[B], cfg ChunkingConfig) (*Chunking[B], error) {
	const class = "chunking"
	k := cfg.ChunkSize
	if k < 1 {
		return nil, configError(class, name, ErrInvalidConfig, "chunk_size must be >= 1, got %d", k)
	}
	if len(sources) == 0 {
		return nil, configError(class, name, ErrNoSources, "")
	}
	l := &Chunking[B]{Base: newBase(env, class, name, k*width(sources), sources), ChunkSize: k}
	l.attrs["chunk_size"] = k

	z, err := Concat(sources)
	if err != nil {
		return nil, l.wrap(err)
	}
	sh := z.Shape()
	steps := (sh[0] + k - 1) / k * k
	if steps > sh[0] {
		pad := tensor.Zeros[float32](tensor.Shape{steps - sh[0], sh[1], sh[2]}, env.Backend)
		z = tensor.Cat([]*tensor.Tensor[float32, B]{z, pad}, 0)
	}
	// (T, B, D) -> (B, T, D) -> (B, T/k, k·D) -> (T/k, B, k·D)
	folded := z.Transpose(1, 0, 2).Reshape(sh[1], steps/k, k*sh[2]).Transpose(1, 0, 2)
	l.index = l.index.Every(k)
	l.setOutput(folded)
	return l, nil
}
