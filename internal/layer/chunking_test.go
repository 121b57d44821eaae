package layer

import (
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkingPadsToMultiple(t *testing.T) {
	env := newEnv(t, []int{3, 2}, 3)
	data := denseInput(t, env, []float32{1, 10, 2, 20, 3, 30}, 3, 2, 1)

	l, err := NewChunking(env, "chunk", Sources[Backend](data), ChunkingConfig{ChunkSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, l.NOut())
	require.Equal(t, tensor.Shape{2, 2, 2}, l.Output().Shape())
	assert.Equal(t, []float32{1, 2, 10, 20, 3, 0, 30, 0}, l.Output().Data())

	// The first step of every chunk decides its validity.
	assert.Equal(t, []float32{1, 1, 1, 0}, l.Index().Tensor().Data())
}

func TestChunkingSingleStep(t *testing.T) {
	env := newEnv(t, []int{1}, 1)
	data := denseInput(t, env, []float32{1}, 1, 1, 1)

	l, err := NewChunking(env, "chunk", Sources[Backend](data), ChunkingConfig{ChunkSize: 3})
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{1, 1, 3}, l.Output().Shape())
	assert.Equal(t, []float32{1, 0, 0}, l.Output().Data())
	assert.Equal(t, []float32{1}, l.Index().Tensor().Data())
}

func TestChunkingExactMultiple(t *testing.T) {
	env := newEnv(t, []int{4}, 4)
	data := denseInput(t, env, []float32{1, 2, 3, 4}, 4, 1, 1)

	l, err := NewChunking(env, "chunk", Sources[Backend](data), ChunkingConfig{ChunkSize: 2})
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{2, 1, 2}, l.Output().Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, l.Output().Data())
	assert.Equal(t, 2, l.Index().Steps())
}

func TestChunkingInheritedIndex(t *testing.T) {
	env := newEnv(t, []int{4}, 4)
	data := denseInput(t, env, []float32{1, 2, 3, 4}, 4, 1, 1)
	chunk, err := NewChunking(env, "chunk", Sources[Backend](data), ChunkingConfig{ChunkSize: 2})
	require.NoError(t, err)

	next, err := NewCopy(env, "next", Sources[Backend](chunk), "")
	require.NoError(t, err)
	assert.Same(t, chunk.Index(), next.Index())
}

func TestChunkingErrors(t *testing.T) {
	env := newEnv(t, []int{1}, 1)
	data := denseInput(t, env, []float32{1}, 1, 1, 1)

	_, err := NewChunking(env, "chunk", Sources[Backend](data), ChunkingConfig{ChunkSize: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
