package textbatch

import (
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/internal/layer"
)

// byteTokenizer maps every byte to its value; id 0 is the pad token.
type byteTokenizer struct {
	bos int32
}

func (byteTokenizer) Encode(text string) ([]int32, error) {
	ids := make([]int32, len(text))
	for i := range len(text) {
		ids[i] = int32(text[i])
	}
	return ids, nil
}

func (byteTokenizer) Decode(ids []int32) (string, error) {
	b := make([]byte, len(ids))
	for i, id := range ids {
		b[i] = byte(id)
	}
	return string(b), nil
}

func (byteTokenizer) VocabSize() int { return 256 }
func (t byteTokenizer) BosToken() int32 { return t.bos }
func (byteTokenizer) EosToken() int32 { return -1 }
func (byteTokenizer) PadToken() int32 { return 0 }
func (byteTokenizer) UnkToken() int32 { return -1 }
func (t byteTokenizer) IsSpecialToken(id int32) bool { return id == 0 || id == t.bos }

func TestEncode(t *testing.T) {
	bt, err := Encode(byteTokenizer{bos: -1}, []string{"abc", "xy"})
	require.NoError(t, err)

	assert.Equal(t, 2, bt.Steps)
	assert.Equal(t, 2, bt.Size)
	assert.Equal(t, []int{2, 1}, bt.Lengths)
	assert.Equal(t, []float32{'a', 'x', 'b', 0}, bt.IDs)
	assert.Equal(t, []int32{'b', 'y', 'c', 0}, bt.Next)
	assert.Equal(t, 3, bt.Tokens())

	target := bt.Target()
	assert.Equal(t, layer.TargetClasses, target.Kind)
	assert.Equal(t, 4, target.Positions())
}

func TestEncodePrependsBOS(t *testing.T) {
	bt, err := Encode(byteTokenizer{bos: 1}, []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, bt.Lengths)
	assert.Equal(t, []float32{1}, bt.IDs)
	assert.Equal(t, []int32{'a'}, bt.Next)
}

func TestTooShort(t *testing.T) {
	_, err := Encode(byteTokenizer{bos: -1}, []string{"ok", "x"})
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = New(nil, 0)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestWindows(t *testing.T) {
	ids := []int32{1, 2, 3, 4, 5, 6}

	w := Windows(ids, 2)
	assert.Equal(t, [][]int32{{1, 2, 3}, {3, 4, 5}, {5, 6}}, w)

	assert.Equal(t, [][]int32{{1, 2, 3, 4, 5, 6}}, Windows(ids, 10))
	assert.Nil(t, Windows([]int32{1}, 4))
	assert.Nil(t, Windows(ids, 0))
}

func TestInput(t *testing.T) {
	bt, err := New([][]int32{{5, 6, 7}}, 0)
	require.NoError(t, err)

	x, err := Input(bt, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1, 1}, x.Shape())
	assert.Equal(t, []float32{5, 6}, x.Data())
}
