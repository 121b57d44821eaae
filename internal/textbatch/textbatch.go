// Package textbatch turns text into next-token prediction batches.
//
// A batch holds, for B sequences padded to T steps, the input token ids as a
// sparse (T, B, 1) array, the sequence lengths and the next-token class of
// every position. Positions are time-major: p = t·B + b.
package textbatch

import (
	"errors"
	"fmt"

	"github.com/born-ml/born/tensor"
	"github.com/born-ml/born/tokenizer"

	"github.com/born-ml/seqnet/internal/layer"
)

// ErrTooShort is returned for sequences of fewer than two tokens.
var ErrTooShort = errors.New("textbatch: sequence needs at least two tokens")

// Batch is one padded minibatch of token sequences.
type Batch struct {
	Steps   int
	Size    int
	IDs     []float32 // (Steps, Size, 1) input ids, time-major
	Lengths []int     // valid steps per sequence
	Next    []int32   // next-token class per position
}

// EncodeAll encodes every text, prefixed with the tokenizer's BOS token when
// it has one.
func EncodeAll(tok tokenizer.Tokenizer, texts []string) ([][]int32, error) {
	out := make([][]int32, len(texts))
	for i, text := range texts {
		ids, err := tok.Encode(text)
		if err != nil {
			return nil, fmt.Errorf("encode text %d: %w", i, err)
		}
		if bos := tok.BosToken(); bos >= 0 {
			ids = append([]int32{bos}, ids...)
		}
		if n := tok.VocabSize(); n > 0 {
			for _, id := range ids {
				if id < 0 || int(id) >= n {
					return nil, fmt.Errorf("text %d: token %d outside vocabulary of %d", i, id, n)
				}
			}
		}
		out[i] = ids
	}
	return out, nil
}

// Windows cuts ids into sequences of size+1 tokens that overlap by one, so
// every token except the first is predicted once. A tail shorter than two
// tokens is dropped.
func Windows(ids []int32, size int) [][]int32 {
	if size < 1 {
		return nil
	}
	var out [][]int32
	for start := 0; start+1 < len(ids); start += size {
		end := min(start+size+1, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

// New builds a batch from token sequences. Sequence i of n tokens yields
// n-1 input steps predicting tokens 1..n-1. Padding positions hold pad.
func New(seqs [][]int32, pad int32) (*Batch, error) {
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrTooShort)
	}
	if pad < 0 {
		pad = 0
	}
	steps := 0
	lengths := make([]int, len(seqs))
	for i, s := range seqs {
		if len(s) < 2 {
			return nil, fmt.Errorf("%w: sequence %d has %d", ErrTooShort, i, len(s))
		}
		lengths[i] = len(s) - 1
		steps = max(steps, lengths[i])
	}

	size := len(seqs)
	b := &Batch{
		Steps:   steps,
		Size:    size,
		IDs:     make([]float32, steps*size),
		Lengths: lengths,
		Next:    make([]int32, steps*size),
	}
	for t := range steps {
		for i, s := range seqs {
			p := t*size + i
			if t < lengths[i] {
				b.IDs[p] = float32(s[t])
				b.Next[p] = s[t+1]
			} else {
				b.IDs[p] = float32(pad)
				b.Next[p] = pad
			}
		}
	}
	return b, nil
}

// Encode encodes texts and builds a batch padded with the tokenizer's pad
// token, or 0 when it has none.
func Encode(tok tokenizer.Tokenizer, texts []string) (*Batch, error) {
	seqs, err := EncodeAll(tok, texts)
	if err != nil {
		return nil, err
	}
	return New(seqs, tok.PadToken())
}

// Input returns the sparse (T, B, 1) id tensor.
func Input[B tensor.Backend](bt *Batch, b B) (*tensor.Tensor[float32, B], error) {
	return tensor.FromSlice(bt.IDs, tensor.Shape{bt.Steps, bt.Size, 1}, b)
}

// Target returns the next-token classes as a loss target.
func (bt *Batch) Target() *layer.Target {
	return layer.ClassTarget(bt.Next)
}

// Tokens returns the number of predicted tokens.
func (bt *Batch) Tokens() int {
	n := 0
	for _, l := range bt.Lengths {
		n += l
	}
	return n
}
