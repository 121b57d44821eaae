package layer

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Index marks which (time, batch) positions of a sequence batch hold real data.
//
// Positions with a value > 0 are valid, the rest are padding. The index is
// never differentiated; its values are read eagerly.
type Index[B tensor.Backend] struct {
	t *tensor.Tensor[float32, B]
}

// NewIndex wraps a (time, batch) tensor.
func NewIndex[B tensor.Backend](t *tensor.Tensor[float32, B]) (*Index[B], error) {
	if len(t.Shape()) != 2 {
		return nil, fmt.Errorf("index must be (time, batch), got shape %v", t.Shape())
	}
	return &Index[B]{t: t}, nil
}

// IndexFromLengths builds the index of a batch of sequences with the given lengths.
// steps is the padded time extent and must cover the longest sequence.
func IndexFromLengths[B tensor.Backend](lengths []int, steps int, b B) (*Index[B], error) {
	if len(lengths) == 0 {
		return nil, fmt.Errorf("index needs at least one sequence")
	}
	data := make([]float32, steps*len(lengths))
	for j, n := range lengths {
		if n < 0 || n > steps {
			return nil, fmt.Errorf("sequence %d has length %d, time extent is %d", j, n, steps)
		}
		for t := range n {
			data[t*len(lengths)+j] = 1
		}
	}
	t, err := tensor.FromSlice(data, tensor.Shape{steps, len(lengths)}, b)
	if err != nil {
		return nil, err
	}
	return &Index[B]{t: t}, nil
}

// OnesIndex returns an index where every position is valid.
func OnesIndex[B tensor.Backend](steps, batch int, b B) *Index[B] {
	return &Index[B]{t: tensor.Ones[float32](tensor.Shape{steps, batch}, b)}
}

// Tensor returns the (time, batch) tensor.
func (i *Index[B]) Tensor() *tensor.Tensor[float32, B] {
	return i.t
}

// Steps returns the time extent.
func (i *Index[B]) Steps() int {
	return i.t.Shape()[0]
}

// Batch returns the batch extent.
func (i *Index[B]) Batch() int {
	return i.t.Shape()[1]
}

// Valid returns the flattened positions (t*batch + b) whose value is > 0.
func (i *Index[B]) Valid() []int {
	var pos []int
	for p, v := range i.t.Data() {
		if v > 0 {
			pos = append(pos, p)
		}
	}
	return pos
}

// Padding returns the flattened positions whose value is <= 0.
func (i *Index[B]) Padding() []int {
	var pos []int
	for p, v := range i.t.Data() {
		if v <= 0 {
			pos = append(pos, p)
		}
	}
	return pos
}

// Lengths returns the number of valid steps per batch entry.
func (i *Index[B]) Lengths() []int {
	n := make([]int, i.Batch())
	for p, v := range i.t.Data() {
		if v > 0 {
			n[p%i.Batch()]++
		}
	}
	return n
}

// Every keeps every k-th time row, starting with the first.
func (i *Index[B]) Every(k int) *Index[B] {
	if k <= 1 {
		return i
	}
	src := i.t.Data()
	batch := i.Batch()
	steps := (i.Steps() + k - 1) / k
	data := make([]float32, 0, steps*batch)
	for t := 0; t < i.Steps(); t += k {
		data = append(data, src[t*batch:(t+1)*batch]...)
	}
	t, err := tensor.FromSlice(data, tensor.Shape{steps, batch}, i.t.Backend())
	if err != nil {
		panic(fmt.Sprintf("index downsample: %v", err))
	}
	return &Index[B]{t: t}
}
