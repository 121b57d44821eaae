// Package datafile reads named arrays from .safetensors and .gguf files.
//
// Array layers and fixed reference sets take their values from such files.
package datafile

import (
	"fmt"
	"sort"

	"github.com/born-ml/born/loader"
	"github.com/born-ml/born/tensor"
)

// File is an open array file.
type File struct {
	path   string
	reader loader.ModelReader
}

// Open opens the array file at path. The format follows the extension.
func Open(path string) (*File, error) {
	r, err := loader.OpenModel(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &File{path: path, reader: r}, nil
}

// Format returns the file format name.
func (f *File) Format() string { return f.reader.Format().String() }

// Names returns the array names in sorted order.
func (f *File) Names() []string {
	names := f.reader.TensorNames()
	sort.Strings(names)
	return names
}

// Close closes the file.
func (f *File) Close() error { return f.reader.Close() }

// Read loads the named array onto backend b. Float64 arrays are narrowed.
func Read[B tensor.Backend](f *File, name string, b B) (*tensor.Tensor[float32, B], error) {
	raw, err := f.reader.LoadTensor(name, b)
	if err != nil {
		return nil, fmt.Errorf("%s: read %q: %w", f.path, name, err)
	}
	switch raw.DType() {
	case tensor.Float32:
		return tensor.New[float32](raw, b), nil
	case tensor.Float64:
		src := raw.AsFloat64()
		data := make([]float32, len(src))
		for i, v := range src {
			data[i] = float32(v)
		}
		return tensor.FromSlice(data, raw.Shape(), b)
	}
	return nil, fmt.Errorf("%s: array %q has dtype %v, expected a float type", f.path, name, raw.DType())
}

// ReadArray opens path, loads one array and closes the file.
func ReadArray[B tensor.Backend](path, name string, b B) (*tensor.Tensor[float32, B], error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, name, b)
}
