package datafile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/born-ml/born/tensor"
)

// Write stores float32 arrays in a .safetensors file at path, names sorted.
// meta goes to the "__metadata__" header entry.
func Write(path string, arrays map[string]*tensor.RawTensor, meta map[string]string) error {
	data, err := encode(arrays, meta)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type entry struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// encode lays out [header size (8 bytes LE)] [JSON header] [array data].
func encode(arrays map[string]*tensor.RawTensor, meta map[string]string) ([]byte, error) {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(meta) > 0 {
		header["__metadata__"] = meta
	}
	offset := 0
	for _, name := range names {
		raw := arrays[name]
		if raw.DType() != tensor.Float32 {
			return nil, fmt.Errorf("array %q has dtype %v, expected float32", name, raw.DType())
		}
		size := raw.Shape().NumElements() * 4
		header[name] = entry{DType: "F32", Shape: []int(raw.Shape().Clone()), DataOffsets: [2]int{offset, offset + size}}
		offset += size
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	out := make([]byte, 8+len(hdr)+offset)
	binary.LittleEndian.PutUint64(out, uint64(len(hdr)))
	copy(out[8:], hdr)

	pos := 8 + len(hdr)
	for _, name := range names {
		for _, v := range arrays[name].AsFloat32() {
			binary.LittleEndian.PutUint32(out[pos:], math.Float32bits(v))
			pos += 4
		}
	}
	return out, nil
}

// ReadAll loads every float array of the file at path onto backend b, keyed by
// name.
func ReadAll[B tensor.Backend](path string, b B) (map[string]*tensor.RawTensor, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]*tensor.RawTensor)
	for _, name := range f.Names() {
		x, err := Read(f, name, b)
		if err != nil {
			return nil, err
		}
		out[name] = x.Raw()
	}
	return out, nil
}
