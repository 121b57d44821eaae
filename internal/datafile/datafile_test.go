package datafile

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSafeTensors writes a file holding a F32 (2, 3) "centroids" array and an
// I32 (2) "ids" array.
func writeSafeTensors(t *testing.T, path string) {
	t.Helper()

	header := map[string]any{
		"__metadata__": map[string]string{"format": "pt"},
		"centroids":    map[string]any{"dtype": "F32", "shape": []int{2, 3}, "data_offsets": []int64{0, 24}},
		"ids":          map[string]any{"dtype": "I32", "shape": []int{2}, "data_offsets": []int64{24, 32}},
	}
	hdr, err := json.Marshal(header)
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, binary.Write(f, binary.LittleEndian, uint64(len(hdr))))
	_, err = f.Write(hdr)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, []float32{1, 2, 3, 4, 5, 6}))
	require.NoError(t, binary.Write(f, binary.LittleEndian, []int32{7, 8}))
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.safetensors")
	writeSafeTensors(t, path)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "SafeTensors", f.Format())
	assert.Equal(t, []string{"centroids", "ids"}, f.Names())

	b := cpu.New()
	c, err := Read(f, "centroids", b)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, c.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, c.Data())

	_, err = Read(f, "ids", b)
	assert.Error(t, err)

	_, err = Read(f, "missing", b)
	assert.Error(t, err)
}

func TestReadArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.safetensors")
	writeSafeTensors(t, path)

	c, err := ReadArray(path, "centroids", cpu.New())
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, c.Data()[3:])
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "refs.npy"))
	assert.Error(t, err)
}

func TestWriteReadsBack(t *testing.T) {
	b := cpu.New()
	w, err := tensor.FromSlice([]float32{1, -2, 3.5, 0, 5, 6}, tensor.Shape{3, 2}, b)
	require.NoError(t, err)
	bias, err := tensor.FromSlice([]float32{0.25, -0.5}, tensor.Shape{2}, b)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "params.safetensors")
	arrays := map[string]*tensor.RawTensor{"out.W_in_data": w.Raw(), "out.b": bias.Raw()}
	require.NoError(t, Write(path, arrays, map[string]string{"config": "net.yaml"}))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"out.W_in_data", "out.b"}, f.Names())
	require.NoError(t, f.Close())

	got, err := ReadAll(path, b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, tensor.Shape{3, 2}, got["out.W_in_data"].Shape())
	assert.Equal(t, []float32{1, -2, 3.5, 0, 5, 6}, got["out.W_in_data"].AsFloat32())
	assert.Equal(t, []float32{0.25, -0.5}, got["out.b"].AsFloat32())
}

func TestWriteRejectsNonFloat(t *testing.T) {
	ids, err := tensor.FromSlice([]int32{1, 2}, tensor.Shape{2}, cpu.New())
	require.NoError(t, err)

	err = Write(filepath.Join(t.TempDir(), "ids.safetensors"), map[string]*tensor.RawTensor{"ids": ids.Raw()}, nil)
	assert.Error(t, err)
}
