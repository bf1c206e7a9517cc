// Package checkpoint saves and restores named tensors in a safetensors layout: an 8 byte
// little endian header length, a JSON header, then the raw little endian data
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/d4l3k/go-bfloat16"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/x448/float16"

	"github.com/neurlang/convtrain/layer"
	"github.com/neurlang/convtrain/tensor"
)

// ErrNoCheckpoint is returned when a training directory holds no checkpoint
var ErrNoCheckpoint = errors.New("no checkpoint found")

// Prefix names checkpoint files: <Prefix>-<step>
const Prefix = "model.ckpt"

const metadataKey = "__metadata__"

// DType is the stored element type
type DType string

const (
	F32  DType = "F32"
	F16  DType = "F16"
	BF16 DType = "BF16"
)

// ParseDType accepts F32, F16 and BF16
func ParseDType(s string) (DType, error) {
	switch d := DType(s); d {
	case F32, F16, BF16:
		return d, nil
	}
	return "", fmt.Errorf("unknown checkpoint dtype %q, want F32, F16 or BF16", s)
}

func (d DType) size() int64 {
	if d == F32 {
		return 4
	}
	return 2
}

// Options configure Save
type Options struct {
	DType      DType
	MaxToKeep  int   // older checkpoints are deleted, 0 keeps all
	GlobalStep int64 // number of applied updates, recorded in the metadata
	RunID      string
}

// TensorInfo is the header entry of one tensor
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Header is a parsed checkpoint header
type Header struct {
	Metadata map[string]string
	Names    []string // in file order
	Tensors  map[string]TensorInfo
	size     int64
}

// Step returns the global step recorded at save time
func (h *Header) Step() (int64, error) {
	return strconv.ParseInt(h.Metadata["global_step"], 10, 64)
}

// Path returns the checkpoint path for step
func Path(dir string, step int64) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d", Prefix, step))
}

// Save writes vars to <dir>/model.ckpt-<step>, records it in the index and prunes old
// checkpoints. It returns the written path.
func Save(dir string, step int64, vars []*layer.Param, opts Options) (string, error) {
	if opts.DType == "" {
		opts.DType = F32
	}
	meta := map[string]string{
		"format":      "convtrain",
		"global_step": strconv.FormatInt(opts.GlobalStep, 10),
	}
	if opts.RunID != "" {
		meta["run_id"] = opts.RunID
	}
	header := orderedmap.New[string, any]()
	header.Set(metadataKey, meta)
	var offset int64
	for _, v := range vars {
		if _, dup := header.Get(v.Name); dup {
			return "", fmt.Errorf("save checkpoint: duplicate tensor %q", v.Name)
		}
		end := offset + int64(len(v.Value))*opts.DType.size()
		header.Set(v.Name, TensorInfo{DType: opts.DType, Shape: v.Shape, DataOffsets: [2]int64{offset, end}})
		offset = end
	}
	h, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	if pad := len(h) % 8; pad != 0 {
		h = append(h, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	var buf bytes.Buffer
	buf.Grow(8 + len(h) + int(offset))
	binary.Write(&buf, binary.LittleEndian, uint64(len(h)))
	buf.Write(h)
	for _, v := range vars {
		buf.Write(encode(opts.DType, v.Value))
	}

	path := Path(dir, step)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	if err := updateIndex(dir, filepath.Base(path), opts.MaxToKeep); err != nil {
		return "", err
	}
	return path, nil
}

func encode(d DType, v []float32) []byte {
	switch d {
	case F16:
		out := make([]byte, 2*len(v))
		for i, f := range v {
			binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(f).Bits())
		}
		return out
	case BF16:
		return bfloat16.EncodeFloat32(v)
	}
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

func decode(d DType, b []byte, dst []float32) {
	switch d {
	case F16:
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32()
		}
	case BF16:
		copy(dst, bfloat16.DecodeFloat32(b))
	default:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
	}
}

func readHeader(data []byte, path string) (*Header, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("checkpoint %s: truncated", path)
	}
	n := binary.LittleEndian.Uint64(data)
	if n > uint64(len(data)-8) {
		return nil, fmt.Errorf("checkpoint %s: header length %d exceeds the file", path, n)
	}
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data[8:8+n], raw); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	h := &Header{Tensors: make(map[string]TensorInfo), size: int64(len(data)) - 8 - int64(n)}
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == metadataKey {
			if err := json.Unmarshal(pair.Value, &h.Metadata); err != nil {
				return nil, fmt.Errorf("checkpoint %s: metadata: %w", path, err)
			}
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(pair.Value, &info); err != nil {
			return nil, fmt.Errorf("checkpoint %s: tensor %s: %w", path, pair.Key, err)
		}
		if _, err := ParseDType(string(info.DType)); err != nil {
			return nil, fmt.Errorf("checkpoint %s: tensor %s: %w", path, pair.Key, err)
		}
		want := int64(tensor.Size(info.Shape)) * info.DType.size()
		if info.DataOffsets[1]-info.DataOffsets[0] != want || info.DataOffsets[0] < 0 || info.DataOffsets[1] > h.size {
			return nil, fmt.Errorf("checkpoint %s: tensor %s has invalid offsets %v", path, pair.Key, info.DataOffsets)
		}
		h.Names = append(h.Names, pair.Key)
		h.Tensors[pair.Key] = info
	}
	return h, nil
}

// Inspect reads the header of a checkpoint
func Inspect(path string) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return readHeader(data, path)
}

// Restore loads every var from the checkpoint at path; each must be present with the same shape
func Restore(path string, vars []*layer.Param) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	h, err := readHeader(data, path)
	if err != nil {
		return nil, err
	}
	body := data[len(data)-int(h.size):]
	for _, v := range vars {
		info, ok := h.Tensors[v.Name]
		if !ok {
			return nil, fmt.Errorf("restore %s: tensor %q not found", path, v.Name)
		}
		if !tensor.SameShape(info.Shape, v.Shape) {
			return nil, fmt.Errorf("restore %s: tensor %q has shape %v, want %v: %w", path, v.Name, info.Shape, v.Shape, tensor.ErrShapeMismatch)
		}
		decode(info.DType, body[info.DataOffsets[0]:info.DataOffsets[1]], v.Value)
	}
	return h, nil
}
