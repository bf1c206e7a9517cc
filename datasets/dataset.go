// Package datasets implements the input pipelines: the datasets, the example transforms
// and the queues that feed batches to training and evaluation
package datasets

import (
	"context"
	"fmt"

	"github.com/neurlang/convtrain/definition"
	"github.com/neurlang/convtrain/registry"
	"github.com/neurlang/convtrain/tensor"
)

// Input is the input pipeline contract the trainer drives
type Input interface {

	// MaybeDownloadAndExtract makes the data available under dataDir
	MaybeDownloadAndExtract(ctx context.Context, dataDir string) error

	// DistortedInputs returns a shuffled queue of distorted training batches
	DistortedInputs(dataDir string, batchSize int) (*Queue, error)

	// Inputs returns an undistorted queue over the test split if evalData, else the train split
	Inputs(evalData bool, dataDir string, batchSize int) (*Queue, error)

	// NumClasses is the number of labels
	NumClasses() int

	// Shape is the [height, width, channels] of one batched image
	Shape() []int
}

// Split selects the part of a dataset
type Split int

const (
	Train Split = iota
	Test
)

func (s Split) String() string {
	if s == Test {
		return "test"
	}
	return "train"
}

// Dataset is a downloadable collection of labelled images
type Dataset interface {
	MaybeDownloadAndExtract(ctx context.Context, dataDir string) error
	Open(dataDir string, split Split) (Source, error)
	NumClasses() int

	// Shape is the stored [height, width, channels]
	Shape() []int
}

// Source is an indexable split, safe for concurrent reads
type Source interface {
	Len() int
	Shape() []int

	// Example writes the pixels of example i into dst as 0..255 floats and returns its label
	Example(i int, dst []float32) int
}

// Memory is a Source held as bytes in memory
type Memory struct {
	shape  []int
	pixels []byte
	labels []int
}

// NewMemory wraps len(labels) images of shape [h, w, c] stored back to back in pixels
func NewMemory(shape []int, pixels []byte, labels []int) (*Memory, error) {
	if len(shape) != 3 {
		return nil, fmt.Errorf("NewMemory: shape %v is not [height, width, channels]", shape)
	}
	if len(pixels) != len(labels)*tensor.Size(shape) {
		return nil, fmt.Errorf("NewMemory: %d bytes for %d images of %v: %w", len(pixels), len(labels), shape, tensor.ErrShapeMismatch)
	}
	return &Memory{shape: append([]int(nil), shape...), pixels: pixels, labels: labels}, nil
}

// Len is the number of images
func (m *Memory) Len() int { return len(m.labels) }

// Shape is [height, width, channels] of every image
func (m *Memory) Shape() []int { return m.shape }

// Example converts image i to floats in dst and returns its label
func (m *Memory) Example(i int, dst []float32) int {
	n := tensor.Size(m.shape)
	for j, p := range m.pixels[i*n : (i+1)*n] {
		dst[j] = float32(p)
	}
	return m.labels[i]
}

// Factory constructs an input pipeline from its definition
type Factory func(f *definition.File) (Input, error)

// Kinds are the registered input kinds; the kind packages register themselves on import
var Kinds = registry.New[Factory]("input")

// Load reads an input definition file
func Load(path string) (Input, error) {
	f, err := definition.Read(path)
	if err != nil {
		return nil, err
	}
	factory, err := Kinds.Lookup(f.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	in, err := factory(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}
