// Package tensor implements the dense float32 tensor used by layers and input batches
package tensor

import "fmt"
import "errors"

// ErrShapeMismatch is returned when two tensors or a tensor and a shape disagree
var ErrShapeMismatch = errors.New("shape mismatch")

// Tensor is a dense row-major float32 tensor. Images are stored NHWC.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Size returns the number of elements described by shape
func Size(shape []int) (n int) {
	n = 1
	for _, d := range shape {
		n *= d
	}
	return
}

// New wraps data into a tensor of the given shape
func New(data []float32, shape ...int) (*Tensor, error) {
	if Size(shape) != len(data) {
		return nil, fmt.Errorf("New Tensor: %d values for shape %v: %w", len(data), shape, ErrShapeMismatch)
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// MustNew wraps data into a tensor of the given shape, panicking on mismatch
func MustNew(data []float32, shape ...int) *Tensor {
	t, err := New(data, shape...)
	if err != nil {
		panic(err.Error())
	}
	return t
}

// Zeros allocates a zero tensor of the given shape
func Zeros(shape ...int) *Tensor {
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, Size(shape))}
}

// Len returns the number of elements
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Dim returns the size of dimension i; negative i counts from the end
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.Shape)
	}
	return t.Shape[i]
}

// Batch returns the size of the leading dimension
func (t *Tensor) Batch() int {
	if len(t.Shape) == 0 {
		return 1
	}
	return t.Shape[0]
}

// Stride returns the number of elements of one leading-dimension slice
func (t *Tensor) Stride() int {
	if len(t.Shape) == 0 {
		return 1
	}
	return Size(t.Shape[1:])
}

// Row returns the values of the n-th leading-dimension slice, sharing storage
func (t *Tensor) Row(n int) []float32 {
	s := t.Stride()
	return t.Data[n*s : (n+1)*s]
}

// Reshape returns a view with a different shape over the same data
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if Size(shape) != len(t.Data) {
		return nil, fmt.Errorf("Reshape %v to %v: %w", t.Shape, shape, ErrShapeMismatch)
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: t.Data}, nil
}

// Clone deep-copies the tensor
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: append([]int(nil), t.Shape...), Data: append([]float32(nil), t.Data...)}
}

// SameShape reports whether a and b have identical shapes
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.Shape)
}
