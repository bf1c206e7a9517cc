// Package maxpool2d implements a 2D max pooling layer over NHWC batches
package maxpool2d

import "fmt"
import "math"

import "github.com/neurlang/convtrain/layer"
import "github.com/neurlang/convtrain/parallel"
import "github.com/neurlang/convtrain/tensor"

// MaxPool2D takes the maximum over Size×Size windows of every channel
type MaxPool2D struct {
	name         string
	size, stride int
	padding      layer.Padding

	in, out    []int
	padH, padW int
}

// MustNew creates a new MaxPool2D layer with window size, stride and padding
func MustNew(name string, size, stride int, padding layer.Padding) *MaxPool2D {
	o, err := New(name, size, stride, padding)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new MaxPool2D layer with window size, stride and padding
func New(name string, size, stride int, padding layer.Padding) (o *MaxPool2D, err error) {
	if size < 1 {
		return nil, fmt.Errorf("New MaxPool2D %s: Size %d is lower than 1", name, size)
	}
	if stride < 1 {
		return nil, fmt.Errorf("New MaxPool2D %s: Stride %d is lower than 1", name, stride)
	}
	o = new(MaxPool2D)
	o.name = name
	o.size = size
	o.stride = stride
	o.padding = padding
	return
}

// Name returns the layer name
func (m *MaxPool2D) Name() string {
	return m.name
}

// Build computes the pooled shape of an [H, W, C] input
func (m *MaxPool2D) Build(in []int, _ *layer.Initializer) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("MaxPool2D %s: expected [H W C] input, got %v: %w", m.name, in, tensor.ErrShapeMismatch)
	}
	oh, ph := layer.Window(in[0], m.size, m.stride, m.padding)
	ow, pw := layer.Window(in[1], m.size, m.stride, m.padding)
	if oh == 0 || ow == 0 {
		return nil, fmt.Errorf("MaxPool2D %s: input %v smaller than window %d: %w", m.name, in, m.size, tensor.ErrShapeMismatch)
	}
	m.in = append([]int(nil), in...)
	m.out = []int{oh, ow, in[2]}
	m.padH, m.padW = ph, pw
	return m.out, nil
}

// Params returns nil, pooling has no parameters
func (m *MaxPool2D) Params() []*layer.Param {
	return nil
}

// Forward pools x [N H W C] into [N OH OW C]
func (m *MaxPool2D) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, layer.Backward) {
	n := x.Batch()
	y := tensor.Zeros(n, m.out[0], m.out[1], m.out[2])
	var argmax []int32
	if train {
		argmax = make([]int32, y.Len())
	}
	parallel.ForEach(n, 0, func(i int) {
		var arg []int32
		if train {
			arg = argmax[i*y.Stride() : (i+1)*y.Stride()]
		}
		m.pool(x.Row(i), y.Row(i), arg)
	})
	if !train {
		return y, nil
	}
	return y, func(grad *tensor.Tensor) *tensor.Tensor {
		dx := tensor.Zeros(x.Shape...)
		parallel.ForEach(n, 0, func(i int) {
			g := grad.Row(i)
			d := dx.Row(i)
			for j, a := range argmax[i*y.Stride() : (i+1)*y.Stride()] {
				d[a] += g[j]
			}
		})
		return dx
	}
}

func (m *MaxPool2D) pool(img, out []float32, arg []int32) {
	h, w, ch := m.in[0], m.in[1], m.in[2]
	for oy := 0; oy < m.out[0]; oy++ {
		for ox := 0; ox < m.out[1]; ox++ {
			for c := 0; c < ch; c++ {
				best := float32(math.Inf(-1))
				bestAt := -1
				for ky := 0; ky < m.size; ky++ {
					y := oy*m.stride + ky - m.padH
					if y < 0 || y >= h {
						continue
					}
					for kx := 0; kx < m.size; kx++ {
						x := ox*m.stride + kx - m.padW
						if x < 0 || x >= w {
							continue
						}
						at := (y*w+x)*ch + c
						if bestAt < 0 || img[at] > best {
							best, bestAt = img[at], at
						}
					}
				}
				o := (oy*m.out[1]+ox)*ch + c
				out[o] = best
				if arg != nil {
					arg[o] = int32(bestAt)
				}
			}
		}
	}
}
