// Package full implements a fully connected layer over the flattened example
package full

import "fmt"

import "github.com/neurlang/convtrain/layer"
import "github.com/neurlang/convtrain/tensor"

// Full maps the flattened input onto Size outputs
type Full struct {
	name string
	size int

	// Stddev of the truncated normal weight init, 0 selects He init
	Stddev float32
	// BiasInit is the initial bias value
	BiasInit float32
	// Decay is the L2 weight decay of the weights
	Decay float32

	fanIn         int
	weights, bias *layer.Param
}

// MustNew creates a new full layer with size outputs
func MustNew(name string, size int) *Full {
	o, err := New(name, size)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new full layer with size outputs
func New(name string, size int) (o *Full, err error) {
	if size < 1 {
		return nil, fmt.Errorf("New Full %s: Size %d is lower than 1", name, size)
	}
	o = new(Full)
	o.name = name
	o.size = size
	return
}

// Name returns the layer name
func (f *Full) Name() string {
	return f.name
}

// Build allocates the weights for any input shape, which is flattened
func (f *Full) Build(in []int, init *layer.Initializer) ([]int, error) {
	f.fanIn = tensor.Size(in)
	if f.fanIn < 1 {
		return nil, fmt.Errorf("Full %s: empty input %v: %w", f.name, in, tensor.ErrShapeMismatch)
	}
	f.weights = layer.NewParam(f.name+"/weights", f.Decay, f.fanIn, f.size)
	f.bias = layer.NewParam(f.name+"/biases", 0, f.size)
	stddev := f.Stddev
	if stddev == 0 {
		stddev = layer.HeStddev(f.fanIn)
	}
	init.TruncatedNormal(f.weights.Value, stddev)
	layer.Constant(f.bias.Value, f.BiasInit)
	return []int{f.size}, nil
}

// Params returns the weights and the bias
func (f *Full) Params() []*layer.Param {
	return []*layer.Param{f.weights, f.bias}
}

// Forward computes x·W+b for x [N ...] into [N Size]
func (f *Full) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, layer.Backward) {
	n := x.Batch()
	y := tensor.Zeros(n, f.size)
	for i := 0; i < n; i++ {
		copy(y.Row(i), f.bias.Value)
	}
	tensor.Gemm(false, false, n, f.size, f.fanIn, 1, x.Data, f.weights.Value, 1, y.Data)
	if !train {
		return y, nil
	}
	return y, func(grad *tensor.Tensor) *tensor.Tensor {
		tensor.Gemm(true, false, f.fanIn, f.size, n, 1, x.Data, grad.Data, 1, f.weights.Grad)
		for i := 0; i < n; i++ {
			tensor.Axpy(1, grad.Row(i), f.bias.Grad)
		}
		dx := tensor.Zeros(x.Shape...)
		tensor.Gemm(false, true, n, f.fanIn, f.size, 1, grad.Data, f.weights.Value, 0, dx.Data)
		return dx
	}
}
