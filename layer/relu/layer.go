// Package relu implements the rectified linear activation
package relu

import "github.com/neurlang/convtrain/layer"
import "github.com/neurlang/convtrain/tensor"

// ReLU computes max(x, 0) elementwise
type ReLU struct {
	name string
}

// New creates a new ReLU layer
func New(name string) *ReLU {
	return &ReLU{name: name}
}

func (r *ReLU) Name() string { return r.name }

func (r *ReLU) Build(in []int, _ *layer.Initializer) ([]int, error) {
	return append([]int(nil), in...), nil
}

func (r *ReLU) Params() []*layer.Param { return nil }

func (r *ReLU) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, layer.Backward) {
	y := tensor.Zeros(x.Shape...)
	for i, v := range x.Data {
		if v > 0 {
			y.Data[i] = v
		}
	}
	if !train {
		return y, nil
	}
	return y, func(grad *tensor.Tensor) *tensor.Tensor {
		dx := tensor.Zeros(x.Shape...)
		for i, v := range x.Data {
			if v > 0 {
				dx.Data[i] = grad.Data[i]
			}
		}
		return dx
	}
}
