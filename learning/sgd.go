package learning

import "github.com/neurlang/convtrain/layer"
import "github.com/neurlang/convtrain/tensor"

type sgd struct{}

func newSGD(*HyperParameters) (Optimizer, error) {
	return sgd{}, nil
}

func (sgd) Slots([]*layer.Param) []*layer.Param { return nil }

// Update applies v -= lr*g
func (sgd) Update(params []*layer.Param, lr float32, _ int64) {
	for _, p := range params {
		tensor.Axpy(-lr, p.Grad, p.Value)
	}
}
