package learning

import "math"

import "github.com/neurlang/convtrain/layer"

type adagrad struct {
	epsilon float32
	acc     slots
}

func newAdagrad(h *HyperParameters) (Optimizer, error) {
	return &adagrad{epsilon: h.Epsilon, acc: slots{suffix: "Adagrad", init: h.InitialAccumulator}}, nil
}

func (a *adagrad) Slots(params []*layer.Param) []*layer.Param {
	return a.acc.create(params)
}

// Update accumulates squared gradients and scales each step by their root
func (a *adagrad) Update(params []*layer.Param, lr float32, _ int64) {
	for _, p := range params {
		acc := a.acc.get(p).Value
		for i, g := range p.Grad {
			acc[i] += g * g
			p.Value[i] -= lr * g / (float32(math.Sqrt(float64(acc[i]))) + a.epsilon)
		}
	}
}
