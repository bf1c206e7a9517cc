package learning

import "fmt"
import "math"

import "github.com/neurlang/convtrain/layer"

type adam struct {
	beta1, beta2, epsilon float32
	m, v                  slots
}

func newAdam(h *HyperParameters) (Optimizer, error) {
	if h.Beta1 < 0 || h.Beta1 >= 1 || h.Beta2 < 0 || h.Beta2 >= 1 {
		return nil, fmt.Errorf("adam betas %v, %v outside [0, 1)", h.Beta1, h.Beta2)
	}
	return &adam{
		beta1:   h.Beta1,
		beta2:   h.Beta2,
		epsilon: h.Epsilon,
		m:       slots{suffix: "Adam"},
		v:       slots{suffix: "Adam_1"},
	}, nil
}

func (a *adam) Slots(params []*layer.Param) []*layer.Param {
	return append(a.m.create(params), a.v.create(params)...)
}

// Update applies the bias corrected Adam step for update count t
func (a *adam) Update(params []*layer.Param, lr float32, t int64) {
	c1 := 1 - math.Pow(float64(a.beta1), float64(t))
	c2 := 1 - math.Pow(float64(a.beta2), float64(t))
	step := lr * float32(math.Sqrt(c2)/c1)
	for _, p := range params {
		m := a.m.get(p).Value
		v := a.v.get(p).Value
		for i, g := range p.Grad {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			p.Value[i] -= step * m[i] / (float32(math.Sqrt(float64(v[i]))) + a.epsilon)
		}
	}
}
