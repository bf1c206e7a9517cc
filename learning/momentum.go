package learning

import "fmt"

import "github.com/neurlang/convtrain/layer"

type momentum struct {
	mu       float32
	nesterov bool
	velocity slots
}

func newMomentum(h *HyperParameters) (Optimizer, error) {
	if h.Momentum < 0 || h.Momentum >= 1 {
		return nil, fmt.Errorf("momentum %v outside [0, 1)", h.Momentum)
	}
	return &momentum{mu: h.Momentum, nesterov: h.Nesterov, velocity: slots{suffix: "Momentum"}}, nil
}

func (m *momentum) Slots(params []*layer.Param) []*layer.Param {
	return m.velocity.create(params)
}

// Update accumulates a = mu*a + g and applies v -= lr*a, or v -= lr*(g + mu*a) with Nesterov
func (m *momentum) Update(params []*layer.Param, lr float32, _ int64) {
	for _, p := range params {
		a := m.velocity.get(p).Value
		for i, g := range p.Grad {
			a[i] = m.mu*a[i] + g
			if m.nesterov {
				p.Value[i] -= lr * (g + m.mu*a[i])
			} else {
				p.Value[i] -= lr * a[i]
			}
		}
	}
}
