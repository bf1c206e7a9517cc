package layer

import "github.com/neurlang/convtrain/tensor"

// Param is a named trainable tensor with its accumulated gradient
type Param struct {
	Name  string
	Shape []int
	Value []float32
	Grad  []float32

	// Decay is the L2 weight decay coefficient; the loss gains Decay*sum(v*v)/2
	Decay float32
}

// NewParam allocates a zero parameter
func NewParam(name string, decay float32, shape ...int) *Param {
	n := tensor.Size(shape)
	return &Param{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Value: make([]float32, n),
		Grad:  make([]float32, n),
		Decay: decay,
	}
}

// ZeroGrad clears the accumulated gradient
func (p *Param) ZeroGrad() {
	clear(p.Grad)
}

// L2 returns Decay*sum(v*v)/2, the parameter's contribution to the loss
func (p *Param) L2() float32 {
	if p.Decay == 0 {
		return 0
	}
	return p.Decay * tensor.Dot(p.Value, p.Value) / 2
}

// ApplyDecay adds the gradient of L2 to Grad
func (p *Param) ApplyDecay() {
	if p.Decay == 0 {
		return
	}
	tensor.Axpy(p.Decay, p.Value, p.Grad)
}

// Count returns the total number of values over params
func Count(params []*Param) (n int) {
	for _, p := range params {
		n += len(p.Value)
	}
	return
}
