// Package dropout implements inverted dropout, active only on the training pass
package dropout

import "fmt"
import "math/rand/v2"
import "sync"

import "github.com/neurlang/convtrain/layer"
import "github.com/neurlang/convtrain/tensor"

// Dropout zeroes inputs with probability 1-Keep and scales the rest by 1/Keep
type Dropout struct {
	name string
	keep float32

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a new dropout layer with keep probability in (0, 1]
func New(name string, keep float32) (*Dropout, error) {
	if keep <= 0 || keep > 1 {
		return nil, fmt.Errorf("New Dropout %s: Keep %v is outside (0, 1]", name, keep)
	}
	return &Dropout{name: name, keep: keep}, nil
}

func (d *Dropout) Name() string { return d.name }

func (d *Dropout) Build(in []int, init *layer.Initializer) ([]int, error) {
	d.rng = init.Source()
	return append([]int(nil), in...), nil
}

func (d *Dropout) Params() []*layer.Param { return nil }

func (d *Dropout) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, layer.Backward) {
	if !train {
		return x, nil
	}
	if d.keep == 1 {
		return x, func(grad *tensor.Tensor) *tensor.Tensor { return grad }
	}
	mask := make([]float32, x.Len())
	d.mu.Lock()
	for i := range mask {
		if d.rng.Float32() < d.keep {
			mask[i] = 1 / d.keep
		}
	}
	d.mu.Unlock()

	y := tensor.Zeros(x.Shape...)
	for i, v := range x.Data {
		y.Data[i] = v * mask[i]
	}
	return y, func(grad *tensor.Tensor) *tensor.Tensor {
		dx := tensor.Zeros(x.Shape...)
		for i, g := range grad.Data {
			dx.Data[i] = g * mask[i]
		}
		return dx
	}
}
