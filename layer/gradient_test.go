package layer_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/neurlang/convtrain/layer"
	"github.com/neurlang/convtrain/layer/conv2d"
	"github.com/neurlang/convtrain/layer/dropout"
	"github.com/neurlang/convtrain/layer/full"
	"github.com/neurlang/convtrain/layer/maxpool2d"
	"github.com/neurlang/convtrain/layer/relu"
	"github.com/neurlang/convtrain/tensor"
)

// distinctInput returns values at least 0.01 apart and at least 0.005 away from zero,
// so that finite differences never flip a max or a relu.
func distinctInput(rng *rand.Rand, shape ...int) *tensor.Tensor {
	x := tensor.Zeros(shape...)
	perm := rng.Perm(x.Len())
	for i, p := range perm {
		x.Data[i] = float32(p-x.Len()/2)*0.01 + 0.005
	}
	return x
}

func weighted(y, r *tensor.Tensor) float64 {
	var s float64
	for i := range y.Data {
		s += float64(y.Data[i]) * float64(r.Data[i])
	}
	return s
}

func checkGradients(t *testing.T, l layer.Layer, inShape []int) {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	in := append([]int{2}, inShape...)
	if _, err := l.Build(inShape, layer.NewInitializer(3)); err != nil {
		t.Fatal(err)
	}
	x := distinctInput(rng, in...)
	y, back := l.Forward(x, true)
	r := tensor.Zeros(y.Shape...)
	for i := range r.Data {
		r.Data[i] = rng.Float32()*2 - 1
	}
	dx := back(r)

	const eps = 1e-3
	numeric := func(what string, v []float32, grad []float32) {
		for _, i := range []int{0, len(v) / 3, len(v) / 2, len(v) - 1} {
			old := v[i]
			v[i] = old + eps
			yp, _ := l.Forward(x, false)
			v[i] = old - eps
			ym, _ := l.Forward(x, false)
			v[i] = old
			num := (weighted(yp, r) - weighted(ym, r)) / (2 * eps)
			if math.Abs(num-float64(grad[i])) > 2e-2*math.Max(1, math.Abs(num)) {
				t.Errorf("%s %s[%d]: analytic %v numeric %v", l.Name(), what, i, grad[i], num)
			}
		}
	}
	numeric("input", x.Data, dx.Data)
	for _, p := range l.Params() {
		numeric(p.Name, p.Value, p.Grad)
	}
}

func TestConv2DGradients(t *testing.T) {
	checkGradients(t, conv2d.MustNew("conv", 3, 3, 1, layer.Same), []int{5, 5, 2})
	checkGradients(t, conv2d.MustNew("strided", 2, 3, 2, layer.Valid), []int{7, 6, 3})
}

func TestMaxPool2DGradients(t *testing.T) {
	checkGradients(t, maxpool2d.MustNew("pool", 3, 2, layer.Same), []int{5, 5, 2})
	checkGradients(t, maxpool2d.MustNew("pool2", 2, 2, layer.Valid), []int{4, 6, 1})
}

func TestFullGradients(t *testing.T) {
	checkGradients(t, full.MustNew("fc", 4), []int{3, 2, 2})
}

func TestReLUGradients(t *testing.T) {
	checkGradients(t, relu.New("relu"), []int{4, 4, 1})
}

func TestDropoutEvalIsIdentity(t *testing.T) {
	d, err := dropout.New("drop", 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Build([]int{10}, layer.NewInitializer(1)); err != nil {
		t.Fatal(err)
	}
	x := distinctInput(rand.New(rand.NewPCG(4, 5)), 3, 10)
	y, back := d.Forward(x, false)
	if y != x || back != nil {
		t.Errorf("evaluation pass must return the input unchanged")
	}
	y, _ = d.Forward(x, true)
	var zeros int
	for i, v := range y.Data {
		switch v {
		case 0:
			zeros++
		case 2 * x.Data[i]:
		default:
			t.Fatalf("value %v is neither dropped nor scaled from %v", v, x.Data[i])
		}
	}
	if zeros == 0 || zeros == y.Len() {
		t.Errorf("dropped %d of %d values", zeros, y.Len())
	}
}

func TestConv2DShape(t *testing.T) {
	c := conv2d.MustNew("conv", 8, 5, 1, layer.Same)
	out, err := c.Build([]int{28, 28, 1}, layer.NewInitializer(1))
	if err != nil {
		t.Fatal(err)
	}
	if !tensor.SameShape(out, []int{28, 28, 8}) {
		t.Errorf("out shape %v", out)
	}
	if _, err := conv2d.MustNew("big", 1, 9, 1, layer.Valid).Build([]int{4, 4, 1}, layer.NewInitializer(1)); err == nil {
		t.Errorf("expected an error for a kernel larger than the input")
	}
	if _, err := conv2d.New("bad", 0, 3, 1, layer.Same); err == nil {
		t.Errorf("expected an error for zero filters")
	}
}
