package feedforward

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neurlang/convtrain/layer"
	"github.com/neurlang/convtrain/registry"
	"github.com/neurlang/convtrain/tensor"
)

func writeDef(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "network.toml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const small = `
kind = "feedforward"

[[layers]]
type = "conv2d"
name = "conv1"
filters = 4
size = 3

[[layers]]
type = "relu"
name = "relu1"

[[layers]]
type = "maxpool2d"
name = "pool1"
size = 2

[[layers]]
type = "full"
name = "softmax_linear"
decay = 0.01
`

func buildSmall(t *testing.T) *FeedforwardNetwork {
	t.Helper()
	net, err := Load(writeDef(t, small), 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := net.Build([]int{6, 6, 1}, 3, layer.NewInitializer(7)); err != nil {
		t.Fatal(err)
	}
	return net
}

func TestLoadExplicit(t *testing.T) {
	net := buildSmall(t)
	if net.Len() != 4 || len(net.Params()) != 4 {
		t.Fatalf("got %d layers, %d params", net.Len(), len(net.Params()))
	}
	if got := net.Params()[2].Name; got != "softmax_linear/weights" {
		t.Errorf("param name %q", got)
	}
	if s := net.Summary(); !strings.Contains(s, "pool1") || !strings.Contains(s, "[3 3 4]") {
		t.Errorf("summary misses layers:\n%s", s)
	}
}

func TestLoadUnknownKind(t *testing.T) {
	_, err := Load(writeDef(t, `kind = "lenet5"`), 10)
	if !errors.Is(err, registry.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestBuildChecksClasses(t *testing.T) {
	net, err := Load(writeDef(t, small), 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := net.Build([]int{6, 6, 1}, 5, layer.NewInitializer(1)); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestPresetsBuild(t *testing.T) {
	for _, c := range []struct {
		def   string
		input []int
	}{
		{"kind = \"lenet\"\nkeep = 0.5\n", []int{28, 28, 1}},
		{"kind = \"cifar10\"\n", []int{24, 24, 3}},
	} {
		net, err := Load(writeDef(t, c.def), 10)
		if err != nil {
			t.Fatal(err)
		}
		if err := net.Build(c.input, 10, layer.NewInitializer(1)); err != nil {
			t.Errorf("%s: %v", c.def, err)
		}
	}
}

func TestLossAndEvaluation(t *testing.T) {
	net := buildSmall(t)
	logits := tensor.MustNew([]float32{
		2, 1, 0,
		0, 0, 5,
	}, 2, 3)
	loss, grad := net.Loss(logits, []int{0, 1})

	var decay float32
	for _, p := range net.Params() {
		decay += p.L2()
	}
	lse := func(a, b, c float64) float64 { return math.Log(math.Exp(a) + math.Exp(b) + math.Exp(c)) }
	want := ((lse(2, 1, 0) - 2) + (lse(0, 0, 5) - 0)) / 2
	if math.Abs(float64(loss-decay)-want) > 1e-5 {
		t.Errorf("cross-entropy %v, want %v", loss-decay, want)
	}
	for i := 0; i < 2; i++ {
		var sum float32
		for _, g := range grad.Row(i) {
			sum += g
		}
		if math.Abs(float64(sum)) > 1e-6 {
			t.Errorf("softmax gradient row %d sums to %v", i, sum)
		}
	}
	if got := net.Evaluation(logits, []int{0, 1}); got != 1 {
		t.Errorf("Evaluation = %d, want 1", got)
	}
}

func TestInferenceBackwardShapes(t *testing.T) {
	net := buildSmall(t)
	x := tensor.Zeros(2, 6, 6, 1)
	for i := range x.Data {
		x.Data[i] = float32(i%7) / 7
	}
	logits, back := net.Inference(x, true)
	if !tensor.SameShape(logits.Shape, []int{2, 3}) {
		t.Fatalf("logits %v", logits.Shape)
	}
	_, grad := net.Loss(logits, []int{1, 2})
	dx := back(grad)
	if !tensor.SameShape(dx.Shape, x.Shape) {
		t.Errorf("input gradient %v", dx.Shape)
	}
	var nonzero bool
	for _, v := range net.Params()[0].Grad {
		nonzero = nonzero || v != 0
	}
	if !nonzero {
		t.Errorf("conv1 received no gradient")
	}

	eval, back := net.Inference(x, false)
	if back != nil {
		t.Errorf("evaluation pass must not return a backward pass")
	}
	for i := range eval.Data {
		if eval.Data[i] != logits.Data[i] {
			t.Fatalf("evaluation and training logits differ at %d", i)
		}
	}
}
