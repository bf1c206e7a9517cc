// Package feedforward implements a feedforward network type: an ordered stack of layers
// sharing one set of parameters between the training pass and every evaluation pass
package feedforward

import "fmt"
import "math"

import "github.com/neurlang/convtrain/layer"
import "github.com/neurlang/convtrain/tensor"

// FeedforwardNetwork is the feedforward network
type FeedforwardNetwork struct {
	layers  []layer.Layer
	shapes  [][]int
	params  []*layer.Param
	input   []int
	classes int
}

// NewLayer appends a layer to the end of the network. Layers must be added before Build.
func (f *FeedforwardNetwork) NewLayer(l layer.Layer) {
	f.layers = append(f.layers, l)
}

// Len returns the number of layers
func (f *FeedforwardNetwork) Len() int {
	return len(f.layers)
}

// Build allocates every parameter for examples of the given [H W C] shape and checks
// that the network ends in classes logits.
func (f *FeedforwardNetwork) Build(input []int, classes int, init *layer.Initializer) error {
	if len(f.layers) == 0 {
		return fmt.Errorf("feedforward: network has no layers")
	}
	seen := make(map[string]bool)
	shape := append([]int(nil), input...)
	f.shapes = f.shapes[:0]
	f.params = f.params[:0]
	for _, l := range f.layers {
		if seen[l.Name()] {
			return fmt.Errorf("feedforward: duplicate layer name %q", l.Name())
		}
		seen[l.Name()] = true
		out, err := l.Build(shape, init)
		if err != nil {
			return err
		}
		f.shapes = append(f.shapes, out)
		f.params = append(f.params, l.Params()...)
		shape = out
	}
	if tensor.Size(shape) != classes {
		return fmt.Errorf("feedforward: network outputs %v, expected %d logits: %w", shape, classes, tensor.ErrShapeMismatch)
	}
	f.input = append([]int(nil), input...)
	f.classes = classes
	return nil
}

// Params returns every trainable parameter in layer order
func (f *FeedforwardNetwork) Params() []*layer.Param {
	return f.params
}

// Classes returns the number of output logits
func (f *FeedforwardNetwork) Classes() int {
	return f.classes
}

// Inference computes the logits [N classes] of an image batch. With train set it also
// returns the backward pass through the whole stack.
func (f *FeedforwardNetwork) Inference(images *tensor.Tensor, train bool) (*tensor.Tensor, layer.Backward) {
	var backs []layer.Backward
	x := images
	for _, l := range f.layers {
		var back layer.Backward
		x, back = l.Forward(x, train)
		if train {
			backs = append(backs, back)
		}
	}
	logits, _ := x.Reshape(x.Batch(), f.classes)
	if !train {
		return logits, nil
	}
	return logits, func(grad *tensor.Tensor) *tensor.Tensor {
		for i := len(backs) - 1; i >= 0; i-- {
			if backs[i] != nil {
				grad = backs[i](grad)
			}
		}
		return grad
	}
}

// Loss returns the mean softmax cross-entropy of logits against labels plus the L2
// decay of all parameters, and the gradient of the cross-entropy with respect to logits.
// The decay gradient is added by Param.ApplyDecay when the update is applied.
func (f *FeedforwardNetwork) Loss(logits *tensor.Tensor, labels []int) (float32, *tensor.Tensor) {
	n := logits.Batch()
	grad := tensor.Zeros(logits.Shape...)
	var xent float64
	for i := 0; i < n; i++ {
		row := logits.Row(i)
		g := grad.Row(i)
		top := row[Argmax(row)]
		var sum float64
		for j, v := range row {
			e := math.Exp(float64(v - top))
			g[j] = float32(e)
			sum += e
		}
		for j := range g {
			g[j] = float32(float64(g[j]) / sum / float64(n))
		}
		g[labels[i]] -= 1 / float32(n)
		xent += math.Log(sum) - float64(row[labels[i]]-top)
	}
	loss := float32(xent / float64(n))
	for _, p := range f.params {
		loss += p.L2()
	}
	return loss, grad
}

// Evaluation returns how many examples have the label as their top-1 prediction
func (f *FeedforwardNetwork) Evaluation(logits *tensor.Tensor, labels []int) (correct int) {
	for i := 0; i < logits.Batch(); i++ {
		if Argmax(logits.Row(i)) == labels[i] {
			correct++
		}
	}
	return
}

// Argmax returns the index of the first maximum
func Argmax(v []float32) (best int) {
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return
}
