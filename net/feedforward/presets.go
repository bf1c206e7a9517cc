package feedforward

import "github.com/neurlang/convtrain/definition"

type preset struct {
	definition.Header
	Keep  float32 `toml:"keep"`  // dropout keep probability before the logits, 0 disables
	Decay float32 `toml:"decay"` // weight decay of the hidden full layers
}

func (p preset) withDropout(specs []LayerSpec) []LayerSpec {
	if p.Keep == 0 || p.Keep == 1 {
		return specs
	}
	last := len(specs) - 1
	return append(specs[:last:last], LayerSpec{Type: "dropout", Name: "dropout", Keep: p.Keep}, specs[last])
}

// newLeNet is the two convolution MNIST network
func newLeNet(f *definition.File, classes int) (*FeedforwardNetwork, error) {
	var p preset
	if err := f.Decode(&p); err != nil {
		return nil, err
	}
	return fromSpecs(f.Path, p.withDropout([]LayerSpec{
		{Type: "conv2d", Name: "conv1", Filters: 32, Size: 5, Stddev: 0.1, BiasInit: 0.1},
		{Type: "relu", Name: "relu1"},
		{Type: "maxpool2d", Name: "pool1", Size: 2},
		{Type: "conv2d", Name: "conv2", Filters: 64, Size: 5, Stddev: 0.1, BiasInit: 0.1},
		{Type: "relu", Name: "relu2"},
		{Type: "maxpool2d", Name: "pool2", Size: 2},
		{Type: "full", Name: "fc1", Units: 512, Stddev: 0.1, BiasInit: 0.1, Decay: p.Decay},
		{Type: "relu", Name: "relu3"},
		{Type: "full", Name: "softmax_linear", Stddev: 0.1},
	}), classes)
}

// newCifar10 is the two convolution, two hidden layer CIFAR-10 network
func newCifar10(f *definition.File, classes int) (*FeedforwardNetwork, error) {
	p := preset{Decay: 0.004}
	if err := f.Decode(&p); err != nil {
		return nil, err
	}
	return fromSpecs(f.Path, p.withDropout([]LayerSpec{
		{Type: "conv2d", Name: "conv1", Filters: 64, Size: 5, Stddev: 0.05},
		{Type: "relu", Name: "relu1"},
		{Type: "maxpool2d", Name: "pool1", Size: 3, Stride: 2},
		{Type: "conv2d", Name: "conv2", Filters: 64, Size: 5, Stddev: 0.05, BiasInit: 0.1},
		{Type: "relu", Name: "relu2"},
		{Type: "maxpool2d", Name: "pool2", Size: 3, Stride: 2},
		{Type: "full", Name: "local3", Units: 384, Stddev: 0.04, BiasInit: 0.1, Decay: p.Decay},
		{Type: "relu", Name: "relu3"},
		{Type: "full", Name: "local4", Units: 192, Stddev: 0.04, BiasInit: 0.1, Decay: p.Decay},
		{Type: "relu", Name: "relu4"},
		{Type: "full", Name: "softmax_linear", Stddev: 1.0 / 192},
	}), classes)
}
