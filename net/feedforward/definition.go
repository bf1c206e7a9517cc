package feedforward

import "fmt"

import "github.com/neurlang/convtrain/definition"
import "github.com/neurlang/convtrain/layer"
import "github.com/neurlang/convtrain/layer/conv2d"
import "github.com/neurlang/convtrain/layer/dropout"
import "github.com/neurlang/convtrain/layer/full"
import "github.com/neurlang/convtrain/layer/maxpool2d"
import "github.com/neurlang/convtrain/layer/relu"
import "github.com/neurlang/convtrain/registry"

// Factory turns a network definition file into an unbuilt network ending in classes logits
type Factory func(f *definition.File, classes int) (*FeedforwardNetwork, error)

// Kinds are the registered network definition kinds
var Kinds = registry.New[Factory]("network")

func init() {
	Kinds.Register("feedforward", newExplicit)
	Kinds.Register("lenet", newLeNet)
	Kinds.Register("cifar10", newCifar10)
}

// Load reads a network definition file
func Load(path string, classes int) (*FeedforwardNetwork, error) {
	f, err := definition.Read(path)
	if err != nil {
		return nil, err
	}
	factory, err := Kinds.Lookup(f.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return factory(f, classes)
}

// LayerSpec describes one layer of an explicit network definition
type LayerSpec struct {
	Type    string `toml:"type"` // conv2d, maxpool2d, full, relu, dropout
	Name    string `toml:"name"`
	Filters int    `toml:"filters"`
	Size    int    `toml:"size"`
	Stride  int    `toml:"stride"`
	Padding string `toml:"padding"`

	// Units of a full layer; 0 on the last layer means one unit per class
	Units int     `toml:"units"`
	Keep  float32 `toml:"keep"`

	Stddev   float32 `toml:"stddev"`
	BiasInit float32 `toml:"bias_init"`
	Decay    float32 `toml:"decay"`
}

// Layer constructs the layer; last marks the final layer of the network
func (s LayerSpec) Layer(classes int, last bool) (layer.Layer, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("%s layer without a name", s.Type)
	}
	stride := s.Stride
	if stride == 0 {
		stride = 1
	}
	switch s.Type {
	case "conv2d":
		pad, err := layer.ParsePadding(s.Padding)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", s.Name, err)
		}
		c, err := conv2d.New(s.Name, s.Filters, s.Size, stride, pad)
		if err != nil {
			return nil, err
		}
		c.Stddev, c.BiasInit, c.Decay = s.Stddev, s.BiasInit, s.Decay
		return c, nil
	case "maxpool2d":
		pad, err := layer.ParsePadding(s.Padding)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", s.Name, err)
		}
		if s.Stride == 0 {
			stride = s.Size
		}
		return maxpool2d.New(s.Name, s.Size, stride, pad)
	case "full":
		units := s.Units
		if units == 0 && last {
			units = classes
		}
		f, err := full.New(s.Name, units)
		if err != nil {
			return nil, err
		}
		f.Stddev, f.BiasInit, f.Decay = s.Stddev, s.BiasInit, s.Decay
		return f, nil
	case "relu":
		return relu.New(s.Name), nil
	case "dropout":
		return dropout.New(s.Name, s.Keep)
	}
	return nil, fmt.Errorf("layer %s: unknown type %q", s.Name, s.Type)
}

type explicit struct {
	definition.Header
	Layers []LayerSpec `toml:"layers"`
}

func newExplicit(f *definition.File, classes int) (*FeedforwardNetwork, error) {
	var def explicit
	if err := f.Decode(&def); err != nil {
		return nil, err
	}
	return fromSpecs(f.Path, def.Layers, classes)
}

func fromSpecs(path string, specs []LayerSpec, classes int) (*FeedforwardNetwork, error) {
	var net FeedforwardNetwork
	for i, s := range specs {
		l, err := s.Layer(classes, i == len(specs)-1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		net.NewLayer(l)
	}
	return &net, nil
}
