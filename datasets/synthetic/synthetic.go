// Package synthetic implements the synthetic input kind: procedurally drawn stripe patterns,
// one orientation and width per class. It needs no download and is deterministic for a seed.
package synthetic

import "context"
import "fmt"
import "math/rand/v2"

import "github.com/neurlang/convtrain/datasets"
import "github.com/neurlang/convtrain/definition"

// Config is the synthetic input definition
type Config struct {
	datasets.Options

	Size          int `toml:"size"`
	Channels      int `toml:"channels"`
	Classes       int `toml:"classes"`
	TrainExamples int `toml:"train_examples"`
	TestExamples  int `toml:"test_examples"`
	Noise         int `toml:"noise"` // max absolute pixel noise
}

// Synthetic is the generated dataset
type Synthetic struct {
	Config
}

func init() {
	datasets.Kinds.Register("synthetic", New)
}

// Defaults is the configuration before the definition file is applied
func Defaults() Config {
	c := Config{
		Options:       datasets.DefaultOptions(),
		Size:          16,
		Channels:      1,
		Classes:       4,
		TrainExamples: 1024,
		TestExamples:  256,
		Noise:         32,
	}
	c.Distort.Flip = false
	return c
}

// New builds the synthetic pipeline from its definition
func New(f *definition.File) (datasets.Input, error) {
	c := Defaults()
	if err := f.Decode(&c); err != nil {
		return nil, err
	}
	return NewPipeline(c)
}

// NewPipeline builds the pipeline from a configuration
func NewPipeline(c Config) (*datasets.Pipeline, error) {
	switch {
	case c.Size < 2:
		return nil, fmt.Errorf("synthetic: size must be at least 2, got %d", c.Size)
	case c.Channels < 1:
		return nil, fmt.Errorf("synthetic: channels must be positive, got %d", c.Channels)
	case c.Classes < 2 || (c.Classes+1)/2 > c.Size/2:
		return nil, fmt.Errorf("synthetic: %d classes do not fit %dx%d images", c.Classes, c.Size, c.Size)
	case c.TrainExamples < 1 || c.TestExamples < 1:
		return nil, fmt.Errorf("synthetic: example counts must be positive")
	}
	return datasets.NewPipeline(&Synthetic{Config: c}, c.Options)
}

func (s *Synthetic) NumClasses() int { return s.Classes }
func (s *Synthetic) Shape() []int    { return []int{s.Size, s.Size, s.Channels} }

func (s *Synthetic) MaybeDownloadAndExtract(context.Context, string) error { return nil }

// Open draws the examples of a split; example i has label i mod Classes
func (s *Synthetic) Open(_ string, split datasets.Split) (datasets.Source, error) {
	n := s.TrainExamples
	if split == datasets.Test {
		n = s.TestExamples
	}
	rng := rand.New(rand.NewPCG(s.Seed, uint64(split)+1))
	size := s.Size * s.Size * s.Channels
	pixels := make([]byte, n*size)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i % s.Classes
		s.draw(rng, labels[i], pixels[i*size:(i+1)*size])
	}
	return datasets.NewMemory(s.Shape(), pixels, labels)
}

// draw paints stripes: even classes horizontal, odd vertical, width 1 + class/2, at a
// random phase, plus noise
func (s *Synthetic) draw(rng *rand.Rand, class int, dst []byte) {
	width := 1 + class/2
	phase := rng.IntN(2 * width)
	for y := 0; y < s.Size; y++ {
		for x := 0; x < s.Size; x++ {
			coord := y
			if class%2 == 1 {
				coord = x
			}
			v := 32
			if ((coord+phase)/width)%2 == 0 {
				v = 224
			}
			for c := 0; c < s.Channels; c++ {
				p := v
				if s.Noise > 0 {
					p += rng.IntN(2*s.Noise+1) - s.Noise
				}
				dst[(y*s.Size+x)*s.Channels+c] = byte(min(max(p, 0), 255))
			}
		}
	}
}
