package datasets

import (
	"fmt"
	"sync"
)

// Pipeline turns a Dataset into an Input; the opened splits are shared by all its queues
type Pipeline struct {
	Dataset
	Options

	mu      sync.Mutex
	sources map[Split]Source
	queues  int
}

// NewPipeline validates opts against the dataset
func NewPipeline(ds Dataset, opts Options) (*Pipeline, error) {
	if err := opts.Validate(ds.Shape()); err != nil {
		return nil, err
	}
	return &Pipeline{Dataset: ds, Options: opts, sources: make(map[Split]Source)}, nil
}

// MustNewPipeline is NewPipeline that panics on error
func MustNewPipeline(ds Dataset, opts Options) *Pipeline {
	p, err := NewPipeline(ds, opts)
	if err != nil {
		panic(err.Error())
	}
	return p
}

// Shape is the cropped image shape
func (p *Pipeline) Shape() []int {
	s := append([]int(nil), p.Dataset.Shape()...)
	if p.Crop > 0 {
		s[0], s[1] = p.Crop, p.Crop
	}
	return s
}

func (p *Pipeline) open(dataDir string, split Split) (Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if src, ok := p.sources[split]; ok {
		return src, nil
	}
	src, err := p.Dataset.Open(dataDir, split)
	if err != nil {
		return nil, fmt.Errorf("open %s split: %w", split, err)
	}
	if src.Len() == 0 {
		return nil, fmt.Errorf("open %s split: no examples", split)
	}
	p.sources[split] = src
	return src, nil
}

func (p *Pipeline) queue(name string, src Source, batchSize int, shuffle bool, t Transform) (*Queue, error) {
	p.mu.Lock()
	p.queues++
	seed := p.Seed + uint64(p.queues)
	p.mu.Unlock()
	return NewQueue(name, src, QueueConfig{
		BatchSize: batchSize,
		Shape:     p.Shape(),
		Shuffle:   shuffle,
		Transform: t,
		Threads:   p.Threads,
		Capacity:  p.Capacity,
		Seed:      seed,
	})
}

// DistortedInputs queues shuffled, randomly distorted batches of the training split
func (p *Pipeline) DistortedInputs(dataDir string, batchSize int) (*Queue, error) {
	src, err := p.open(dataDir, Train)
	if err != nil {
		return nil, err
	}
	return p.queue("distorted_inputs", src, batchSize, true, Distort(p.Distort))
}

// Inputs queues center cropped batches of the test split, or of the training split when
// evalData is false, in file order
func (p *Pipeline) Inputs(evalData bool, dataDir string, batchSize int) (*Queue, error) {
	split := Train
	if evalData {
		split = Test
	}
	src, err := p.open(dataDir, split)
	if err != nil {
		return nil, err
	}
	return p.queue(split.String()+"_inputs", src, batchSize, false, CenterCrop())
}
