package trainer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neurlang/convtrain/datasets"
	"github.com/neurlang/convtrain/layer"
	"github.com/neurlang/convtrain/learning"
	"github.com/neurlang/convtrain/net/feedforward"
	"github.com/neurlang/convtrain/params"
)

// Branch is an evaluation pass of the shared network over one queue
type Branch struct {
	Name     string
	Queue    *datasets.Queue
	Examples int // examples per evaluation
}

// Graph is the training pass and the evaluation passes over one set of parameters
type Graph struct {
	Network    *feedforward.FeedforwardNetwork
	Input      *datasets.Queue
	TrainOp    *learning.TrainOp
	GlobalStep *learning.GlobalStep

	Train      *Branch
	Validation *Branch // nil unless eval_validation is set
	Test       *Branch
}

// Build loads and builds the network, creates the input queues and the train op
func Build(c *Components, dataDir string) (*Graph, error) {
	p := c.Params
	net, err := feedforward.Load(c.NetworkFile, c.Input.NumClasses())
	if err != nil {
		return nil, err
	}
	if err := net.Build(c.Input.Shape(), c.Input.NumClasses(), layer.NewInitializer(p.Seed)); err != nil {
		return nil, fmt.Errorf("%s: %w", c.NetworkFile, err)
	}
	g := &Graph{Network: net, GlobalStep: new(learning.GlobalStep)}
	if err := g.inputs(c.Input, p, dataDir); err != nil {
		g.Close()
		return nil, err
	}
	g.TrainOp = learning.Training(c.Optimizer, net.Params(), g.GlobalStep, p.LearningRate, c.Schedule).
		ClipByGlobalNorm(c.Hyper.ClipNorm)
	return g, nil
}

// inputs creates the training queue and one queue per evaluation branch
func (g *Graph) inputs(in datasets.Input, p *params.Params, dataDir string) error {
	var err error
	if g.Input, err = in.DistortedInputs(dataDir, p.BatchSize); err != nil {
		return err
	}
	g.Input.Name = "input"

	branch := func(name string, examples int, q *datasets.Queue, err error) (*Branch, error) {
		if err != nil {
			return nil, err
		}
		q.Name = "eval_" + strings.ToLower(name)
		return &Branch{Name: name, Queue: q, Examples: examples}, nil
	}
	q, err := in.Inputs(false, dataDir, p.BatchSize)
	if g.Train, err = branch("Train", p.NumExamplesPerEpochForTrain, q, err); err != nil {
		return err
	}
	if p.EvalValidation {
		q, err = in.DistortedInputs(dataDir, p.BatchSize)
		if g.Validation, err = branch("Validation", p.NumExamplesPerEpochForTrain, q, err); err != nil {
			return err
		}
	}
	q, err = in.Inputs(true, dataDir, p.BatchSize)
	g.Test, err = branch("Test", p.NumExamplesPerEpochForEval, q, err)
	return err
}

// Branches returns the evaluation branches in evaluation order
func (g *Graph) Branches() []*Branch {
	out := []*Branch{g.Train}
	if g.Validation != nil {
		out = append(out, g.Validation)
	}
	return append(out, g.Test)
}

// Queues returns every input queue of the graph
func (g *Graph) Queues() []*datasets.Queue {
	var out []*datasets.Queue
	if g.Input != nil {
		out = append(out, g.Input)
	}
	for _, b := range []*Branch{g.Train, g.Validation, g.Test} {
		if b != nil {
			out = append(out, b.Queue)
		}
	}
	return out
}

// Variables are the tensors a checkpoint holds: the parameters and the optimizer slots
func (g *Graph) Variables() []*layer.Param {
	return append(append([]*layer.Param(nil), g.Network.Params()...), g.TrainOp.Variables()...)
}

// Close stops every queue runner
func (g *Graph) Close() error {
	var errs []error
	for _, q := range g.Queues() {
		errs = append(errs, q.Close())
	}
	return errors.Join(errs...)
}
