package trainer

import (
	"github.com/neurlang/convtrain/datasets"
	"github.com/neurlang/convtrain/learning"
	"github.com/neurlang/convtrain/params"
)

// Components are the definitions loaded from the copies in model_files
type Components struct {
	Params    *params.Params
	Input     datasets.Input
	Optimizer learning.Optimizer
	Schedule  learning.Schedule
	Hyper     *learning.HyperParameters

	// NetworkFile is loaded by Build, once the input knows its classes
	NetworkFile string
}

// Load reads the params, input and optimizer copies of a training directory
func Load(trainDir string) (*Components, error) {
	p, err := params.Load(ModelFile(trainDir, ParamsFile))
	if err != nil {
		return nil, err
	}
	in, err := datasets.Load(ModelFile(trainDir, InputFile))
	if err != nil {
		return nil, err
	}
	opt, schedule, h, err := learning.Load(ModelFile(trainDir, OptimizerFile))
	if err != nil {
		return nil, err
	}
	return &Components{
		Params:      p,
		Input:       in,
		Optimizer:   opt,
		Schedule:    schedule,
		Hyper:       h,
		NetworkFile: ModelFile(trainDir, NetworkFile),
	}, nil
}
