// Package params holds the training hyperparameters read from the params file
package params

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/neurlang/convtrain/definition"
)

// DefaultConfig is the params file used when no --config is given
const DefaultConfig = "example_params.toml"

// Params are the hyperparameters and the paths of the other three definition files
type Params struct {
	BatchSize    int     `toml:"batch_size"`
	LearningRate float64 `toml:"learning_rate"`
	MaxSteps     int     `toml:"max_steps"`

	NumExamplesPerEpochForTrain int `toml:"num_examples_per_epoch_for_train"`
	NumExamplesPerEpochForEval  int `toml:"num_examples_per_epoch_for_eval"`

	InputFile   string `toml:"input_file"`
	NetworkFile string `toml:"network_file"`
	OptFile     string `toml:"opt_file"`

	LogEvery        int    `toml:"log_every"`        // default 100
	CheckpointEvery int    `toml:"checkpoint_every"` // default 1000
	EvalValidation  bool   `toml:"eval_validation"`  // evaluate the distorted train branch too
	MaxToKeep       int    `toml:"max_to_keep"`      // default 5
	CheckpointDType string `toml:"checkpoint_dtype"` // F32, F16 or BF16
	Resume          bool   `toml:"resume"`           // continue from the latest checkpoint
	Seed            uint64 `toml:"seed"`
	Threads         int    `toml:"threads"` // 0 = physical cores

	dir string
}

// Load reads and validates a params file
func Load(path string) (*Params, error) {
	f, err := definition.Read(path)
	if err != nil {
		return nil, err
	}
	p := &Params{
		LogEvery:        100,
		CheckpointEvery: 1000,
		MaxToKeep:       5,
		CheckpointDType: "F32",
		Seed:            1,
	}
	if err := f.Decode(p); err != nil {
		return nil, err
	}
	p.dir = filepath.Dir(path)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate reports every missing or out of range setting
func (p *Params) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("batch_size", p.BatchSize)
	positive("max_steps", p.MaxSteps)
	positive("num_examples_per_epoch_for_train", p.NumExamplesPerEpochForTrain)
	positive("num_examples_per_epoch_for_eval", p.NumExamplesPerEpochForEval)
	positive("log_every", p.LogEvery)
	positive("checkpoint_every", p.CheckpointEvery)
	positive("max_to_keep", p.MaxToKeep)
	if p.BatchSize > 0 {
		if p.NumExamplesPerEpochForTrain > 0 && p.NumExamplesPerEpochForTrain < p.BatchSize {
			errs = append(errs, fmt.Errorf("num_examples_per_epoch_for_train %d is smaller than batch_size %d", p.NumExamplesPerEpochForTrain, p.BatchSize))
		}
		if p.NumExamplesPerEpochForEval > 0 && p.NumExamplesPerEpochForEval < p.BatchSize {
			errs = append(errs, fmt.Errorf("num_examples_per_epoch_for_eval %d is smaller than batch_size %d", p.NumExamplesPerEpochForEval, p.BatchSize))
		}
	}
	if p.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning_rate must be positive, got %v", p.LearningRate))
	}
	for _, f := range []struct{ name, v string }{
		{"input_file", p.InputFile},
		{"network_file", p.NetworkFile},
		{"opt_file", p.OptFile},
	} {
		if f.v == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
		}
	}
	switch p.CheckpointDType {
	case "F32", "F16", "BF16":
	default:
		errs = append(errs, fmt.Errorf("checkpoint_dtype must be F32, F16 or BF16, got %q", p.CheckpointDType))
	}
	if p.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must not be negative, got %d", p.Threads))
	}
	return errors.Join(errs...)
}

// Resolve returns a definition file path relative to the params file directory
func (p *Params) Resolve(file string) string {
	if filepath.IsAbs(file) || p.dir == "" {
		return file
	}
	return filepath.Join(p.dir, file)
}
