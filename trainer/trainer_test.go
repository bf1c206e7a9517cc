package trainer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neurlang/convtrain/checkpoint"
	_ "github.com/neurlang/convtrain/datasets/synthetic"
	"github.com/neurlang/convtrain/params"
	"github.com/neurlang/convtrain/summary"
)

func TestSchedule(t *testing.T) {
	s := Schedule{LogEvery: 100, CheckpointEvery: 1000, MaxSteps: 2500}
	var logged, saved []int
	for step := 0; step < s.MaxSteps; step++ {
		if s.ShouldLog(step) && step <= 300 {
			logged = append(logged, step)
		}
		if s.ShouldCheckpoint(step) {
			saved = append(saved, step)
		}
	}
	require.Equal(t, []int{0, 100, 200, 300}, logged)
	require.Equal(t, []int{999, 1999, 2499}, saved)
}

const testParams = `
batch_size = 8
learning_rate = 0.01
max_steps = 30
log_every = 10
checkpoint_every = 20
num_examples_per_epoch_for_train = 64
num_examples_per_epoch_for_eval = 32
input_file = "defs/input.toml"
network_file = "defs/network.toml"
opt_file = "defs/optimizer.toml"
eval_validation = true
checkpoint_dtype = "F16"
max_to_keep = 3
`

const testInput = `
kind = "synthetic"
size = 8
classes = 3
crop = 6
train_examples = 64
test_examples = 32
threads = 2
capacity = 2
`

const testNetwork = `
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
`

const testOptimizer = `
kind = "momentum"
momentum = 0.9
`

// writeConfig lays out a params file and its three definition files
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "defs"), 0o755))
	for name, body := range map[string]string{
		"params.toml":         testParams,
		"defs/input.toml":     testInput,
		"defs/network.toml":   testNetwork,
		"defs/optimizer.toml": testOptimizer,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return filepath.Join(dir, "params.toml")
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeTrainingFolder(t *testing.T) {
	config := writeConfig(t)
	trainDir := filepath.Join(t.TempDir(), "run")
	require.NoError(t, InitializeTrainingFolder(trainDir, config))

	for name, body := range map[string]string{
		InputFile:     testInput,
		NetworkFile:   testNetwork,
		OptimizerFile: testOptimizer,
	} {
		got, err := os.ReadFile(ModelFile(trainDir, name))
		require.NoError(t, err)
		require.Equal(t, body, string(got), name)
	}

	copied := ModelFile(trainDir, ParamsFile)
	p, err := params.Load(copied)
	require.NoError(t, err)
	require.Equal(t, InputFile, p.InputFile)
	require.Equal(t, NetworkFile, p.NetworkFile)
	require.Equal(t, OptimizerFile, p.OptFile)
	require.Equal(t, ModelFile(trainDir, NetworkFile), p.Resolve(p.NetworkFile))
	require.Equal(t, 30, p.MaxSteps)
	require.Equal(t, "F16", p.CheckpointDType)
	require.True(t, p.EvalValidation)

	// the copied params file initializes its own folder again
	require.NoError(t, InitializeTrainingFolder(trainDir, copied))
	_, err = Load(trainDir)
	require.NoError(t, err)

	// and seeds a fresh one
	other := filepath.Join(t.TempDir(), "again")
	require.NoError(t, InitializeTrainingFolder(other, copied))
	c, err := Load(other)
	require.NoError(t, err)
	require.Equal(t, 8, c.Params.BatchSize)
	got, err := os.ReadFile(ModelFile(other, NetworkFile))
	require.NoError(t, err)
	require.Equal(t, testNetwork, string(got))
}

func TestInitializeTrainingFolderMissingFile(t *testing.T) {
	config := writeConfig(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(config), "defs", "network.toml")))
	err := InitializeTrainingFolder(t.TempDir(), config)
	require.Error(t, err)
	require.Contains(t, err.Error(), "network.toml")
}

func setup(t *testing.T, trainDir string) *Trainer {
	t.Helper()
	tr, err := Setup(t.Context(), quiet(), trainDir, t.TempDir(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestRunAndResume(t *testing.T) {
	trainDir := t.TempDir()
	require.NoError(t, InitializeTrainingFolder(trainDir, writeConfig(t)))

	tr := setup(t, trainDir)
	require.NoError(t, tr.Run(t.Context()))
	require.Equal(t, int64(30), tr.Graph.GlobalStep.Value())
	require.NoError(t, tr.Close())

	for _, step := range []int64{19, 29} {
		_, err := os.Stat(checkpoint.Path(trainDir, step))
		require.NoError(t, err, "checkpoint of step %d", step)
	}
	latest, err := checkpoint.Latest(trainDir)
	require.NoError(t, err)
	require.Equal(t, checkpoint.Path(trainDir, 29), latest)
	h, err := checkpoint.Inspect(latest)
	require.NoError(t, err)
	require.Contains(t, h.Names, "conv1/weights/Momentum")
	require.Equal(t, checkpoint.F16, h.Tensors["conv1/weights"].DType)

	r, err := summary.OpenReader(summary.Path(trainDir))
	require.NoError(t, err)
	tags, err := r.Tags(t.Context())
	require.NoError(t, err)
	for _, tag := range []string{
		"Train/Loss",
		"Train/LearningRate",
		"Evaluation/Train Precision",
		"Evaluation/Validation Precision",
		"Evaluation/Test Precision",
		"queue/input/fraction_full",
		"queue/eval_test/fraction_full",
	} {
		require.Contains(t, tags, tag)
	}
	loss, err := r.Scalars(t.Context(), "Train/Loss")
	require.NoError(t, err)
	var steps []int64
	for _, s := range loss {
		steps = append(steps, s.Step)
	}
	require.Equal(t, []int64{0, 10, 20}, steps)
	test, err := r.Scalars(t.Context(), "Evaluation/Test Precision")
	require.NoError(t, err)
	require.Len(t, test, 2)
	for _, s := range test {
		require.GreaterOrEqual(t, s.Value, 0.0)
		require.LessOrEqual(t, s.Value, 1.0)
	}
	require.NoError(t, r.Close())

	// continue the same directory for ten more steps
	paramsFile := ModelFile(trainDir, ParamsFile)
	body, err := os.ReadFile(paramsFile)
	require.NoError(t, err)
	body = []byte(strings.Replace(string(body), "max_steps = 30", "max_steps = 40", 1) + "resume = true\n")
	require.NoError(t, os.WriteFile(paramsFile, body, 0o644))

	tr = setup(t, trainDir)
	require.Equal(t, int64(30), tr.Graph.GlobalStep.Value())
	require.NoError(t, tr.Run(t.Context()))
	_, err = os.Stat(checkpoint.Path(trainDir, 39))
	require.NoError(t, err)
}

func TestRunCancelled(t *testing.T) {
	trainDir := t.TempDir()
	require.NoError(t, InitializeTrainingFolder(trainDir, writeConfig(t)))
	tr := setup(t, trainDir)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := tr.Run(ctx)
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	_, err = checkpoint.Latest(trainDir)
	require.True(t, errors.Is(err, checkpoint.ErrNoCheckpoint), "nothing was trained, nothing is saved")
}

func TestDoEvalNeedsAFullBatch(t *testing.T) {
	trainDir := t.TempDir()
	require.NoError(t, InitializeTrainingFolder(trainDir, writeConfig(t)))
	tr := setup(t, trainDir)
	short := *tr.Graph.Test
	short.Examples = 7
	_, err := DoEval(t.Context(), quiet(), tr.Graph.Network, &short, 8, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "7 examples")
}
