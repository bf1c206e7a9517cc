package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neurlang/convtrain/checkpoint"
	"github.com/neurlang/convtrain/trainer"
)

var definitions = map[string]string{
	"params.toml": `
batch_size = 4
learning_rate = 0.05
max_steps = 4
log_every = 2
checkpoint_every = 4
num_examples_per_epoch_for_train = 16
num_examples_per_epoch_for_eval = 8
input_file = "defs/input.toml"
network_file = "defs/network.toml"
opt_file = "defs/optimizer.toml"
`,
	"defs/input.toml": `
kind = "synthetic"
size = 6
classes = 2
crop = 4
train_examples = 16
test_examples = 8
threads = 1
capacity = 2
`,
	"defs/network.toml": `
kind = "feedforward"

[[layers]]
type = "full"
name = "softmax_linear"
`,
	"defs/optimizer.toml": `
kind = "sgd"
`,
}

func train(t *testing.T, trainDir, config string) {
	t.Helper()
	t.Setenv("CONVTRAIN_TRAIN_DIR", trainDir)
	cmd := newTrainCmd()
	cmd.SetArgs([]string{"--config", config})
	require.NoError(t, cmd.ExecuteContext(t.Context()))
	_, err := os.Stat(checkpoint.Path(trainDir, 3))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(trainDir, trainer.LogFile))
	require.NoError(t, err)
}

func TestTrainFromCopiedParams(t *testing.T) {
	t.Setenv("CONVTRAIN_DATA_DIR", t.TempDir())
	t.Setenv("CONVTRAIN_THREADS", "2")
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "defs"), 0o755))
	for name, body := range definitions {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	first := filepath.Join(t.TempDir(), "first")
	train(t, first, filepath.Join(dir, "params.toml"))

	// a finished run is enough to start the next one
	second := filepath.Join(t.TempDir(), "second")
	train(t, second, trainer.ModelFile(first, trainer.ParamsFile))
	got, err := os.ReadFile(trainer.ModelFile(second, trainer.InputFile))
	require.NoError(t, err)
	require.Equal(t, definitions["defs/input.toml"], string(got))
}
