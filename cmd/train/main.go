package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neurlang/convtrain/datasets"
	_ "github.com/neurlang/convtrain/datasets/cifar10"
	_ "github.com/neurlang/convtrain/datasets/imagefolder"
	_ "github.com/neurlang/convtrain/datasets/mnist"
	_ "github.com/neurlang/convtrain/datasets/synthetic"
	"github.com/neurlang/convtrain/device"
	"github.com/neurlang/convtrain/envconfig"
	"github.com/neurlang/convtrain/learning"
	"github.com/neurlang/convtrain/logutil"
	"github.com/neurlang/convtrain/net/feedforward"
	"github.com/neurlang/convtrain/parallel"
	"github.com/neurlang/convtrain/params"
	"github.com/neurlang/convtrain/trainer"
)

func appendEnvDocs(cmd *cobra.Command, names ...string) {
	env := envconfig.AsMap()
	usage := "\nEnvironment Variables:\n"
	for _, name := range names {
		usage += fmt.Sprintf("      %-24s   %s\n", name, env[name].Description)
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + usage)
}

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "train",
		Short:         "Train a convolutional image classifier",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          trainHandler,
	}
	cmd.Flags().String("config", params.DefaultConfig, "Path to the params file")
	cmd.Flags().Bool("pgo", false, "Write a CPU profile to default.pgo")
	cmd.Flags().MarkHidden("pgo") //nolint:errcheck
	cmd.Long = fmt.Sprintf("Train a convolutional image classifier.\n\nRegistered kinds:\n  input      %v\n  network    %v\n  optimizer  %v",
		datasets.Kinds.Kinds(), feedforward.Kinds.Kinds(), learning.Kinds.Kinds())
	appendEnvDocs(cmd, "CONVTRAIN_TRAIN_DIR", "CONVTRAIN_RUNS", "CONVTRAIN_DATA_DIR", "CONVTRAIN_DEBUG", "CONVTRAIN_THREADS")
	return cmd
}

func trainHandler(cmd *cobra.Command, _ []string) error {
	config, _ := cmd.Flags().GetString("config")
	if pgo, _ := cmd.Flags().GetBool("pgo"); pgo {
		stop, err := startProfile()
		if err != nil {
			return err
		}
		defer stop()
	}

	trainDir := envconfig.TrainDir(config)
	logFile, err := trainer.OpenLogFile(trainDir)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := slog.New(logutil.Tee(
		logutil.NewHandler(os.Stdout, envconfig.LogLevel()),
		logutil.NewHandler(logFile, slog.LevelInfo),
	))
	slog.SetDefault(log)

	if config == params.DefaultConfig {
		log.Info("Training on default config.")
		log.Info("Usage: train --config=<path to params file>")
	}
	device.Log(log)

	if err := trainer.InitializeTrainingFolder(trainDir, config); err != nil {
		return err
	}
	p, err := params.Load(trainer.ModelFile(trainDir, trainer.ParamsFile))
	if err != nil {
		return err
	}
	threads := int(envconfig.Threads())
	if threads == 0 {
		threads = p.Threads
	}
	if threads == 0 {
		threads = device.Threads()
	}
	parallel.SetLimit(threads)
	log.Info("training", "dir", trainDir, "config", config, "threads", threads)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t, err := trainer.Setup(ctx, log, trainDir, envconfig.DataDir(), threads)
	if err != nil {
		return err
	}
	defer t.Close()
	var queues []string
	for _, q := range t.Graph.Queues() {
		queues = append(queues, q.Name)
	}
	log.Info("run", "id", t.RunID(), "variables", len(t.Graph.Variables()), "queues", queues)

	err = t.Run(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		log.Info("stopped", "global_step", t.Graph.GlobalStep.Value())
		return nil
	}
	return err
}

func main() {
	if err := newTrainCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
