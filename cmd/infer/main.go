package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/neurlang/convtrain/checkpoint"
	"github.com/neurlang/convtrain/datasets"
	_ "github.com/neurlang/convtrain/datasets/cifar10"
	_ "github.com/neurlang/convtrain/datasets/imagefolder"
	_ "github.com/neurlang/convtrain/datasets/mnist"
	_ "github.com/neurlang/convtrain/datasets/synthetic"
	"github.com/neurlang/convtrain/device"
	"github.com/neurlang/convtrain/envconfig"
	"github.com/neurlang/convtrain/logutil"
	"github.com/neurlang/convtrain/params"
	"github.com/neurlang/convtrain/trainer"
)

func newInferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "infer",
		Short:         "Evaluate a checkpoint on the test data",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          inferHandler,
	}
	cmd.Flags().String("config", params.DefaultConfig, "Params file the training directory was created from")
	cmd.Flags().String("checkpoint", "", "Checkpoint to evaluate (default the latest one)")
	cmd.Flags().Bool("inspect", false, "List the checkpoint tensors instead of evaluating")
	cmd.Flags().Bool("train", false, "Evaluate the undistorted training data too")
	return cmd
}

func inferHandler(cmd *cobra.Command, _ []string) error {
	config, _ := cmd.Flags().GetString("config")
	path, _ := cmd.Flags().GetString("checkpoint")
	trainDir := envconfig.TrainDir(config)
	if path == "" {
		var err error
		if path, err = checkpoint.Latest(trainDir); err != nil {
			return err
		}
	}
	if inspect, _ := cmd.Flags().GetBool("inspect"); inspect {
		h, err := checkpoint.Inspect(path)
		if err != nil {
			return err
		}
		printHeader(cmd.OutOrStdout(), path, h)
		return nil
	}
	withTrain, _ := cmd.Flags().GetBool("train")

	log := logutil.NewLogger(os.Stderr, envconfig.LogLevel())
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	c, err := trainer.Load(trainDir)
	if err != nil {
		return err
	}
	if err := c.Input.MaybeDownloadAndExtract(ctx, envconfig.DataDir()); err != nil {
		return err
	}
	g, err := trainer.Build(c, envconfig.DataDir())
	if err != nil {
		return err
	}
	defer g.Close()
	h, err := checkpoint.Restore(path, g.Variables())
	if err != nil {
		return err
	}
	step, _ := h.Step()
	log.Info("restored", "checkpoint", path, "global_step", step)

	branches := []*trainer.Branch{g.Test}
	if withTrain {
		branches = []*trainer.Branch{g.Train, g.Test}
	}
	var queues []*datasets.Queue
	for _, b := range branches {
		queues = append(queues, b.Queue)
	}
	datasets.StartQueueRunners(ctx, queues...)

	workers := device.Threads()
	results := make([]trainer.Precision, len(branches))
	for i, b := range branches {
		if results[i], err = trainer.DoEval(ctx, log, g.Network, b, c.Params.BatchSize, workers); err != nil {
			return err
		}
	}
	printPrecision(cmd.OutOrStdout(), step, branches, results)
	return nil
}

func printHeader(w io.Writer, path string, h *checkpoint.Header) {
	fmt.Fprintln(w, path)
	for _, k := range slices.Sorted(maps.Keys(h.Metadata)) {
		fmt.Fprintf(w, "  %s: %s\n", k, h.Metadata[k])
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"NAME", "DTYPE", "SHAPE"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, name := range h.Names {
		info := h.Tensors[name]
		table.Append([]string{name, string(info.DType), fmt.Sprint(info.Shape)})
	}
	table.Render()
}

func printPrecision(w io.Writer, step int64, branches []*trainer.Branch, results []trainer.Precision) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"DATA", "STEP", "EXAMPLES", "CORRECT", "PRECISION @ 1"})
	table.SetBorder(false)
	for i, b := range branches {
		r := results[i]
		table.Append([]string{b.Name, fmt.Sprint(step), fmt.Sprint(r.Examples), fmt.Sprint(r.Correct), fmt.Sprintf("%0.04f", r.Value)})
	}
	table.Render()
}

func main() {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	if err := newInferCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
