package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/emirpasic/gods/v2/lists/arraylist"

	"github.com/neurlang/convtrain/checkpoint"
	"github.com/neurlang/convtrain/datasets"
	"github.com/neurlang/convtrain/params"
	"github.com/neurlang/convtrain/summary"
)

// AverageWindow is the number of recent losses in the moving average
const AverageWindow = 100

// Trainer runs the step loop of one training directory
type Trainer struct {
	Dir     string
	Params  *params.Params
	Graph   *Graph
	Log     *slog.Logger
	Workers int // evaluation goroutines

	summaries *summary.Writer
	dtype     checkpoint.DType
	saved     int64 // global step of the last checkpoint
}

// Setup loads the copied definitions of trainDir, makes the data available, builds the graph,
// resumes from a checkpoint if asked and opens the summary writer
func Setup(ctx context.Context, log *slog.Logger, trainDir, dataDir string, workers int) (*Trainer, error) {
	c, err := Load(trainDir)
	if err != nil {
		return nil, err
	}
	if err := c.Input.MaybeDownloadAndExtract(ctx, dataDir); err != nil {
		return nil, fmt.Errorf("maybe download and extract: %w", err)
	}
	dtype, err := checkpoint.ParseDType(c.Params.CheckpointDType)
	if err != nil {
		return nil, err
	}
	g, err := Build(c, dataDir)
	if err != nil {
		return nil, err
	}
	t := &Trainer{Dir: trainDir, Params: c.Params, Graph: g, Log: log, Workers: workers, dtype: dtype}
	if _, err := Resume(log, g, trainDir, c.Params.Resume); err != nil {
		g.Close()
		return nil, err
	}
	t.saved = g.GlobalStep.Value()

	config, _ := os.ReadFile(ModelFile(trainDir, ParamsFile))
	if t.summaries, err = summary.NewWriter(trainDir, string(config)); err != nil {
		g.Close()
		return nil, err
	}
	graph := g.Network.Summary()
	log.Debug("network\n" + graph)
	if err := t.summaries.AddText("graph", graph, g.GlobalStep.Value()); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// RunID identifies the run in the summaries and checkpoints
func (t *Trainer) RunID() string {
	return t.summaries.RunID
}

// Close stops the queue runners and closes the summary writer
func (t *Trainer) Close() error {
	return errors.Join(t.Graph.Close(), t.summaries.Close())
}

// Run trains until max_steps. When ctx is cancelled between steps a final checkpoint is
// saved and the context error is returned.
func (t *Trainer) Run(ctx context.Context) error {
	p := t.Params
	g := t.Graph
	sched := Schedule{LogEvery: p.LogEvery, CheckpointEvery: p.CheckpointEvery, MaxSteps: p.MaxSteps}
	first := int(g.GlobalStep.Value())
	if first >= p.MaxSteps {
		t.Log.Info("nothing to do, the restored global step reached max_steps", "global_step", first, "max_steps", p.MaxSteps)
		return nil
	}
	datasets.StartQueueRunners(ctx, g.Queues()...)

	losses := arraylist.New[float32]()
	for step := first; step < p.MaxSteps; step++ {
		if ctx.Err() != nil {
			return t.interrupted(ctx)
		}
		start := time.Now()
		batch, err := g.Input.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return t.interrupted(ctx)
			}
			return err
		}
		logits, backward := g.Network.Inference(batch.Images, true)
		loss, grad := g.Network.Loss(logits, batch.Labels)
		backward(grad)
		lr := g.TrainOp.Run()

		losses.Add(loss)
		if losses.Size() > AverageWindow {
			losses.Remove(0)
		}

		if sched.ShouldLog(step) {
			duration := time.Since(start).Seconds()
			t.Log.Info(fmt.Sprintf("Step %d: loss = %.2f (%.3f sec (per Batch); %.1f examples/sec;)",
				step, loss, duration, float64(p.BatchSize)/duration), "avg_loss", average(losses), "lr", lr)
			correct := g.Network.Evaluation(logits, batch.Labels)
			t.scalar("Train/Loss", float64(loss), step)
			t.scalar("Train/AverageLoss", average(losses), step)
			t.scalar("Train/LearningRate", lr, step)
			t.scalar("Train/BatchPrecision", float64(correct)/float64(len(batch.Labels)), step)
			for _, q := range g.Queues() {
				t.scalar("queue/"+q.Name+"/fraction_full", q.FractionFull(), step)
			}
		}

		if sched.ShouldCheckpoint(step) {
			if err := t.save(step); err != nil {
				return err
			}
			if err := t.evaluate(ctx, step); err != nil {
				if ctx.Err() != nil {
					return t.interrupted(ctx)
				}
				return err
			}
		}
	}
	return nil
}

func average(l *arraylist.List[float32]) float64 {
	var sum float64
	for _, v := range l.Values() {
		sum += float64(v)
	}
	return sum / float64(max(l.Size(), 1))
}

// scalar logs summary write failures; a lost summary does not stop training
func (t *Trainer) scalar(tag string, value float64, step int) {
	if err := t.summaries.AddScalar(tag, value, int64(step)); err != nil {
		t.Log.Warn("write summary", "tag", tag, "error", err)
	}
}

// save writes model.ckpt-<step> holding the state after that step
func (t *Trainer) save(step int) error {
	global := t.Graph.GlobalStep.Value()
	path, err := checkpoint.Save(t.Dir, int64(step), t.Graph.Variables(), checkpoint.Options{
		DType:      t.dtype,
		MaxToKeep:  t.Params.MaxToKeep,
		GlobalStep: global,
		RunID:      t.RunID(),
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	t.saved = global
	t.Log.Info("saved checkpoint", "path", path)
	return nil
}

func (t *Trainer) evaluate(ctx context.Context, step int) error {
	for _, b := range t.Graph.Branches() {
		switch b {
		case t.Graph.Train:
			t.Log.Info("Doing evaluation with a whole epoch of training data")
		case t.Graph.Validation:
			t.Log.Info("Doing evaluation with a whole epoch of distorted training data")
		case t.Graph.Test:
			t.Log.Info("Doing evaluation with testing data")
		}
		precision, err := DoEval(ctx, t.Log, t.Graph.Network, b, t.Params.BatchSize, t.Workers)
		if err != nil {
			return err
		}
		t.scalar("Evaluation/"+b.Name+" Precision", precision.Value, step)
	}
	return nil
}

// interrupted saves the progress made since the last checkpoint and returns the context error
func (t *Trainer) interrupted(ctx context.Context) error {
	global := t.Graph.GlobalStep.Value()
	t.Log.Warn("training interrupted", "global_step", global)
	if global > t.saved {
		if err := t.save(int(global) - 1); err != nil {
			return errors.Join(ctx.Err(), err)
		}
	}
	return ctx.Err()
}
