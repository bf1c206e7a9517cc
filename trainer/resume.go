package trainer

import "errors"
import "log/slog"

import "github.com/neurlang/convtrain/checkpoint"

// Resume restores the latest checkpoint of trainDir into the graph when resume is set.
// It reports whether a checkpoint was restored; a directory without checkpoints starts fresh.
func Resume(log *slog.Logger, g *Graph, trainDir string, resume bool) (bool, error) {
	if !resume {
		return false, nil
	}
	path, err := checkpoint.Latest(trainDir)
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		log.Info("no checkpoint to resume from, starting fresh", "dir", trainDir)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	h, err := checkpoint.Restore(path, g.Variables())
	if err != nil {
		return false, err
	}
	step, err := h.Step()
	if err != nil {
		return false, err
	}
	g.GlobalStep.Set(step)
	log.Info("resumed", "checkpoint", path, "global_step", step, "run", h.Metadata["run_id"])
	return true, nil
}
