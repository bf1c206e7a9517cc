package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/neurlang/convtrain/net/feedforward"
	"github.com/neurlang/convtrain/parallel"
)

// Precision is the outcome of one evaluation
type Precision struct {
	Examples int
	Correct  int
	Value    float64
}

// DoEval runs b.Examples/batchSize batches of branch through the network on workers
// goroutines and counts the top-1 hits. Evaluation forward passes do not touch the
// parameters, so the workers share them.
func DoEval(ctx context.Context, log *slog.Logger, net *feedforward.FeedforwardNetwork, b *Branch, batchSize, workers int) (Precision, error) {
	steps := b.Examples / batchSize
	if steps == 0 {
		return Precision{}, fmt.Errorf("evaluate %s: %d examples do not fill a batch of %d", b.Name, b.Examples, batchSize)
	}
	var correct atomic.Int64
	err := parallel.Loop(min(workers, steps)).LoopUntil(ctx, func(i uint32, _ parallel.LoopStopper) (bool, error) {
		if int(i) >= steps {
			return true, nil
		}
		batch, err := b.Queue.Dequeue(ctx)
		if err != nil {
			return true, err
		}
		logits, _ := net.Inference(batch.Images, false)
		correct.Add(int64(net.Evaluation(logits, batch.Labels)))
		return false, nil
	})
	if err != nil {
		return Precision{}, fmt.Errorf("evaluate %s: %w", b.Name, err)
	}
	p := Precision{Examples: steps * batchSize, Correct: int(correct.Load())}
	p.Value = float64(p.Correct) / float64(p.Examples)
	log.Info(fmt.Sprintf("  Num examples: %d  Num correct: %d  Precision @ 1: %0.04f", p.Examples, p.Correct, p.Value), "branch", b.Name)
	return p, nil
}
