package datasets

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/neurlang/convtrain/tensor"
)

// ErrNotStarted is returned by Dequeue before the queue runners are started
var ErrNotStarted = errors.New("queue runners not started")

// Batch is a batch of images [B, H, W, C] with their labels
type Batch struct {
	Images *tensor.Tensor
	Labels []int
}

// QueueConfig configures NewQueue
type QueueConfig struct {
	BatchSize int
	Shape     []int // [height, width, channels] after Transform
	Shuffle   bool  // reshuffle the example order every epoch
	Transform Transform
	Threads   int
	Capacity  int
	Seed      uint64
}

// Queue is a bounded buffer of batches filled by runner goroutines
type Queue struct {
	// Name labels the queue in logs and summaries
	Name string

	src Source
	cfg QueueConfig
	ch  chan *Batch

	mu    sync.Mutex
	rng   *rand.Rand
	order []int
	pos   int
	epoch int

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewQueue creates a queue over src; no batch is produced before StartQueueRunners
func NewQueue(name string, src Source, cfg QueueConfig) (*Queue, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("NewQueue %s: batch size must be positive, got %d", name, cfg.BatchSize)
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.Transform == nil {
		cfg.Transform = CenterCrop()
	}
	in := src.Shape()
	if len(cfg.Shape) != 3 || cfg.Shape[0] > in[0] || cfg.Shape[1] > in[1] || cfg.Shape[2] != in[2] {
		return nil, fmt.Errorf("NewQueue %s: output %v from images %v: %w", name, cfg.Shape, in, tensor.ErrShapeMismatch)
	}
	q := &Queue{
		Name:  name,
		src:   src,
		cfg:   cfg,
		ch:    make(chan *Batch, cfg.Capacity),
		rng:   rand.New(rand.NewPCG(cfg.Seed, 0)),
		order: make([]int, src.Len()),
	}
	for i := range q.order {
		q.order[i] = i
	}
	q.shuffle()
	return q, nil
}

// StartQueueRunners starts the runner goroutines of every queue; they stop when ctx ends or
// the queue is closed
func StartQueueRunners(ctx context.Context, queues ...*Queue) {
	for _, q := range queues {
		q.start(ctx)
	}
}

func (q *Queue) start(ctx context.Context) {
	if q.done != nil {
		return
	}
	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.cfg.Threads; i++ {
		rng := rand.New(rand.NewPCG(q.cfg.Seed, uint64(i)+1))
		g.Go(func() error {
			return q.run(ctx, rng)
		})
	}
	go func() {
		q.err = g.Wait()
		close(q.done)
	}()
}

func (q *Queue) shuffle() {
	if q.cfg.Shuffle {
		q.rng.Shuffle(len(q.order), func(i, j int) { q.order[i], q.order[j] = q.order[j], q.order[i] })
	}
}

// next takes the next n example indices, starting a new epoch when the order runs out
func (q *Queue) next(n int) []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]int, n)
	for j := range out {
		if q.pos == len(q.order) {
			q.pos = 0
			q.epoch++
			q.shuffle()
		}
		out[j] = q.order[q.pos]
		q.pos++
	}
	return out
}

func (q *Queue) run(ctx context.Context, rng *rand.Rand) error {
	in := q.src.Shape()
	buf := make([]float32, tensor.Size(in))
	for ctx.Err() == nil {
		b := &Batch{
			Images: tensor.Zeros(append([]int{q.cfg.BatchSize}, q.cfg.Shape...)...),
			Labels: make([]int, q.cfg.BatchSize),
		}
		for j, i := range q.next(q.cfg.BatchSize) {
			b.Labels[j] = q.src.Example(i, buf)
			q.cfg.Transform(rng, buf, in, b.Images.Row(j), q.cfg.Shape)
		}
		select {
		case q.ch <- b:
		case <-ctx.Done():
		}
	}
	return nil
}

// Dequeue waits for the next batch
func (q *Queue) Dequeue(ctx context.Context) (*Batch, error) {
	if q.done == nil {
		return nil, fmt.Errorf("dequeue %s: %w", q.Name, ErrNotStarted)
	}
	select {
	case b := <-q.ch:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		if q.err != nil {
			return nil, fmt.Errorf("dequeue %s: %w", q.Name, q.err)
		}
		return nil, fmt.Errorf("dequeue %s: %w", q.Name, context.Canceled)
	}
}

// FractionFull is the filled share of the buffer
func (q *Queue) FractionFull() float64 {
	return float64(len(q.ch)) / float64(cap(q.ch))
}

// Epoch is the number of completed passes over the examples
func (q *Queue) Epoch() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.epoch
}

// BatchSize is the number of examples per batch
func (q *Queue) BatchSize() int { return q.cfg.BatchSize }

// Examples is the number of examples in one epoch
func (q *Queue) Examples() int { return q.src.Len() }

// Close stops the runners and returns the first runner error
func (q *Queue) Close() error {
	if q.done == nil {
		return nil
	}
	q.cancel()
	<-q.done
	return q.err
}
