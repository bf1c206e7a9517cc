package datasets

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func counting(t *testing.T, n int) *Memory {
	t.Helper()
	pixels := make([]byte, n*4)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
		for j := 0; j < 4; j++ {
			pixels[i*4+j] = byte(i)
		}
	}
	m, err := NewMemory([]int{2, 2, 1}, pixels, labels)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func identity(_ *rand.Rand, src []float32, _ []int, dst []float32, _ []int) {
	copy(dst, src)
}

func TestQueueEpochs(t *testing.T) {
	q, err := NewQueue("test", counting(t, 10), QueueConfig{
		BatchSize: 5, Shape: []int{2, 2, 1}, Threads: 1, Capacity: 2, Transform: identity,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	StartQueueRunners(ctx, q)
	defer q.Close()

	var labels []int
	for i := 0; i < 4; i++ {
		b, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]int{5, 2, 2, 1}, b.Images.Shape); diff != "" {
			t.Fatalf("batch shape (-want +got):\n%s", diff)
		}
		if b.Images.Row(0)[0] != float32(b.Labels[0]) {
			t.Errorf("image does not belong to its label")
		}
		labels = append(labels, b.Labels...)
	}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("unshuffled order (-want +got):\n%s", diff)
	}
	if q.Epoch() < 1 {
		t.Errorf("Epoch = %d after two passes", q.Epoch())
	}
}

func TestQueueShuffleCoversEpoch(t *testing.T) {
	q, err := NewQueue("shuffled", counting(t, 12), QueueConfig{
		BatchSize: 4, Shape: []int{2, 2, 1}, Shuffle: true, Threads: 3, Capacity: 4, Seed: 7, Transform: identity,
	})
	if err != nil {
		t.Fatal(err)
	}
	// one epoch of indices taken directly from the cursor
	seen := make(map[int]bool)
	for i := 0; i < 3; i++ {
		for _, idx := range q.next(4) {
			seen[idx] = true
		}
	}
	if len(seen) != 12 {
		t.Errorf("an epoch visited %d of 12 examples", len(seen))
	}
}

func TestQueueStopsOnCancel(t *testing.T) {
	q, err := NewQueue("cancel", counting(t, 3), QueueConfig{BatchSize: 2, Shape: []int{1, 1, 1}, Threads: 2, Capacity: 1})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	StartQueueRunners(ctx, q)

	deadline := time.Now().Add(5 * time.Second)
	for q.FractionFull() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if q.FractionFull() != 1 {
		t.Errorf("queue never filled: %v", q.FractionFull())
	}
	cancel()
	if err := q.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
	if _, err := q.Dequeue(context.Background()); err == nil {
		// a batch buffered before the cancel may still be returned once
		if _, err := q.Dequeue(context.Background()); err == nil {
			t.Errorf("expected an error after the runners stopped")
		}
	}
}

func TestNewQueueErrors(t *testing.T) {
	src := counting(t, 2)
	if _, err := NewQueue("q", src, QueueConfig{BatchSize: 0, Shape: []int{2, 2, 1}}); err == nil {
		t.Errorf("expected an error for batch size 0")
	}
	if _, err := NewQueue("q", src, QueueConfig{BatchSize: 1, Shape: []int{3, 3, 1}}); err == nil {
		t.Errorf("expected an error for an output larger than the images")
	}
}

func TestTransforms(t *testing.T) {
	src := make([]float32, 4*4*1)
	for i := range src {
		src[i] = float32(i)
	}
	dst := make([]float32, 2*2)
	CenterCrop()(nil, src, []int{4, 4, 1}, dst, []int{2, 2, 1})
	var mean float64
	for _, v := range dst {
		mean += float64(v)
	}
	if math.Abs(mean) > 1e-5 {
		t.Errorf("standardized image has mean %v", mean/4)
	}
	// center pixels are 5 6 9 10: standardized in order
	if !(dst[0] < dst[1] && dst[1] < dst[2] && dst[2] < dst[3]) {
		t.Errorf("center crop order broken: %v", dst)
	}

	flat := []float32{7, 7, 7, 7}
	Standardize(flat)
	if diff := cmp.Diff([]float32{0, 0, 0, 0}, flat); diff != "" {
		t.Errorf("uniform image (-want +got):\n%s", diff)
	}

	out := make([]float32, 3*3)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		Distort(Distortion{Flip: true, Brightness: 10, ContrastLower: 0.5, ContrastUpper: 1.5})(rng, src, []int{4, 4, 1}, out, []int{3, 3, 1})
		for _, v := range out {
			if math.IsNaN(float64(v)) {
				t.Fatalf("distorted image contains NaN")
			}
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	o := DefaultOptions()
	if err := o.Validate([]int{32, 32, 3}); err != nil {
		t.Fatal(err)
	}
	o.Crop = 40
	o.Threads = 0
	if err := o.Validate([]int{32, 32, 3}); err == nil {
		t.Errorf("expected crop and threads errors")
	}
}
