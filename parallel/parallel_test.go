package parallel

import "context"
import "errors"
import "sync/atomic"
import "testing"

func TestForEachVisitsAll(t *testing.T) {
	var seen [100]atomic.Int32
	ForEach(len(seen), 4, func(i int) {
		seen[i].Add(1)
	})
	for i := range seen {
		if seen[i].Load() != 1 {
			t.Fatalf("index %d visited %d times", i, seen[i].Load())
		}
	}
}

func TestLoopUntilStops(t *testing.T) {
	var count atomic.Int32
	err := Loop(3).LoopUntil(context.Background(), func(i uint32, _ LoopStopper) (bool, error) {
		if i >= 50 {
			return true, nil
		}
		count.Add(1)
		return false, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count.Load() != 50 {
		t.Errorf("processed %d indices, want 50", count.Load())
	}
}

func TestLoopUntilError(t *testing.T) {
	boom := errors.New("boom")
	err := Loop(2).LoopUntil(context.Background(), func(i uint32, _ LoopStopper) (bool, error) {
		if i == 7 {
			return false, boom
		}
		return false, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
}
