// Package parallel contains parallel LoopUntil() and parallel ForEach() concurrency primitives.
package parallel

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
)

// LoopStopper is an interface to check if the loop should stop.
type LoopStopper interface {

	// Load reports true if the loop should stop.
	Load() bool
}

// Loop represents the number of goroutines to run.
type Loop int

// LoopUntil starts 'l' goroutines that iterate until one of them stops the loop.
// Each goroutine processes a unique integer i starting from 0.
// The loop stops if i reaches math.MaxUint32, any yield returns true or an error,
// or ctx is done. The first error (or the context error) is returned.
func (l Loop) LoopUntil(ctx context.Context, yield func(i uint32, ender LoopStopper) (bool, error)) error {
	var (
		i     uint32
		ender atomic.Bool
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	fail := func(err error) {
		once.Do(func() { first = err })
		ender.Store(true)
	}
	if l < 1 {
		l = 1
	}

	for n := 0; n < int(l); n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ender.Load() {
					return
				}
				if err := ctx.Err(); err != nil {
					fail(err)
					return
				}

				newI := atomic.AddUint32(&i, 1)
				if newI == math.MaxUint32 {
					ender.Store(true)
					return
				}

				stop, err := yield(newI-1, &ender)
				if err != nil {
					fail(err)
					return
				}
				if stop {
					ender.Store(true)
					return
				}
			}
		}()
	}

	wg.Wait()
	return first
}
