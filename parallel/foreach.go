package parallel

import "sync"
import "sync/atomic"
import "runtime"

var limit atomic.Int64

// SetLimit sets the default number of goroutines used by ForEach when limit is 0.
// Values below 1 restore GOMAXPROCS.
func SetLimit(n int) {
	limit.Store(int64(n))
}

// Limit reports the default number of goroutines
func Limit() int {
	if n := limit.Load(); n > 0 {
		return int(n)
	}
	return runtime.GOMAXPROCS(0)
}

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length. A limit of 0 uses Limit().
func ForEach(length, limit int, body func(i int)) {
	if limit <= 0 {
		limit = Limit()
	}
	if length <= 0 {
		return
	}
	if limit == 1 || length == 1 {
		for i := 0; i < length; i++ {
			body(i)
		}
		return
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			body(i)
		}(i)
	}

	wg.Wait()
}
