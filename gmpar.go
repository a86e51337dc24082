package gamutmap

import (
	"runtime"
	"sync"

	"github.com/kovidgoyal/go-parallel"
)

// parallelFor runs fn for every index in [0, n) over contiguous chunks,
// one goroutine per chunk. Each chunk stops at its first error; the error
// with the lowest index is returned so the outcome does not depend on
// scheduling. A panic in fn is returned as an error carrying its stack.
func parallelFor(n, workers int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		// Fallback: single-threaded
		return runChunk(0, n, fn)
	}

	chunk := (n + workers - 1) / workers
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			errs[w] = runChunk(start, end, fn)
		}(w, start, end)
	}
	wg.Wait()

	// Chunks are ordered, so the first failing chunk holds the lowest index
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func runChunk(start, end int, fn func(i int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = parallel.Format_stacktrace_on_panic(r, 1)
		}
	}()
	for i := start; i < end; i++ {
		if err = fn(i); err != nil {
			return err
		}
	}
	return nil
}
