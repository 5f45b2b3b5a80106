// Package parallel splits row loops over the available CPU cores. Callers block
// until every chunk has been processed, so the surrounding code stays
// sequential.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the row count below which loops run on the caller's goroutine.
const DefaultThreshold = 1000

// Parallelize divides [0, items) into one contiguous range per CPU core and runs
// fn on each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := min(runtime.NumCPU(), items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := min(start+chunkSize, items)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) directly when items <= threshold
// and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}
