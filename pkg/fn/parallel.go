package fn

import "sync"

// ParMap applies f to each item with bounded concurrency, preserving order.
// workers <= 0 means one goroutine per item.
func ParMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(v)
		}(i, v)
	}
	wg.Wait()
	return out
}

// ParMapResult applies f with bounded concurrency, returning Results in order.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	return ParMap(items, workers, f)
}
