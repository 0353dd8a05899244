package geometry

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// forEachSample runs fn once per batch index, spread over at most GOMAXPROCS goroutines.
// fn must only write to the parts of shared outputs owned by its index.
func forEachSample(batch int, fn func(b int) error) error {
	if batch == 1 {
		return fn(0)
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for b := 0; b < batch; b++ {
		g.Go(func() error {
			return fn(b)
		})
	}
	return g.Wait()
}
