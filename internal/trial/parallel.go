package trial

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForEach calls fn for every replicate index in [0, n) across workers
// goroutines. Worker w handles indexes w, w+workers, ...; fn must write its
// output to a slot addressed by the index so the caller can reduce in
// replicate order. A non-positive workers uses GOMAXPROCS.
//
// The first error returned by fn, or ctx's error, stops the remaining work.
func ForEach(ctx context.Context, n, workers int, fn func(i int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	g, gCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := w; i < n; i += workers {
				if err := gCtx.Err(); err != nil {
					return err
				}
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
