package hash

import (
	"context"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// SumFiles hashes the content of every path in parallel and returns the
// resulting digests in the same order as paths. Hashing is embarrassingly
// parallel and order-independent: the returned slice does not depend on
// completion order or worker count.
func SumFiles(paths []string) ([]Digest, error) {
	out := make([]Digest, len(paths))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			out[i] = Sum(data)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
