package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Policy controls how a batch operation reacts to individual item failures.
type Policy int

const (
	// CollectAndContinue runs every item and reports only the successes.
	// A fully failed batch still resolves with an empty result.
	CollectAndContinue Policy = iota
	// FailFast aborts the batch on the first item error and returns it.
	FailFast
)

// Run fans out n items concurrently and returns the identifiers of the items
// that succeeded. Item order in the result follows input order.
func Run(ctx context.Context, n int, policy Policy, item func(ctx context.Context, i int) (string, error)) ([]string, error) {
	if n == 0 {
		return nil, nil
	}

	slots := make([]string, n)

	if policy == FailFast {
		g, ctx := errgroup.WithContext(ctx)
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				id, err := item(ctx, i)
				if err != nil {
					return err
				}
				slots[i] = id
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return compact(slots), nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := item(ctx, i)
			if err != nil {
				return
			}
			mu.Lock()
			slots[i] = id
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	return compact(slots), nil
}

func compact(slots []string) []string {
	var out []string
	for _, id := range slots {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
