// Package workerpool provides the fixed-size CPU-bound worker pool of
// spec.md §5, sized by default to runtime.NumCPU().
package workerpool

import (
	"context"
	"runtime"
	"sync"
)

// Pool runs a fixed number of workers. Submit blocks until a worker slot is
// free or ctx is canceled, so all long-running work honors cancellation at
// this suspension point (spec.md §5).
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// New creates a pool sized to runtime.NumCPU() workers; size <= 0 uses the
// default.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Submit runs fn on a worker goroutine, blocking until a slot is available
// or ctx is canceled.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		fn()
	}()
	return nil
}

// Wait blocks until every submitted task has completed.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Map runs fn over items concurrently, bounded by the pool size, and
// collects results in input order.
func Map[T any, R any](ctx context.Context, p *Pool, items []T, fn func(T) R) ([]R, error) {
	results := make([]R, len(items))
	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for i, item := range items {
		i, item := i, item
		wg.Add(1)
		err := p.Submit(ctx, func() {
			defer wg.Done()
			results[i] = fn(item)
		})
		if err != nil {
			wg.Done()
			select {
			case errCh <- err:
			default:
			}
			break
		}
	}
	wg.Wait()
	select {
	case err := <-errCh:
		return results, err
	default:
		return results, nil
	}
}
