package service

import (
	"context"
	"sync"
	"time"

	"weather-companion/internal/models"
)

// inFlightFetch tracks one upstream fetch that several callers may wait on.
type inFlightFetch struct {
	mu      sync.Mutex
	result  models.Snapshot
	err     error
	done    bool
	waiters []chan struct{}
}

// snapshotCoalescer deduplicates concurrent fetches for the same coordinate
// key: the first caller fetches, the rest wait for its result.
type snapshotCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightFetch
	timeout  time.Duration
}

func newSnapshotCoalescer(timeout time.Duration) *snapshotCoalescer {
	return &snapshotCoalescer{
		inFlight: make(map[string]*inFlightFetch),
		timeout:  timeout,
	}
}

// GetOrDo joins the in-flight fetch for key, or starts one by running fn.
// Waiting respects ctx and the coalescer timeout.
func (sc *snapshotCoalescer) GetOrDo(ctx context.Context, key string, fn func() (models.Snapshot, error)) (models.Snapshot, error) {
	sc.mu.Lock()
	req, exists := sc.inFlight[key]
	if exists {
		sc.mu.Unlock()
		return sc.wait(ctx, req)
	}

	req = &inFlightFetch{}
	sc.inFlight[key] = req
	sc.mu.Unlock()

	go func() {
		result, err := fn()

		req.mu.Lock()
		req.result = result
		req.err = err
		req.done = true
		waiters := req.waiters
		req.waiters = nil
		req.mu.Unlock()

		for _, notify := range waiters {
			close(notify)
		}

		sc.mu.Lock()
		delete(sc.inFlight, key)
		sc.mu.Unlock()
	}()

	return sc.wait(ctx, req)
}

// wait blocks until req completes, ctx is cancelled or the timeout passes.
func (sc *snapshotCoalescer) wait(ctx context.Context, req *inFlightFetch) (models.Snapshot, error) {
	req.mu.Lock()
	if req.done {
		result, err := req.result, req.err
		req.mu.Unlock()
		return result, err
	}
	notify := make(chan struct{})
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()
	select {
	case <-notify:
		req.mu.Lock()
		result, err := req.result, req.err
		req.mu.Unlock()
		return result, err
	case <-waitCtx.Done():
		return models.Snapshot{}, waitCtx.Err()
	}
}
