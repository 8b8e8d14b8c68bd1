package core

// pool.go runs ingestion work off the poller's control loop.
//
// The pool is a semaphore bounding how many reads and fetches run at once.
// Dispatch never blocks the caller: each job waits for a slot in its own
// goroutine for up to maxWait, and a job that cannot get one is dropped and
// logged. The next eligible tick dispatches again.

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrPoolSaturated is reported when every ingest slot stayed busy for the
// whole wait and a job was dropped.
var ErrPoolSaturated = errors.New("ingest pool saturated, job dropped")

// DefaultMaxConcurrentIngests is the default number of parallel ingestions.
const DefaultMaxConcurrentIngests = 4

// DefaultMaxWaitTime is how long a job waits for a slot before it is dropped.
const DefaultMaxWaitTime = 30 * time.Second

// Pool bounds concurrent ingestion work.
type Pool struct {
	semaphore chan struct{}
	maxWait   time.Duration
	logger    *slog.Logger

	mu      sync.RWMutex
	active  int
	pending int
	dropped int
}

// NewPool creates a pool running at most maxConcurrent jobs at a time.
func NewPool(maxConcurrent int, maxWait time.Duration, logger *slog.Logger) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentIngests
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
		logger:    logger,
	}
}

// Acquire waits up to maxWait for a slot.
// Returns nil on success, ErrPoolSaturated if the wait expires.
// The caller MUST call Release() when done.
func (p *Pool) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, p.maxWait)
	defer cancel()

	select {
	case p.semaphore <- struct{}{}:
		p.mu.Lock()
		p.active++
		p.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Check if original context was cancelled vs timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrPoolSaturated
	}
}

// Release releases a previously acquired slot.
// Must be called exactly once for each successful Acquire.
func (p *Pool) Release() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()

	<-p.semaphore
}

// Go runs job on the pool and returns immediately.
//
// ctx bounds only the wait for a slot. The job itself receives a context
// that keeps ctx's values but is never cancelled, so shutting down the
// dispatcher does not abort fetches already in flight.
func (p *Pool) Go(ctx context.Context, name string, job func(ctx context.Context)) {
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.pending--
			p.mu.Unlock()
		}()

		if err := p.Acquire(ctx); err != nil {
			p.mu.Lock()
			p.dropped++
			p.mu.Unlock()
			p.logger.Warn("ingest job dropped", "job", name, "error", err)
			return
		}
		defer p.Release()

		job(context.WithoutCancel(ctx))
	}()
}

// WaitForDrain blocks until every dispatched job has finished or been
// dropped, or ctx is done. Used on shutdown.
func (p *Pool) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if p.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pool) idle() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active == 0 && p.pending == 0
}

// PoolStatus is a snapshot of the pool's state.
type PoolStatus struct {
	Active        int `json:"active"`
	Pending       int `json:"pending"`
	Dropped       int `json:"dropped"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current pool state. /healthz reports it.
func (p *Pool) Status() PoolStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStatus{
		Active:        p.active,
		Pending:       p.pending,
		Dropped:       p.dropped,
		Available:     cap(p.semaphore) - len(p.semaphore),
		MaxConcurrent: cap(p.semaphore),
	}
}
