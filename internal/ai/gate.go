package ai

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/metrics"
)

const (
	defaultConcurrency = 4
	defaultQueueDepth  = 64
)

// Gate bounds in-flight invocations. Callers over the limit wait in FIFO
// order; once queueDepth callers are waiting, further callers get ErrOverloaded.
type Gate struct {
	sem        *semaphore.Weighted
	limit      int64
	queueDepth int64
	waiting    atomic.Int64
	inFlight   atomic.Int64
}

// NewGate creates a gate. Non-positive values fall back to the defaults;
// a negative queueDepth is treated as zero (no waiting at all).
func NewGate(concurrency, queueDepth int) *Gate {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if queueDepth < 0 {
		queueDepth = 0
	}

	return &Gate{
		sem:        semaphore.NewWeighted(int64(concurrency)),
		limit:      int64(concurrency),
		queueDepth: int64(queueDepth),
	}
}

// Acquire takes a slot. The returned release func must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestCancelled, err)
	}

	// TryAcquire fails while others are queued, which keeps the order FIFO.
	if !g.sem.TryAcquire(1) {
		if g.waiting.Add(1) > g.queueDepth {
			g.waiting.Add(-1)
			return nil, fmt.Errorf("%w: %d invocations queued", ErrOverloaded, g.queueDepth)
		}
		metrics.SetQueueDepth(g.Waiting())

		err := g.sem.Acquire(ctx, 1)
		metrics.SetQueueDepth(int(g.waiting.Add(-1)))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRequestCancelled, err)
		}
	}

	g.inFlight.Add(1)

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			g.inFlight.Add(-1)
			g.sem.Release(1)
		}
	}, nil
}

// Waiting returns the number of queued callers.
func (g *Gate) Waiting() int { return int(g.waiting.Load()) }

// InFlight returns the number of held slots.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Limit returns the concurrency limit.
func (g *Gate) Limit() int { return int(g.limit) }
