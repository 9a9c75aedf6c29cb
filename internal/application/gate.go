package application

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of outbound network calls in flight.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
	peak     atomic.Int64
	observer GateObserver
}

func NewGate(capacity int, observer GateObserver) (*Gate, error) {
	if capacity < 1 {
		return nil, errors.New("gate capacity must be at least 1")
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		observer: observer,
	}, nil
}

// Do holds one permit while fn runs. The permit is released on every return path.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	current := g.inFlight.Add(1)
	g.notePeak(current)
	g.report(current)
	defer func() {
		g.report(g.inFlight.Add(-1))
	}()

	return fn(ctx)
}

func (g *Gate) Capacity() int64 {
	return g.capacity
}

func (g *Gate) InFlight() int64 {
	return g.inFlight.Load()
}

func (g *Gate) Peak() int64 {
	return g.peak.Load()
}

func (g *Gate) notePeak(current int64) {
	for {
		peak := g.peak.Load()
		if current <= peak || g.peak.CompareAndSwap(peak, current) {
			return
		}
	}
}

func (g *Gate) report(current int64) {
	if g.observer != nil {
		g.observer.OnGateInFlight(current)
	}
}

// Gated runs fn under a permit of g and returns its value.
func Gated[T any](ctx context.Context, g *Gate, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.Do(ctx, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	return result, err
}
