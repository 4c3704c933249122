package admission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/inkstory-labs/ink-core/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/inkstory-labs/ink-core/internal/admission")

// ErrAlreadyInProgress reports that the identity already holds the
// generation lock. Callers must reject, never queue.
var ErrAlreadyInProgress = errors.New("a generation is already in progress for this identity")

// Lock guarantees at most one in-flight expensive generation per identity.
// Arbitration is delegated to the store's uniqueness constraint; only the
// storage layer can make that decision atomically across instances.
type Lock struct {
	store    *store.Store
	log      *slog.Logger
	acquires metric.Int64Counter
}

func NewLock(st *store.Store, log *slog.Logger) *Lock {
	g := &Lock{
		store: st,
		log:   log.With(slog.String("component", "generation-lock")),
	}
	g.acquires, _ = meter.Int64Counter("admission.lock.acquires",
		metric.WithDescription("Generation lock acquisitions by outcome"))
	return g
}

// Acquire attempts the unique-keyed insert. On success it returns a
// release function the caller must defer so the lock is released on every
// exit path; a stuck lock permanently blocks that identity.
func (g *Lock) Acquire(ctx context.Context, identity string) (func(), error) {
	if err := g.store.AcquireLock(ctx, identity); err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			g.count(ctx, "contended")
			return nil, ErrAlreadyInProgress
		}
		// a store fault must not silently allow concurrent generation;
		// this path is deliberately not fail-open, unlike the limiter
		g.count(ctx, "error")
		return nil, err
	}
	g.count(ctx, "acquired")

	var once sync.Once
	release := func() {
		once.Do(func() {
			// the request context may already be canceled; release anyway
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := g.store.ReleaseLock(ctx, identity); err != nil {
				g.log.Warn("failed to release generation lock; housekeeping will reap it",
					slog.String("identity", identity),
					slog.String("error", err.Error()))
			}
		})
	}
	return release, nil
}

func (g *Lock) count(ctx context.Context, outcome string) {
	if g.acquires == nil {
		return
	}
	g.acquires.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
