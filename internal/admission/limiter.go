package admission

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/inkstory-labs/ink-core/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Result is the outcome of one sliding-window check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter answers "is this request within quota" against the durable
// store, so the decision is correct across server instances.
type Limiter struct {
	store  *store.Store
	log    *slog.Logger
	clock  func() time.Time
	wg     sync.WaitGroup
	checks metric.Int64Counter
}

func NewLimiter(st *store.Store, log *slog.Logger) *Limiter {
	l := &Limiter{
		store: st,
		log:   log.With(slog.String("component", "limiter")),
		clock: time.Now,
	}
	l.checks, _ = meter.Int64Counter("admission.limiter.checks",
		metric.WithDescription("Sliding-window checks by class and outcome"))
	return l
}

// Check counts durable records in the window and admits or denies.
// Counting and insertion are deliberately not one transaction: a race can
// admit a small bounded number of extra requests, which is accepted over
// the latency cost of locking. Store faults fail open.
func (l *Limiter) Check(ctx context.Context, identity string, class Class) Result {
	quota := QuotaFor(class)
	now := l.clock()
	windowStart := now.Add(-quota.Window)

	count, err := l.store.CountInWindow(ctx, identity, string(class), windowStart)
	if err != nil {
		l.log.Error("rate limit check failed, failing open",
			slog.String("identity", identity),
			slog.String("class", string(class)),
			slog.String("error", err.Error()))
		l.count(ctx, class, "fail_open")
		return Result{Allowed: true, Limit: quota.MaxRequests, Remaining: quota.MaxRequests, ResetAt: now.Add(quota.Window)}
	}

	if count >= quota.MaxRequests {
		resetAt := now.Add(quota.Window)
		if oldest, ok, oErr := l.store.OldestInWindow(ctx, identity, string(class), windowStart); oErr == nil && ok {
			resetAt = oldest.Add(quota.Window)
		}
		retryAfter := resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		l.count(ctx, class, "denied")
		return Result{Limit: quota.MaxRequests, ResetAt: resetAt, RetryAfter: retryAfter}
	}

	if err := l.store.RecordRequest(ctx, identity, string(class), now); err != nil {
		l.log.Error("failed to record admitted request, failing open",
			slog.String("identity", identity),
			slog.String("error", err.Error()))
		l.count(ctx, class, "fail_open")
		return Result{Allowed: true, Limit: quota.MaxRequests, Remaining: quota.MaxRequests, ResetAt: now.Add(quota.Window)}
	}

	l.gc(identity, class, windowStart)
	l.count(ctx, class, "allowed")
	return Result{
		Allowed:   true,
		Limit:     quota.MaxRequests,
		Remaining: quota.MaxRequests - count - 1,
		ResetAt:   now.Add(quota.Window),
	}
}

// Status reports the current window state without recording a request.
func (l *Limiter) Status(ctx context.Context, identity string, class Class) Result {
	quota := QuotaFor(class)
	now := l.clock()
	windowStart := now.Add(-quota.Window)

	count, err := l.store.CountInWindow(ctx, identity, string(class), windowStart)
	if err != nil {
		return Result{Allowed: true, Limit: quota.MaxRequests, Remaining: quota.MaxRequests, ResetAt: now.Add(quota.Window)}
	}
	remaining := quota.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count < quota.MaxRequests,
		Limit:     quota.MaxRequests,
		Remaining: remaining,
		ResetAt:   now.Add(quota.Window),
	}
}

// gc deletes expired rows for this identity off the request path. Errors
// are swallowed: a failed prune must never block request processing.
func (l *Limiter) gc(identity string, class Class, cutoff time.Time) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.store.PruneRequestsBefore(ctx, identity, string(class), cutoff); err != nil {
			l.log.Debug("rate limit gc failed", slog.String("error", err.Error()))
		}
	}()
}

// Close waits for in-flight garbage collection.
func (l *Limiter) Close() {
	l.wg.Wait()
}

func (l *Limiter) count(ctx context.Context, class Class, outcome string) {
	if l.checks == nil {
		return
	}
	l.checks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("class", string(class)),
		attribute.String("outcome", outcome)))
}
