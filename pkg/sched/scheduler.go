package sched

import (
	"time"

	"tempo/pkg/subscription"
)

// SchedulerImpl is the capability a concrete backend supplies to act as a
// scheduler: a clock and a worker factory.
type SchedulerImpl interface {
	Now() time.Time
	CreateWorker(lifetime *subscription.Subscription) Worker
}

// Scheduler is a strategy for creating workers and reporting time.
// Construction of a scheduler is the only place a concrete strategy is
// chosen. Copies alias the same underlying implementation.
type Scheduler struct {
	inner SchedulerImpl
}

// NewScheduler wraps a backend implementation in a scheduler handle.
func NewScheduler(impl SchedulerImpl) Scheduler {
	return Scheduler{inner: impl}
}

// IsZero reports whether the scheduler has no backend bound.
func (s Scheduler) IsZero() bool { return s.inner == nil }

// Equal reports whether two handles share the same implementation.
func (s Scheduler) Equal(o Scheduler) bool { return s.inner == o.inner }

// Now returns the current time for this scheduler.
func (s Scheduler) Now() time.Time { return s.inner.Now() }

// CreateWorker creates a worker with a fresh lifetime. Unsubscribing the
// worker unsubscribes everything it will ever run. Items scheduled to the
// worker run one at a time, and items with equal deadlines run in the
// order they were scheduled.
func (s Scheduler) CreateWorker() Worker {
	return s.inner.CreateWorker(subscription.New())
}

// CreateWorkerWith creates a worker bound to the given lifetime. A nil
// lifetime gets a fresh one.
func (s Scheduler) CreateWorkerWith(lifetime *subscription.Subscription) Worker {
	if lifetime == nil {
		lifetime = subscription.New()
	}
	return s.inner.CreateWorker(lifetime)
}
