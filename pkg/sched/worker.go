package sched

import (
	"time"

	"tempo/pkg/subscription"
)

// WorkerImpl is the capability a concrete backend supplies per worker.
// Implementations must run accepted items strictly one at a time and pop
// equal deadlines in submission order; the core's Queue provides that
// ordering.
type WorkerImpl interface {
	Now() time.Time
	Schedule(scbl Schedulable)
	ScheduleAt(when time.Time, scbl Schedulable)
}

// Worker is an execution lane: all items scheduled on the same worker run
// in order with no overlap, and unsubscribing the worker's lifetime
// cancels every pending and future item.
//
// Every schedule call first rebinds the submitted schedulable to this
// worker, so an item always executes on the worker it was queued to even
// if it originated bound to a different one.
type Worker struct {
	inner    WorkerImpl
	lifetime *subscription.Subscription
}

// NewWorker binds a backend implementation to a lifetime. A nil lifetime
// gets a fresh one.
func NewWorker(lifetime *subscription.Subscription, impl WorkerImpl) Worker {
	if lifetime == nil {
		lifetime = subscription.New()
	}
	return Worker{inner: impl, lifetime: lifetime}
}

// IsZero reports whether the worker has no backend bound.
func (w Worker) IsZero() bool { return w.inner == nil }

// Equal reports whether two handles are the same worker: same inner
// implementation and same lifetime instance, never structural.
func (w Worker) Equal(o Worker) bool {
	return w.inner == o.inner && w.lifetime == o.lifetime
}

// Subscription returns the worker's lifetime.
func (w Worker) Subscription() *subscription.Subscription { return w.lifetime }

// ---- lifetime forwarding (a worker is itself a unit of cancellable
// composition) ----

func (w Worker) IsSubscribed() bool { return w.lifetime.IsSubscribed() }

func (w Worker) Add(child *subscription.Subscription) subscription.Token {
	return w.lifetime.Add(child)
}

// AddTeardown registers a hook run when the worker's lifetime ends.
// Backends use this to stop their run loops.
func (w Worker) AddTeardown(f func()) subscription.Token {
	return w.lifetime.AddTeardown(f)
}

func (w Worker) Remove(t subscription.Token) { w.lifetime.Remove(t) }

func (w Worker) Clear() { w.lifetime.Clear() }

func (w Worker) Unsubscribe() { w.lifetime.Unsubscribe() }

// ---- scheduling ----

// Now returns the current time for this worker.
func (w Worker) Now() time.Time { return w.inner.Now() }

// Schedule queues the schedulable to run as soon as the backend's loop
// reaches it.
func (w Worker) Schedule(scbl Schedulable) {
	w.inner.Schedule(w.rebind(scbl))
}

// ScheduleAt queues the schedulable to run no earlier than when.
func (w Worker) ScheduleAt(when time.Time, scbl Schedulable) {
	w.inner.ScheduleAt(when, w.rebind(scbl))
}

// ScheduleAfter queues the schedulable to run at now + delay.
func (w Worker) ScheduleAfter(delay time.Duration, scbl Schedulable) {
	w.inner.ScheduleAt(w.Now().Add(delay), w.rebind(scbl))
}

// SchedulePeriodically runs the schedulable once at initial and then
// repeatedly every period. Each run advances the next deadline by exactly
// one period from the previous target, never from the current clock, so
// nominal deadlines stay anchored to initial. A run that overruns its
// period delays the next occurrence; there is no catch-up burst, and at
// most one occurrence is pending at a time. Runs continue until the
// worker or the schedulable is unsubscribed.
func (w Worker) SchedulePeriodically(initial time.Time, period time.Duration, scbl Schedulable) {
	target := &initial
	activity := w.rebind(scbl)
	periodic := InheritSchedulable(activity, w, MakeAction(func(self Schedulable) {
		// recursion requests from the inner action round-trip through
		// the worker's queue
		r := NewRecursion(false)
		activity.Invoke(r.Recurse())

		// if the run took longer than period the target is now in the
		// past and the next occurrence fires late, not twice
		*target = target.Add(period)
		self.ScheduleAt(*target)
	}))
	w.inner.ScheduleAt(*target, periodic)
}

// SchedulePeriodicallyAfter is SchedulePeriodically anchored at
// now + initial.
func (w Worker) SchedulePeriodicallyAfter(initial, period time.Duration, scbl Schedulable) {
	w.SchedulePeriodically(w.Now().Add(initial), period, scbl)
}

// ---- function-taking conveniences ----

// ScheduleFunc wraps fn in the recursion trampoline, binds it to this
// worker with a shared lifetime and queues it.
func (w Worker) ScheduleFunc(fn func(Schedulable)) {
	w.inner.Schedule(MakeSchedulable(w, fn))
}

// ScheduleFuncAt is ScheduleFunc with an absolute deadline.
func (w Worker) ScheduleFuncAt(when time.Time, fn func(Schedulable)) {
	w.inner.ScheduleAt(when, MakeSchedulable(w, fn))
}

// ScheduleFuncAfter is ScheduleFunc with a delay from now.
func (w Worker) ScheduleFuncAfter(delay time.Duration, fn func(Schedulable)) {
	w.inner.ScheduleAt(w.Now().Add(delay), MakeSchedulable(w, fn))
}

// SchedulePeriodicallyFunc is SchedulePeriodically over a plain function.
func (w Worker) SchedulePeriodicallyFunc(initial time.Time, period time.Duration, fn func(Schedulable)) {
	w.SchedulePeriodically(initial, period, MakeSchedulable(w, fn))
}

// rebind forces the schedulable onto this worker, inheriting its
// lifetime mode.
func (w Worker) rebind(scbl Schedulable) Schedulable {
	return InheritSchedulable(scbl, w, scbl.Action())
}
