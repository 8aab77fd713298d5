// Package virtual is the simulated-time backend used for deterministic
// tests: the clock only moves when the caller advances it, and every
// dispatch happens on the caller's goroutine.
//
// Tail recursion is never allowed; every recursion request round-trips
// through the queue, so a test observes the exact sequence of queue
// submissions an action produces.
package virtual

import (
	"sync"
	"time"

	"tempo/pkg/sched"
	"tempo/pkg/subscription"
)

// Scheduler is a virtual-time scheduler. The zero time ordering rules are
// identical to the real backends (deadline, then submission order).
//
// Advancing the clock is not safe from multiple goroutines at once;
// scheduling onto it from within a dispatched action is fine.
type Scheduler struct {
	mu  sync.Mutex
	q   sched.Queue
	now time.Time
}

// New returns a virtual scheduler whose clock starts at start.
func New(start time.Time) *Scheduler {
	return &Scheduler{now: start}
}

// Scheduler returns the handle for scheduling onto this backend.
func (v *Scheduler) Scheduler() sched.Scheduler {
	return sched.NewScheduler(v)
}

func (v *Scheduler) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// CreateWorker returns a worker that shares this scheduler's clock and
// queue. All workers of one virtual scheduler serialize together.
func (v *Scheduler) CreateWorker(lifetime *subscription.Subscription) sched.Worker {
	return sched.NewWorker(lifetime, v)
}

func (v *Scheduler) Schedule(scbl sched.Schedulable) {
	v.ScheduleAt(v.Now(), scbl)
}

func (v *Scheduler) ScheduleAt(when time.Time, scbl sched.Schedulable) {
	v.mu.Lock()
	v.q.Push(sched.TimeSchedulable{When: when, What: scbl})
	v.mu.Unlock()
}

// Len reports the number of pending items.
func (v *Scheduler) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.q.Len()
}

// AdvanceTo dispatches, in deadline order, every item due at or before t,
// then sets the clock to t. Items an action schedules during dispatch are
// dispatched too if they fall within the window. The clock never moves
// backwards.
func (v *Scheduler) AdvanceTo(t time.Time) {
	recursion := sched.NewRecursion(false)
	for {
		v.mu.Lock()
		if v.q.Empty() || v.q.Top().When.After(t) {
			if t.After(v.now) {
				v.now = t
			}
			v.mu.Unlock()
			return
		}
		item := v.q.Pop()
		if item.When.After(v.now) {
			v.now = item.When
		}
		v.mu.Unlock()

		if !item.What.IsSubscribed() {
			continue
		}
		item.What.Invoke(recursion.Recurse())
	}
}

// AdvanceBy moves the clock forward by d, dispatching everything due.
func (v *Scheduler) AdvanceBy(d time.Duration) {
	v.AdvanceTo(v.Now().Add(d))
}

// Step dispatches the single earliest pending item regardless of its
// deadline, jumping the clock to it. It reports whether an item was
// dispatched.
func (v *Scheduler) Step() bool {
	recursion := sched.NewRecursion(false)
	for {
		v.mu.Lock()
		if v.q.Empty() {
			v.mu.Unlock()
			return false
		}
		item := v.q.Pop()
		if item.When.After(v.now) {
			v.now = item.When
		}
		v.mu.Unlock()

		if !item.What.IsSubscribed() {
			// dropped, not dispatched; keep looking
			continue
		}
		item.What.Invoke(recursion.Recurse())
		return true
	}
}

// RunToEmpty dispatches until no pending items remain. An action that
// always reschedules itself makes this loop forever; tests use it with
// self-terminating actions only.
func (v *Scheduler) RunToEmpty() {
	for v.Step() {
	}
}
