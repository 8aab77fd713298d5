// Package immediate is the inline backend: items run synchronously on
// the calling goroutine, after sleeping out any remaining delay.
//
// Tail recursion is never allowed here; a recursion request re-enters
// Schedule, which keeps each call's stack bounded. Because execution
// happens on the caller, the one-at-a-time guarantee holds per calling
// goroutine only.
package immediate

import (
	"time"

	"tempo/pkg/sched"
	"tempo/pkg/subscription"
)

type scheduler struct{}

// New returns the immediate scheduler.
func New() sched.Scheduler {
	return sched.NewScheduler(scheduler{})
}

func (scheduler) Now() time.Time { return time.Now() }

func (scheduler) CreateWorker(lifetime *subscription.Subscription) sched.Worker {
	return sched.NewWorker(lifetime, worker{})
}

type worker struct{}

func (worker) Now() time.Time { return time.Now() }

func (w worker) Schedule(scbl sched.Schedulable) {
	w.ScheduleAt(time.Now(), scbl)
}

func (worker) ScheduleAt(when time.Time, scbl sched.Schedulable) {
	if d := time.Until(when); d > 0 {
		time.Sleep(d)
	}
	if !scbl.IsSubscribed() {
		return
	}
	r := sched.NewRecursion(false)
	scbl.Invoke(r.Recurse())
}
