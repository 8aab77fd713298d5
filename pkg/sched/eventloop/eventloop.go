// Package eventloop is the goroutine-backed backend.
//
// New gives every worker its own dedicated goroutine draining a
// time-ordered queue; the goroutine stops when the worker's lifetime
// ends. NewPool shares a fixed set of loops between workers instead,
// round-robining each new worker onto the next loop.
//
// Fairness policy: a loop allows tail recursion only while its queue is
// empty. As soon as other work is pending, recursion requests fall back
// to the queue so they interleave with it.
package eventloop

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tempo/pkg/logx"
	"tempo/pkg/sched"
	"tempo/pkg/subscription"
)

type scheduler struct {
	log logx.Logger
}

// New returns a scheduler that spawns one dedicated loop goroutine per
// created worker.
func New(log logx.Logger) sched.Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return sched.NewScheduler(&scheduler{log: log})
}

func (s *scheduler) Now() time.Time { return time.Now() }

func (s *scheduler) CreateWorker(lifetime *subscription.Subscription) sched.Worker {
	l := newLoop(s.log)
	w := sched.NewWorker(lifetime, l)
	w.AddTeardown(l.stop)
	go l.run()
	return w
}

// loop is one run loop: a mutex-guarded time-ordered queue drained by a
// single goroutine. It implements sched.WorkerImpl.
type loop struct {
	id  string
	log logx.Logger

	mu sync.Mutex
	q  sched.Queue

	wake     chan struct{} // 1-buffered; nudges the drainer after a push
	done     chan struct{}
	stopOnce sync.Once
}

func newLoop(log logx.Logger) *loop {
	id := uuid.NewString()
	return &loop{
		id:   id,
		log:  log.With(logx.String("loop", id[:8])),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (l *loop) Now() time.Time { return time.Now() }

func (l *loop) Schedule(scbl sched.Schedulable) {
	l.ScheduleAt(time.Now(), scbl)
}

func (l *loop) ScheduleAt(when time.Time, scbl sched.Schedulable) {
	l.mu.Lock()
	l.q.Push(sched.TimeSchedulable{When: when, What: scbl})
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *loop) run() {
	l.log.Debug("loop started")
	defer l.log.Debug("loop stopped")

	recursion := sched.NewRecursion(false)
	for {
		select {
		case <-l.done:
			return
		default:
		}

		l.dispatchDue(recursion)

		l.mu.Lock()
		empty := l.q.Empty()
		var wait time.Duration
		if !empty {
			wait = time.Until(l.q.Top().When)
		}
		l.mu.Unlock()

		if empty {
			select {
			case <-l.wake:
			case <-l.done:
				return
			}
			continue
		}
		if wait <= 0 {
			// top became due between dispatch and here
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-l.wake:
			timer.Stop()
		case <-l.done:
			timer.Stop()
			return
		}
	}
}

// dispatchDue pops and invokes every item whose deadline has passed.
// Cancelled items are dropped unrun; backends must never invoke them.
func (l *loop) dispatchDue(recursion *sched.Recursion) {
	for {
		l.mu.Lock()
		if l.q.Empty() || l.q.Top().When.After(time.Now()) {
			l.mu.Unlock()
			return
		}
		item := l.q.Pop()
		recursion.Reset(l.q.Empty())
		l.mu.Unlock()

		if !item.What.IsSubscribed() {
			continue
		}
		item.What.Invoke(recursion.Recurse())
	}
}
