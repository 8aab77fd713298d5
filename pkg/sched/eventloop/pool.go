package eventloop

import (
	"runtime"
	"sync/atomic"
	"time"

	"tempo/pkg/logx"
	"tempo/pkg/sched"
	"tempo/pkg/subscription"
)

// Pool runs a fixed set of shared loops and assigns each created worker
// to one of them round-robin. Workers sharing a loop still serialize
// against each other; unsubscribing a worker drops its items without
// stopping the shared loop.
type Pool struct {
	loops []*loop
	next  atomic.Uint64
	log   logx.Logger
}

// NewPool starts n loop goroutines. n <= 0 means one per CPU.
func NewPool(n int, log logx.Logger) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Pool{log: log}
	for i := 0; i < n; i++ {
		l := newLoop(log)
		p.loops = append(p.loops, l)
		go l.run()
	}
	p.log.Info("scheduler pool started", logx.Int("loops", n))
	return p
}

// Scheduler returns the handle for scheduling onto this pool.
func (p *Pool) Scheduler() sched.Scheduler {
	return sched.NewScheduler(p)
}

func (p *Pool) Now() time.Time { return time.Now() }

// CreateWorker binds a new worker to the next loop in round-robin order.
func (p *Pool) CreateWorker(lifetime *subscription.Subscription) sched.Worker {
	i := p.next.Add(1)
	l := p.loops[int(i)%len(p.loops)]
	return sched.NewWorker(lifetime, l)
}

// Close stops every loop. Pending items are dropped; callers are
// expected to have unsubscribed their workers first.
func (p *Pool) Close() {
	for _, l := range p.loops {
		l.stop()
	}
	p.log.Info("scheduler pool stopped")
}
