package eventloop_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempo/pkg/logx"
	"tempo/pkg/sched"
	"tempo/pkg/sched/eventloop"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestWorkerRunsInSubmissionOrder(t *testing.T) {
	s := eventloop.New(logx.Nop())
	w := s.CreateWorker()
	defer w.Unsubscribe()

	const n = 50
	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < n; i++ {
		i := i
		w.ScheduleFunc(func(sched.Schedulable) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == n-1 {
				close(done)
			}
		})
	}
	waitDone(t, done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, n)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestWorkerNeverOverlaps(t *testing.T) {
	s := eventloop.New(logx.Nop())
	w := s.CreateWorker()
	defer w.Unsubscribe()

	const n = 40
	var running atomic.Int32
	var overlaps atomic.Int32
	var wg sync.WaitGroup
	done := make(chan struct{})
	var remaining atomic.Int32
	remaining.Store(n)

	job := func(sched.Schedulable) {
		if !running.CompareAndSwap(0, 1) {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		running.Store(0)
		if remaining.Add(-1) == 0 {
			close(done)
		}
	}

	// submissions race from many goroutines; execution must not
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.ScheduleFunc(job)
		}()
	}
	wg.Wait()
	waitDone(t, done)

	assert.Zero(t, overlaps.Load())
}

func TestDelayedItemWaitsForDeadline(t *testing.T) {
	s := eventloop.New(logx.Nop())
	w := s.CreateWorker()
	defer w.Unsubscribe()

	const delay = 50 * time.Millisecond
	start := time.Now()
	done := make(chan struct{})
	var ranAfter time.Duration

	w.ScheduleFuncAfter(delay, func(sched.Schedulable) {
		ranAfter = time.Since(start)
		close(done)
	})
	waitDone(t, done)

	assert.GreaterOrEqual(t, ranAfter, delay)
}

func TestUnsubscribeDropsPendingAndStopsLoop(t *testing.T) {
	s := eventloop.New(logx.Nop())
	w := s.CreateWorker()

	var ran atomic.Bool
	w.ScheduleFuncAfter(50*time.Millisecond, func(sched.Schedulable) {
		ran.Store(true)
	})
	w.Unsubscribe()

	time.Sleep(150 * time.Millisecond)
	assert.False(t, ran.Load())

	// submissions after cancellation are silently ignored
	scbl := sched.MakeSchedulable(w, func(sched.Schedulable) { ran.Store(true) })
	scbl.Schedule()
	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestEarlierDeadlinePreemptsLaterWait(t *testing.T) {
	s := eventloop.New(logx.Nop())
	w := s.CreateWorker()
	defer w.Unsubscribe()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	w.ScheduleFuncAfter(120*time.Millisecond, func(sched.Schedulable) {
		mu.Lock()
		order = append(order, "late")
		mu.Unlock()
		close(done)
	})
	w.ScheduleFuncAfter(20*time.Millisecond, func(sched.Schedulable) {
		mu.Lock()
		order = append(order, "early")
		mu.Unlock()
	})
	waitDone(t, done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestTailRecursionDrainsInline(t *testing.T) {
	s := eventloop.New(logx.Nop())
	w := s.CreateWorker()
	defer w.Unsubscribe()

	// with an empty queue the loop allows recursion, so all iterations
	// run within one dispatch turn
	calls := 0
	done := make(chan struct{})
	w.ScheduleFunc(func(self sched.Schedulable) {
		calls++
		if calls < 10 {
			self.RequestRecurse()
			return
		}
		close(done)
	})
	waitDone(t, done)

	assert.Equal(t, 10, calls)
}

func TestPoolSharedLoopSerializesWorkers(t *testing.T) {
	p := eventloop.NewPool(1, logx.Nop())
	defer p.Close()
	s := p.Scheduler()

	wa := s.CreateWorker()
	wb := s.CreateWorker()
	defer wa.Unsubscribe()
	defer wb.Unsubscribe()

	var running atomic.Int32
	var overlaps atomic.Int32
	var remaining atomic.Int32
	remaining.Store(20)
	done := make(chan struct{})

	job := func(sched.Schedulable) {
		if !running.CompareAndSwap(0, 1) {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		running.Store(0)
		if remaining.Add(-1) == 0 {
			close(done)
		}
	}
	for i := 0; i < 10; i++ {
		wa.ScheduleFunc(job)
		wb.ScheduleFunc(job)
	}
	waitDone(t, done)

	assert.Zero(t, overlaps.Load())
}

func TestPoolWorkerUnsubscribeLeavesLoopRunning(t *testing.T) {
	p := eventloop.NewPool(1, logx.Nop())
	defer p.Close()
	s := p.Scheduler()

	dead := s.CreateWorker()
	var deadRan atomic.Bool
	dead.ScheduleFuncAfter(30*time.Millisecond, func(sched.Schedulable) {
		deadRan.Store(true)
	})
	dead.Unsubscribe()

	live := s.CreateWorker()
	defer live.Unsubscribe()
	done := make(chan struct{})
	live.ScheduleFuncAfter(60*time.Millisecond, func(sched.Schedulable) {
		close(done)
	})

	waitDone(t, done)
	assert.False(t, deadRan.Load())
}
