package sched_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempo/pkg/sched"
	"tempo/pkg/sched/virtual"
	"tempo/pkg/subscription"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestTrampolineRecursionInPlace(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	const extra = 5
	calls := 0
	scbl := sched.MakeSchedulable(w, func(self sched.Schedulable) {
		calls++
		if calls <= extra {
			self.RequestRecurse()
		}
	})

	rn := sched.NewRecursion(true)
	scbl.Invoke(rn.Recurse())

	assert.Equal(t, extra+1, calls)
	assert.Equal(t, 0, v.Len(), "allowed recursion must not touch the queue")
}

func TestTrampolineRecursionViaQueue(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	const extra = 5
	calls := 0
	scbl := sched.MakeSchedulable(w, func(self sched.Schedulable) {
		calls++
		if calls <= extra {
			self.RequestRecurse()
		}
	})

	rn := sched.NewRecursion(false)
	scbl.Invoke(rn.Recurse())

	// one call per turn, the request became a queue submission
	require.Equal(t, 1, calls)
	require.Equal(t, 1, v.Len())

	v.RunToEmpty()
	assert.Equal(t, extra+1, calls, "both recursion modes run the function the same number of times")
	assert.Equal(t, 0, v.Len())
}

func TestTrampolineStopsWhenUnsubscribedMidRun(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	calls := 0
	scbl := sched.MakeSchedulable(w, func(self sched.Schedulable) {
		calls++
		self.Unsubscribe()
		self.RequestRecurse()
	})

	rn := sched.NewRecursion(true)
	scbl.Invoke(rn.Recurse())

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, v.Len(), "a dead lifetime must not produce a submission")
}

func TestScheduleAtDispatchesAtDeadline(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	var ranAt time.Time
	w.ScheduleFuncAt(t0.Add(10*time.Second), func(s sched.Schedulable) {
		ranAt = s.Now()
	})

	v.AdvanceTo(t0.Add(9 * time.Second))
	require.True(t, ranAt.IsZero(), "must not run before its deadline")

	v.AdvanceTo(t0.Add(11 * time.Second))
	assert.Equal(t, t0.Add(10*time.Second), ranAt)
}

func TestPeriodicDeadlinesStayAnchored(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	period := time.Second
	first := t0.Add(period)

	var fired []time.Time
	scbl := sched.MakeSchedulable(w, func(s sched.Schedulable) {
		fired = append(fired, s.Now())
	})
	w.SchedulePeriodically(first, period, scbl)

	v.AdvanceTo(t0.Add(5*period + period/2))

	require.Len(t, fired, 5)
	for i, got := range fired {
		assert.Equal(t, first.Add(time.Duration(i)*period), got,
			"occurrence %d drifted", i)
	}
	assert.Equal(t, 1, v.Len(), "exactly one occurrence pending at a time")
}

func TestPeriodicStopsOnUnsubscribe(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	lifetime := subscription.New()
	fired := 0
	scbl := sched.MakeScopedSchedulable(lifetime, w, func(sched.Schedulable) {
		fired++
	})
	w.SchedulePeriodically(t0.Add(time.Second), time.Second, scbl)

	v.AdvanceTo(t0.Add(2 * time.Second))
	require.Equal(t, 2, fired)

	lifetime.Unsubscribe()
	v.AdvanceTo(t0.Add(10 * time.Second))

	assert.Equal(t, 2, fired)
	assert.Equal(t, 0, v.Len(), "cancelled occurrence is dropped, not kept")
}

func TestWorkerUnsubscribeDropsPending(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	ran := false
	w.ScheduleFuncAfter(time.Second, func(sched.Schedulable) { ran = true })
	require.Equal(t, 1, v.Len())

	w.Unsubscribe()
	v.AdvanceTo(t0.Add(time.Minute))

	assert.False(t, ran)
	assert.Equal(t, 0, v.Len())
}

func TestScheduleAfterCancelIsNoOp(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	scbl := sched.MakeSchedulable(w, func(sched.Schedulable) {})
	w.Unsubscribe()

	scbl.Schedule()
	scbl.ScheduleAt(t0.Add(time.Second))
	scbl.ScheduleAfter(time.Second)

	assert.Equal(t, 0, v.Len())
}

func TestScopedSchedulableOnDeadWorkerIsDead(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()
	w.Unsubscribe()

	lifetime := subscription.New()
	scbl := sched.MakeScopedSchedulable(lifetime, w, func(sched.Schedulable) {})

	assert.False(t, scbl.IsSubscribed())
	assert.False(t, lifetime.IsSubscribed())
}

func TestScheduleRebindsToSubmittingWorker(t *testing.T) {
	v := virtual.New(t0)
	s := v.Scheduler()
	wa := s.CreateWorker()
	wb := s.CreateWorker()

	var got sched.Worker
	scbl := sched.MakeSchedulable(wa, func(self sched.Schedulable) {
		got = self.Worker()
	})
	wb.Schedule(scbl)
	v.RunToEmpty()

	assert.True(t, got.Equal(wb))
	assert.False(t, got.Equal(wa))
}

func TestWorkerRegistryStaysBounded(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()
	base := w.Subscription().Len()

	for i := 0; i < 100; i++ {
		lifetime := subscription.New()
		scbl := sched.MakeScopedSchedulable(lifetime, w, func(sched.Schedulable) {})
		scbl.Schedule()
		scbl.Schedule()
		v.RunToEmpty()
		lifetime.Unsubscribe()
	}

	assert.Equal(t, base, w.Subscription().Len())
}

func TestRepeatedRebindDedupesRegistryEntry(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()
	base := w.Subscription().Len()

	lifetime := subscription.New()
	scbl := sched.MakeScopedSchedulable(lifetime, w, func(sched.Schedulable) {})
	for i := 0; i < 50; i++ {
		scbl.Schedule()
	}
	v.RunToEmpty()

	assert.Equal(t, base+1, w.Subscription().Len())

	scbl.Release()
	assert.Equal(t, base, w.Subscription().Len())
	assert.True(t, lifetime.IsSubscribed(), "release must not cancel")
}

func TestPanicCancelsSchedulableOnly(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	boom := sched.MakeSchedulable(w, func(sched.Schedulable) {
		panic("boom")
	})
	boom.Schedule()

	ran := false
	w2 := v.Scheduler().CreateWorker()
	w2.ScheduleFunc(func(sched.Schedulable) { ran = true })

	require.NotPanics(t, func() { v.RunToEmpty() })
	assert.False(t, boom.IsSubscribed())
	assert.True(t, ran, "dispatch continues after a panicked item")
	assert.False(t, w.IsSubscribed(), "shared lifetime takes the worker down with it")
}

func TestHandleEquality(t *testing.T) {
	v := virtual.New(t0)
	s := v.Scheduler()

	assert.True(t, s.Equal(v.Scheduler()))
	assert.False(t, s.IsZero())
	assert.True(t, sched.Scheduler{}.IsZero())

	wa := s.CreateWorker()
	wb := s.CreateWorker()
	assert.True(t, wa.Equal(wa))
	assert.False(t, wa.Equal(wb), "same backend, distinct lifetimes")
	assert.True(t, sched.Worker{}.IsZero())
	assert.False(t, wa.IsZero())
}

func TestSchedulerClockDelegates(t *testing.T) {
	v := virtual.New(t0)
	s := v.Scheduler()
	w := s.CreateWorker()

	assert.Equal(t, t0, s.Now())
	assert.Equal(t, t0, w.Now())

	v.AdvanceBy(time.Minute)
	assert.Equal(t, t0.Add(time.Minute), w.Now())
}

func TestEmptySchedulableIsDead(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	e := sched.EmptySchedulable(w)
	assert.False(t, e.IsSubscribed())

	e.Schedule()
	assert.Equal(t, 0, v.Len())
}

func TestVirtualStepJumpsClock(t *testing.T) {
	v := virtual.New(t0)
	w := v.Scheduler().CreateWorker()

	var ranAt time.Time
	w.ScheduleFuncAt(t0.Add(time.Hour), func(s sched.Schedulable) {
		ranAt = s.Now()
	})

	require.True(t, v.Step())
	assert.Equal(t, t0.Add(time.Hour), ranAt)
	assert.Equal(t, t0.Add(time.Hour), v.Now())
	assert.False(t, v.Step())
}
