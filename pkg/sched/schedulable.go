package sched

import (
	"runtime/debug"
	"time"

	"tempo/pkg/logx"
	"tempo/pkg/subscription"
)

// Schedulable is one unit of work: an Action bound to a Worker and to a
// cancellable lifetime. Copies are cheap and alias the same action and
// lifetime.
//
// Lifetime modes:
//   - shared (NewSchedulable): adopts the worker's own lifetime; no
//     registry entry is made.
//   - independent (NewScopedSchedulable): keeps its own lifetime and
//     registers it with the worker, so unsubscribing the worker cascades
//     to it. The registration is dropped automatically when the lifetime
//     terminates, or explicitly via Release.
//   - inherited (InheritSchedulable): copies whichever mode the source
//     schedulable was in.
type Schedulable struct {
	lifetime   *subscription.Subscription
	controller Worker
	activity   Action
	scoped     bool
	scope      subscription.Token

	// slot carries the recursion-request capability for the duration of
	// one invocation. Execution on a worker is serialized, so the slot is
	// never mutated concurrently.
	slot *recursedSlot
}

type recursedSlot struct {
	requestor *Recursed
}

// NewSchedulable binds action and worker with a shared lifetime.
func NewSchedulable(w Worker, a Action) Schedulable {
	return Schedulable{
		lifetime:   w.Subscription(),
		controller: w,
		activity:   a,
		slot:       &recursedSlot{},
	}
}

// NewScopedSchedulable binds action and worker with an independent
// lifetime, registered with the worker for cancellation cascade.
func NewScopedSchedulable(lifetime *subscription.Subscription, w Worker, a Action) Schedulable {
	return Schedulable{
		lifetime:   lifetime,
		controller: w,
		activity:   a,
		scoped:     true,
		scope:      w.Add(lifetime),
		slot:       &recursedSlot{},
	}
}

// InheritSchedulable binds action and worker with the lifetime mode of an
// existing schedulable. If the source was scoped, the source's lifetime
// is registered with the new worker too.
func InheritSchedulable(src Schedulable, w Worker, a Action) Schedulable {
	s := Schedulable{
		lifetime:   src.lifetime,
		controller: w,
		activity:   a,
		scoped:     src.scoped,
		slot:       &recursedSlot{},
	}
	if src.scoped {
		s.scope = w.Add(src.lifetime)
	}
	return s
}

// MakeSchedulable wraps fn in the recursion trampoline and binds it to w
// with a shared lifetime.
func MakeSchedulable(w Worker, fn func(Schedulable)) Schedulable {
	return NewSchedulable(w, MakeAction(fn))
}

// MakeScopedSchedulable wraps fn in the recursion trampoline and binds it
// to w with an independent lifetime.
func MakeScopedSchedulable(lifetime *subscription.Subscription, w Worker, fn func(Schedulable)) Schedulable {
	return NewScopedSchedulable(lifetime, w, MakeAction(fn))
}

// EmptySchedulable returns an always-cancelled schedulable for w.
func EmptySchedulable(w Worker) Schedulable {
	return NewScopedSchedulable(subscription.Empty(), w, EmptyAction())
}

// Subscription returns the bound lifetime.
func (s Schedulable) Subscription() *subscription.Subscription { return s.lifetime }

// Worker returns the bound worker.
func (s Schedulable) Worker() Worker { return s.controller }

// Action returns the bound action.
func (s Schedulable) Action() Action { return s.activity }

// Release drops this schedulable's registry entry on its worker without
// cancelling anything. Only meaningful for the independent-lifetime mode;
// unsubscribing the lifetime releases the entry automatically.
func (s Schedulable) Release() {
	if s.scoped {
		s.controller.Remove(s.scope)
	}
}

// SetRecursed installs the recursion-request capability for one
// invocation and returns the func that removes it; callers must run the
// returned func on every exit path.
func (s Schedulable) SetRecursed(r *Recurse) func() {
	req := r.Recursed()
	s.slot.requestor = &req
	return func() { s.slot.requestor = nil }
}

// IsRecursed reports whether an invocation scope is active.
func (s Schedulable) IsRecursed() bool {
	return s.slot != nil && s.slot.requestor != nil
}

// RequestRecurse asks for the same action to run again immediately.
// A function executing inside a scheduled action always has a live scope;
// calling this outside one is a programming error and terminates the
// process.
func (s Schedulable) RequestRecurse() {
	if s.slot == nil || s.slot.requestor == nil {
		abortf("recursion requested outside an invocation scope")
	}
	s.slot.requestor.Request()
}

// ---- lifetime forwarding ----

// IsSubscribed reports whether the bound lifetime is still live.
func (s Schedulable) IsSubscribed() bool { return s.lifetime.IsSubscribed() }

func (s Schedulable) Add(child *subscription.Subscription) subscription.Token {
	return s.lifetime.Add(child)
}

func (s Schedulable) Remove(t subscription.Token) { s.lifetime.Remove(t) }

func (s Schedulable) Clear() { s.lifetime.Clear() }

func (s Schedulable) Unsubscribe() { s.lifetime.Unsubscribe() }

// ---- scheduling ----

// Now returns the bound worker's clock reading.
func (s Schedulable) Now() time.Time { return s.controller.Now() }

// Schedule queues this schedulable on its worker to run as soon as the
// backend's loop reaches it. A no-op once the lifetime is cancelled.
func (s Schedulable) Schedule() {
	if s.IsSubscribed() {
		s.controller.Schedule(s)
	}
}

// ScheduleAt queues this schedulable to run no earlier than when.
// A no-op once the lifetime is cancelled.
func (s Schedulable) ScheduleAt(when time.Time) {
	if s.IsSubscribed() {
		s.controller.ScheduleAt(when, s)
	}
}

// ScheduleAfter queues this schedulable to run after a delay from now.
// A no-op once the lifetime is cancelled.
func (s Schedulable) ScheduleAfter(d time.Duration) {
	if s.IsSubscribed() {
		s.controller.ScheduleAfter(d, s)
	}
}

// Invoke runs the action. The backend must have checked the lifetime:
// invoking an unsubscribed schedulable terminates the process.
//
// A panic escaping the action cancels this schedulable only; it never
// propagates into the backend's run loop.
func (s Schedulable) Invoke(r *Recurse) {
	if !s.IsSubscribed() {
		abortf("unsubscribed schedulable invoked")
	}
	defer func() {
		if p := recover(); p != nil {
			s.Unsubscribe()
			logger().Error("schedulable panicked, cancelled",
				logx.Any("panic", p),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	s.activity.Invoke(s, r)
}
