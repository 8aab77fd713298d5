package sched

// Action is a copyable, type-forgetting handle over a single function of
// shape func(Schedulable, *Recurse). Copies alias the same underlying
// function; an Action is immutable after construction.
type Action struct {
	inner *actionHandler
}

type actionHandler struct {
	f func(Schedulable, *Recurse)
}

var sharedEmptyAction = &actionHandler{}

// EmptyAction returns the shared no-op sentinel. Invoking it aborts.
func EmptyAction() Action { return Action{inner: sharedEmptyAction} }

// IsZero reports whether the action has no handler at all.
func (a Action) IsZero() bool { return a.inner == nil }

// Invoke calls the wrapped function. Invoking a zero or empty action is a
// programming error and terminates the process.
func (a Action) Invoke(s Schedulable, r *Recurse) {
	if a.inner == nil || a.inner.f == nil {
		abortf("empty action invoked")
	}
	a.inner.f(s, r)
}

// MakeAction wraps a plain func(Schedulable) in the tail-recursion
// trampoline. The function signals "run me again immediately" by calling
// s.RequestRecurse(); while the backend allows it, the trampoline
// re-invokes the function in place, and when it does not, the request is
// pushed back through the worker's queue so the backend's fairness policy
// governs the next run. With neither a request nor an allowance the loop
// ends and the turn yields back to the backend.
func MakeAction(fn func(Schedulable)) Action {
	return Action{inner: &actionHandler{f: func(s Schedulable, r *Recurse) {
		restore := s.SetRecursed(r)
		defer restore()
		for s.IsSubscribed() {
			r.Reset()
			fn(s)
			if !r.IsAllowed() || !r.IsRequested() {
				if r.IsRequested() {
					s.Schedule()
				}
				break
			}
		}
	}}}
}
