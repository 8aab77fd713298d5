// Package sched is tempo's scheduling core: an abstraction over where and
// when a unit of work runs, decoupled from the execution strategy.
//
// The model:
//   - A Scheduler is a factory of Workers plus a clock.
//   - A Worker is an execution lane; everything scheduled on one worker
//     runs strictly in order with no overlap.
//   - A Schedulable binds an Action to a worker and to a cancellable
//     lifetime (package subscription); it is the unit a backend queues.
//   - The Recursion/Recurse/Recursed trio is the handshake that lets a
//     repeatedly rescheduling action loop in place instead of paying a
//     dispatch and queue round-trip per iteration.
//
// Keeping dynamic dispatch out of the inner loop matters: MakeAction
// builds a trampoline that shares two plain bools between the backend's
// run loop and the user function, so re-invocation is a branch, not a
// queue operation. The backend stays in control: it decides per turn
// whether in-place recursion is allowed, and a disallowed request falls
// back to the worker's queue.
//
// Concrete backends live in the subpackages immediate, eventloop and
// virtual. A backend must never invoke a schedulable whose lifetime is
// already unsubscribed; doing so aborts the process (see Invoke).
package sched
