// Package subscription provides the cascading cancellation token used by
// the scheduling packages.
//
// A Subscription is a composite: child lifetimes and teardown hooks are
// registered with Add/AddTeardown and are torn down exactly once when the
// composite is unsubscribed. Unsubscribing is idempotent and cascades.
//
// Registry discipline:
//   - Add returns a stable Token; Remove(token) erases the entry without
//     unsubscribing it.
//   - A child Subscription that terminates on its own removes itself from
//     every composite it was added to, so long-lived composites do not
//     accumulate dead entries.
package subscription
