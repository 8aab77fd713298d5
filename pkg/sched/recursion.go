package sched

// The recursion handshake shares two plain bools between a backend's run
// loop and the user function so that requesting and granting another
// iteration costs a branch, not a dynamic dispatch or a queue round-trip.
//
// Ownership: Recursion owns the allow flag and is created fresh by each
// backend call site. Recurse borrows the allow flag and owns the request
// flag for one invocation. Recursed borrows only the request flag and is
// the single capability handed to the user function.

// Recursed is set on a schedulable by the action so the called function
// can request to be rescheduled.
type Recursed struct {
	requested *bool
}

// Request asks for another in-place iteration of the same action.
func (r Recursed) Request() { *r.requested = true }

// Recurse is passed to the action by the scheduler. The action uses it to
// coordinate the scheduler's allowance with the function's request.
type Recurse struct {
	allowed   *bool
	requested *bool
}

// IsAllowed reports whether the scheduler allows tail recursion now.
func (r *Recurse) IsAllowed() bool { return *r.allowed }

// IsRequested reports whether the function asked to be recursed.
func (r *Recurse) IsRequested() bool { return *r.requested }

// Reset clears the function request. Call before each call to the function.
func (r *Recurse) Reset() { *r.requested = false }

// Recursed returns the capability to install on the schedulable for the
// function to request recursion.
func (r *Recurse) Recursed() Recursed { return Recursed{requested: r.requested} }

// Recursion is owned by a scheduler's run loop and signals to each action
// whether tail recursion is currently allowed.
type Recursion struct {
	allowed   bool
	requested bool
	recurse   Recurse
}

// NewRecursion returns a recursion state with the given initial allowance.
func NewRecursion(allowed bool) *Recursion {
	r := &Recursion{allowed: allowed, requested: true}
	r.recurse = Recurse{allowed: &r.allowed, requested: &r.requested}
	return r
}

// Reset sets whether tail recursion is allowed. Only the run loop calls
// this, never the user function.
func (r *Recursion) Reset(allowed bool) { r.allowed = allowed }

// Recurse returns the per-invocation view to pass into each action call.
func (r *Recursion) Recurse() *Recurse { return &r.recurse }
