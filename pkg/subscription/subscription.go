package subscription

import "sync"

// Token identifies one entry in a composite.
// The zero Token is valid to pass to Remove and does nothing.
type Token struct {
	id uint64
}

// IsZero reports whether the token refers to no entry.
func (t Token) IsZero() bool { return t.id == 0 }

type entry struct {
	child    *Subscription
	teardown func()
}

// Subscription is a scoped, cascading cancellation token.
//
// Equality between subscriptions is pointer identity; two composites are
// the same lifetime iff they are the same *Subscription.
type Subscription struct {
	mu           sync.Mutex
	unsubscribed bool
	seq          uint64
	children     map[uint64]entry
	index        map[*Subscription]uint64

	// observers run exactly once, after this subscription unsubscribes.
	// Used by parents to drop their registry entry for this child.
	observers []func()
}

// New returns a live composite with no children.
func New() *Subscription {
	return &Subscription{
		children: map[uint64]entry{},
		index:    map[*Subscription]uint64{},
	}
}

var empty = func() *Subscription {
	s := New()
	s.Unsubscribe()
	return s
}()

// Empty returns the distinguished always-unsubscribed instance.
// Anything bound to it observes IsSubscribed() == false from the start.
func Empty() *Subscription { return empty }

// IsSubscribed reports whether the lifetime is still live.
func (s *Subscription) IsSubscribed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unsubscribed
}

// Add registers a child lifetime. When this composite unsubscribes, the
// child is unsubscribed too. If the composite is already unsubscribed the
// child is unsubscribed immediately and no entry is made.
//
// When the child terminates on its own, its entry is removed from this
// composite automatically.
//
// Adding the same child twice is idempotent: the second call returns the
// first call's token. Scheduling paths re-register a schedulable's
// lifetime on every rebind, and the registry must stay bounded across
// the life of a long-lived worker.
func (s *Subscription) Add(child *Subscription) Token {
	if s == nil || child == nil || child == s {
		return Token{}
	}

	s.mu.Lock()
	if s.unsubscribed {
		s.mu.Unlock()
		child.Unsubscribe()
		return Token{}
	}
	if id, ok := s.index[child]; ok {
		s.mu.Unlock()
		return Token{id: id}
	}
	s.seq++
	id := s.seq
	s.children[id] = entry{child: child}
	s.index[child] = id
	s.mu.Unlock()

	// Self-removal keeps the registry bounded across a long-lived composite.
	child.onTerminate(func() { s.removeEntry(id) })
	return Token{id: id}
}

// AddTeardown registers a hook invoked once when the composite unsubscribes.
// If it is already unsubscribed the hook runs immediately.
func (s *Subscription) AddTeardown(f func()) Token {
	if s == nil || f == nil {
		return Token{}
	}

	s.mu.Lock()
	if s.unsubscribed {
		s.mu.Unlock()
		f()
		return Token{}
	}
	s.seq++
	id := s.seq
	s.children[id] = entry{teardown: f}
	s.mu.Unlock()
	return Token{id: id}
}

// Remove erases the entry for the token without unsubscribing it.
// Unknown and zero tokens are ignored.
func (s *Subscription) Remove(t Token) {
	if s == nil || t.id == 0 {
		return
	}
	s.removeEntry(t.id)
}

func (s *Subscription) removeEntry(id uint64) {
	s.mu.Lock()
	if s.children != nil {
		if e, ok := s.children[id]; ok {
			delete(s.children, id)
			if e.child != nil {
				delete(s.index, e.child)
			}
		}
	}
	s.mu.Unlock()
}

// Len reports the current number of registered entries.
func (s *Subscription) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// Clear unsubscribes and removes every entry while leaving the composite
// itself subscribed.
func (s *Subscription) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	snapshot := s.children
	if !s.unsubscribed {
		s.children = map[uint64]entry{}
		s.index = map[*Subscription]uint64{}
	}
	s.mu.Unlock()

	for _, e := range snapshot {
		e.release()
	}
}

// Unsubscribe tears down every entry and marks the composite dead.
// It is idempotent; only the first call performs teardown.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.unsubscribed {
		s.mu.Unlock()
		return
	}
	s.unsubscribed = true
	snapshot := s.children
	s.children = nil
	s.index = nil
	obs := s.observers
	s.observers = nil
	s.mu.Unlock()

	// Teardown outside the lock: children may re-enter (e.g. to remove
	// themselves from other composites).
	for _, e := range snapshot {
		e.release()
	}
	for _, f := range obs {
		f()
	}
}

func (e entry) release() {
	if e.child != nil {
		e.child.Unsubscribe()
	}
	if e.teardown != nil {
		e.teardown()
	}
}

// onTerminate registers f to run once this subscription unsubscribes,
// immediately if it already has.
func (s *Subscription) onTerminate(f func()) {
	s.mu.Lock()
	if s.unsubscribed {
		s.mu.Unlock()
		f()
		return
	}
	s.observers = append(s.observers, f)
	s.mu.Unlock()
}
