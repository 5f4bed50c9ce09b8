package mockfs

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Callback receives operation events. A returned error, or a panic, counts as
// a callback failure for the occurrence.
type Callback func(ev Event) error

// Subscription is a registered callback. It stays active until Release is
// called; a subscription that is never released lives as long as its bus.
type Subscription struct {
	id       string
	callback Callback
	filter   opMask // empty matches every operation
	alive    atomic.Bool
	reg      *registry
}

// newSubscription creates an active subscription bound to reg.
func newSubscription(reg *registry, cb Callback, filter opMask) *Subscription {
	s := &Subscription{
		id:       uuid.New().String(),
		callback: cb,
		filter:   filter,
		reg:      reg,
	}
	s.alive.Store(true)

	return s
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s.alive.Load()
}

// Operations returns the operations the subscription is filtered to,
// or nil if it receives every operation.
func (s *Subscription) Operations() []Operation {
	return s.filter.operations()
}

// Release removes the subscription from its bus. It is idempotent and safe
// to call from any goroutine, including from inside a callback.
func (s *Subscription) Release() {
	if s.alive.CompareAndSwap(true, false) {
		s.reg.remove(s)
	}
}

// handles reports whether the subscription's filter admits op.
func (s *Subscription) handles(op Operation) bool {
	return s.filter == 0 || s.filter.has(op)
}

// invoke runs the callback, converting a panic into a *PanicError.
func (s *Subscription) invoke(ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				SubscriptionID: s.id,
				Op:             ev.Op,
				Path:           ev.Path,
				Phase:          ev.Phase,
				Value:          r,
				Stack:          string(debug.Stack()),
			}
		}
	}()

	return s.callback(ev)
}

// registry holds the live subscriptions in registration order.
// The slice is copy-on-write: mutations install a new slice, so a slice
// returned by snapshot is never modified afterwards.
type registry struct {
	mu      sync.Mutex
	subs    []*Subscription
	version atomic.Uint64
}

// add appends s and advances the version.
func (r *registry) add(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]*Subscription, len(r.subs), len(r.subs)+1)
	copy(next, r.subs)
	r.subs = append(next, s)
	r.version.Add(1)
}

// remove deletes s and advances the version. It reports false if s was not registered.
func (r *registry) remove(s *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cur := range r.subs {
		if cur != s {
			continue
		}
		next := make([]*Subscription, 0, len(r.subs)-1)
		next = append(next, r.subs[:i]...)
		next = append(next, r.subs[i+1:]...)
		r.subs = next
		r.version.Add(1)

		return true
	}

	return false
}

// snapshot returns the subscriptions registered at the time of the call.
// The caller must not modify the returned slice.
func (r *registry) snapshot() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.subs
}

// len returns the number of registered subscriptions.
func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.subs)
}

// subscribe validates the arguments and registers a new subscription.
func (r *registry) subscribe(cb Callback, ops []Operation, filtered bool) (*Subscription, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}

	var filter opMask
	if filtered {
		if len(ops) == 0 {
			return nil, fmt.Errorf("%w: no operations to subscribe to", ErrInvalid)
		}
		m, ok := maskOf(ops...)
		if !ok {
			return nil, fmt.Errorf("%w: invalid operation in %v", ErrInvalid, ops)
		}
		filter = m
	}

	s := newSubscription(r, cb, filter)
	r.add(s)

	return s, nil
}
