package selection

import (
	"sync"
	"time"
)

// Resolver is a State shared between goroutines. Each Record stamps the event
// with the resolver's clock; stamps are strictly increasing so that the most
// recent call always wins, even when the clock does not advance.
type Resolver struct {
	mu    sync.Mutex
	state State
	last  time.Time
	now   func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver declares sources in tie-break order.
func NewResolver(sources []string, opts ...ResolverOption) (*Resolver, error) {
	st, err := NewState(sources...)
	if err != nil {
		return nil, err
	}
	r := &Resolver{state: st, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record stores p as source's latest emission and returns the new state.
func (r *Resolver) Record(source string, p Payload) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.now()
	if !at.After(r.last) {
		at = r.last.Add(time.Nanosecond)
	}
	next, err := r.state.Record(source, at, p)
	if err != nil {
		return r.state, err
	}
	r.state = next
	r.last = at
	return next, nil
}

// State returns the current state snapshot.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Resolve returns the freshest payload.
func (r *Resolver) Resolve() Payload {
	return r.State().Resolve()
}
