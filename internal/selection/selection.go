// Package selection decides which of several competing selection controls
// currently drives a shared selection: the most recently touched one wins.
package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownSource is returned when recording for an undeclared source.
	ErrUnknownSource = errors.New("selection: unknown source")
	// ErrDuplicateSource is returned when a source is declared twice.
	ErrDuplicateSource = errors.New("selection: duplicate source")
)

// Kind tells how a Payload selects.
type Kind int

const (
	// KindNone selects everything.
	KindNone Kind = iota
	// KindQuery selects by free-text search.
	KindQuery
	// KindIDs selects an explicit identifier set, possibly empty.
	KindIDs
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindIDs:
		return "ids"
	default:
		return "none"
	}
}

// Payload is what a selection control emits.
type Payload struct {
	Kind  Kind
	Query string
	IDs   []string
}

// None is the "no selection" payload.
func None() Payload { return Payload{Kind: KindNone} }

// Query selects identifiers matching a search query.
func Query(q string) Payload { return Payload{Kind: KindQuery, Query: q} }

// IDs selects exactly the given identifiers. An empty slice selects nothing.
func IDs(ids []string) Payload {
	if ids == nil {
		ids = []string{}
	}
	return Payload{Kind: KindIDs, IDs: append([]string(nil), ids...)}
}

type payloadJSON struct {
	Kind  string   `json:"kind"`
	Query string   `json:"query,omitempty"`
	IDs   []string `json:"ids,omitempty"`
}

// MarshalJSON renders {"kind": ..., "query"|"ids": ...}.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case KindQuery:
		return json.Marshal(payloadJSON{Kind: "query", Query: p.Query})
	case KindIDs:
		// an empty set is meaningful, so "ids" is always written
		ids := p.IDs
		if ids == nil {
			ids = []string{}
		}
		return json.Marshal(struct {
			Kind string   `json:"kind"`
			IDs  []string `json:"ids"`
		}{"ids", ids})
	default:
		return json.Marshal(payloadJSON{Kind: "none"})
	}
}

// Event is one emission of a source at a point in time. A zero At means the
// source never emitted.
type Event struct {
	Source  string
	At      time.Time
	Payload Payload
}

// Resolve returns the payload of the event with the greatest timestamp.
// Ties go to the earliest event in the slice. When no event has a timestamp
// the result is None.
func Resolve(events []Event) Payload {
	best := -1
	for i, ev := range events {
		if ev.At.IsZero() {
			continue
		}
		if best < 0 || ev.At.After(events[best].At) {
			best = i
		}
	}
	if best < 0 {
		return None()
	}
	return events[best].Payload
}

// State holds the last event of every declared source. It is a value: Record
// returns a new State and leaves the receiver untouched.
type State struct {
	slots []Event
}

// NewState declares sources in tie-break order.
func NewState(sources ...string) (State, error) {
	slots := make([]Event, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		if _, dup := seen[src]; dup {
			return State{}, fmt.Errorf("%w: %q", ErrDuplicateSource, src)
		}
		seen[src] = struct{}{}
		slots[i] = Event{Source: src, Payload: None()}
	}
	return State{slots: slots}, nil
}

// Sources returns the declared sources in order.
func (s State) Sources() []string {
	out := make([]string, len(s.slots))
	for i, ev := range s.slots {
		out[i] = ev.Source
	}
	return out
}

// Events returns a copy of every slot in declaration order.
func (s State) Events() []Event {
	return append([]Event(nil), s.slots...)
}

// Record returns a copy of s with source's slot set to (at, p).
func (s State) Record(source string, at time.Time, p Payload) (State, error) {
	for i, ev := range s.slots {
		if ev.Source != source {
			continue
		}
		slots := append([]Event(nil), s.slots...)
		slots[i] = Event{Source: source, At: at, Payload: p}
		return State{slots: slots}, nil
	}
	return s, fmt.Errorf("%w: %q", ErrUnknownSource, source)
}

// Resolve returns the freshest payload.
func (s State) Resolve() Payload { return Resolve(s.slots) }

// Latest returns the winning event, if any source ever emitted.
func (s State) Latest() (Event, bool) {
	best := -1
	for i, ev := range s.slots {
		if ev.At.IsZero() {
			continue
		}
		if best < 0 || ev.At.After(s.slots[best].At) {
			best = i
		}
	}
	if best < 0 {
		return Event{}, false
	}
	return s.slots[best], true
}

// Equal reports whether both states hold the same sources and timestamps.
// Payload contents are not compared: a new emission always carries a new
// timestamp.
func (s State) Equal(o State) bool {
	if len(s.slots) != len(o.slots) {
		return false
	}
	for i := range s.slots {
		if s.slots[i].Source != o.slots[i].Source || !s.slots[i].At.Equal(o.slots[i].At) {
			return false
		}
	}
	return true
}
