// Package stream implements the per-request event multiplexer: a single
// ordered, append-only sink that merges the model's text deltas with the
// sideband events emitted by tool sub-tasks (document lifecycle markers,
// suggestion objects) into one client-visible sequence.
package stream

import (
	"context"
	"errors"
	"sync"
)

// EventType discriminates the sideband events multiplexed into the stream.
type EventType string

const (
	// EventMessage carries one delta of the assistant's own reply text,
	// the primary stream channel. All other types are sideband.
	EventMessage EventType = "message"

	// EventID announces the id of a document being drafted or updated.
	EventID EventType = "id"

	// EventTitle announces the title of a document being drafted.
	EventTitle EventType = "title"

	// EventClear tells the client to reset the document view before new
	// content arrives (start of a draft or a wholesale update).
	EventClear EventType = "clear"

	// EventTextDelta carries one chunk of generated text.
	EventTextDelta EventType = "text-delta"

	// EventSuggestion carries one validated suggestion object.
	EventSuggestion EventType = "suggestion"

	// EventFinish marks the successful completion of a document sub-task.
	EventFinish EventType = "finish"
)

// Event is the transient unit relayed to the client. It is never persisted.
type Event struct {
	Type    EventType `json:"type"`
	Content any       `json:"content"`
}

// ErrClosed is returned by Append and Close after the mux has been closed.
// An Append after Close is a programming invariant violation inside the
// pipeline, not a user-facing condition.
var ErrClosed = errors.New("stream: mux is closed")

// OutputFunc receives events in append order. It is called with the mux
// lock held, so implementations must not call back into the mux.
type OutputFunc func(Event) error

// Mux is the single shared mutable resource of a request pipeline. Appends
// from the step loop and from concurrently running tool sub-tasks are
// serialized by a mutex so delivery order equals append order.
type Mux struct {
	mu     sync.Mutex
	out    OutputFunc
	closed bool
}

// New creates a mux that forwards every appended event to out.
func New(out OutputFunc) *Mux {
	return &Mux{out: out}
}

// Append delivers one event to the client stream.
// Returns ErrClosed if the mux has been closed.
func (m *Mux) Append(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	return m.out(ev)
}

// Close marks the stream complete. It must be called exactly once, after
// the step loop has fully finished (including finalization persistence);
// closing earlier would truncate in-flight sub-task events.
func (m *Mux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	return nil
}

// sinkKey uses an empty struct for a zero-allocation context key.
type sinkKey struct{}

// ContextWithSink stores the request's mux in the context. The step loop
// sets it once per request; tool sub-tasks retrieve it to emit their
// sideband events into the same ordered stream.
func ContextWithSink(ctx context.Context, m *Mux) context.Context {
	return context.WithValue(ctx, sinkKey{}, m)
}

// SinkFromContext retrieves the request's mux from the context.
// Returns nil if not set, allowing graceful degradation (events dropped).
func SinkFromContext(ctx context.Context) *Mux {
	m, _ := ctx.Value(sinkKey{}).(*Mux)
	return m
}
