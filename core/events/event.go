package events

import "cantorfi/core/types"

// Event represents a structured state change emitted by the engine.
type Event interface {
	EventType() string
}

// Renderable events can be flattened into a broadcastable payload.
type Renderable interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. HTTP streams, the
// journal).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events until the surrounding transaction decides whether to
// publish or drop them.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(e Event) {
	if b == nil || e == nil {
		return
	}
	b.events = append(b.events, e)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	if b == nil {
		return nil
	}
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Flush forwards the buffered events to target and clears the buffer.
func (b *Buffer) Flush(target Emitter) {
	if b == nil {
		return
	}
	if target != nil {
		for _, e := range b.events {
			target.Emit(e)
		}
	}
	b.events = nil
}

// Reset drops all buffered events.
func (b *Buffer) Reset() {
	if b != nil {
		b.events = nil
	}
}

// Fanout emits every event to each of its members.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(e Event) {
	for _, target := range f {
		if target != nil {
			target.Emit(e)
		}
	}
}

// Render flattens an event into its wire form. Events without a custom
// renderer produce an attribute-less payload.
func Render(e Event) *types.Event {
	if e == nil {
		return nil
	}
	if r, ok := e.(Renderable); ok {
		if out := r.Event(); out != nil {
			return out
		}
	}
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{}}
}
