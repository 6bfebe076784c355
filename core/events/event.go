package events

import (
	"sync"

	"escrowchain/core/types"
)

// Event represents a structured state change emitted by the escrow engine.
type Event interface {
	EventType() string
}

// Typed is implemented by events that carry the canonical payload.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload extracts the canonical payload from evt when available.
func Payload(evt Event) *types.Event {
	typed, ok := evt.(Typed)
	if !ok {
		return nil
	}
	return typed.Event()
}

// Buffer collects events until they are flushed or discarded. The host uses it
// so that events raised by an aborted call never reach subscribers.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Drain returns the buffered events and resets the buffer.
func (b *Buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Discard drops the buffered events.
func (b *Buffer) Discard() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Fanout forwards every event to each configured emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
