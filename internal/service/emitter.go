package service

import "context"

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from the delivery channel
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for pushing change notifications to whatever
// surface consumes the engine (view layer, agent server). Services receive
// this interface so they stay independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Event names emitted by the services.
const (
	EventCompositionChanged = "composition:changed"
	EventBlockCreated       = "block:created"
	EventBlockUpdated       = "block:updated"
	EventBlockDeleted       = "block:deleted"
)

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) {}
