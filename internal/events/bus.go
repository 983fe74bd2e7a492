package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// A nil bus drops the event.
// Usage: bus.Publish(ProcessStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	// Generic Publish needs the concrete type
	switch e := ev.(type) {
	case ProcessStartedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessStoppedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessCrashedEvent:
		event.Publish(b.dispatcher, e)
	case StartFailedEvent:
		event.Publish(b.dispatcher, e)
	case InputChangedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case ProgressEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ProcessCrashedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ProcessStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessCrashedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StartFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(InputChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
