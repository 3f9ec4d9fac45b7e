package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Each subscriber gets its own queue,
// so Publish never waits for handlers.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(TargetAddedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case TargetStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case TargetSignalEvent:
		event.Publish(b.dispatcher, e)
	case TargetAddedEvent:
		event.Publish(b.dispatcher, e)
	case TargetRemovedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type of its argument and returns
// an unsubscribe function. Unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e TargetAddedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(TargetStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TargetSignalEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TargetAddedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TargetRemovedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
