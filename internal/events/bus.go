package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for in-process broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
// A nil bus is a no-op so components can run without one.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case ConnectionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case FirstFrameEvent:
		event.Publish(b.dispatcher, e)
	case DeviceOpenedEvent:
		event.Publish(b.dispatcher, e)
	case PublisherStatsEvent:
		event.Publish(b.dispatcher, e)
	case DeviceHotplugEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; the handler's parameter type selects the
// events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e FirstFrameEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ConnectionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FirstFrameEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PublisherStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceHotplugEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
