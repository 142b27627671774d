package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges callback subscriptions to a channel for SSE
// handlers. Events are dropped when ch is full. A nil bus yields a no-op
// unsubscribe.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	if bus == nil {
		return func() {}
	}
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
