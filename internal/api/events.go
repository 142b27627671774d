package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/stream"
)

// registerSSERoutes registers the relay event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time connection state changes, first frames, device changes and publisher statistics",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connection-state": events.ConnectionStateChangedEvent{},
		"first-frame":      events.FirstFrameEvent{},
		"device-opened":    events.DeviceOpenedEvent{},
		"publisher-stats":  events.PublisherStatsEvent{},
		"device-hotplug":   events.DeviceHotplugEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 16)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ConnectionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FirstFrameEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceOpenedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PublisherStatsEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceHotplugEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// The first send flushes the response headers, so clients see the
		// stream open before any bus event fires.
		if err := send.Data(s.connectionSnapshot(time.Now())); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// connectionSnapshot reports the reader's current phase in the same shape as
// live connection-state events.
func (s *Server) connectionSnapshot(now time.Time) events.ConnectionStateChangedEvent {
	ev := events.ConnectionStateChangedEvent{
		Phase:     string(stream.PhaseIdle),
		Timestamp: now.Format(time.RFC3339),
	}
	if s.options.Relay == nil {
		return ev
	}
	st := s.options.Relay.Status().Stream
	if st.Phase != "" {
		ev.Phase = string(st.Phase)
	}
	ev.ConnID = st.ConnID
	ev.Attempt = st.Attempts
	ev.Error = st.LastError
	return ev
}
