package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/relay"
)

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Relay Status",
		Description: "Connection phase, frame counters and output configuration",
		Tags:        []string{"relay"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		if s.options.Relay == nil {
			return nil, huma.Error503ServiceUnavailable("Relay not running")
		}
		return &models.StatusResponse{Body: toStatusData(s.options.Relay.Status(), time.Now())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-metrics",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Snapshot",
		Description: "Counters since process start, as JSON. Prometheus scrapes /metrics instead.",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.MetricsResponse, error) {
		snap := metrics.Get()
		return &models.MetricsResponse{Body: models.MetricsData{
			ConnectionAttempts: snap.ConnectionAttempts,
			ConnectionFailures: snap.ConnectionFailures,
			BytesReceived:      snap.BytesReceived,
			FramesDecoded:      snap.FramesDecoded,
			FramesDropped:      snap.FramesDropped,
			FramesSent:         snap.FramesSent,
			Placeholders:       snap.Placeholders,
			Repeats:            snap.Repeats,
			PublisherFPS:       snap.PublisherFPS,
			LastFrameAt:        snap.LastFrameAt,
		}}, nil
	})
}

func toStatusData(st relay.Status, now time.Time) models.StatusData {
	data := models.StatusData{
		StreamURL: st.StreamURL,
		Device:    st.Device,
		Format:    st.Format,
		Width:     st.Width,
		Height:    st.Height,
		FPS:       st.FPS,
		StartedAt: st.StartedAt,
		Stream: models.StreamStatus{
			Running:       st.Stream.Running,
			Phase:         string(st.Stream.Phase),
			ConnID:        st.Stream.ConnID,
			Attempts:      st.Stream.Attempts,
			BackoffMs:     st.Stream.Backoff.Milliseconds(),
			FramesDecoded: st.Stream.FramesDecoded,
			FramesDropped: st.Stream.FramesDropped,
			Overflows:     st.Stream.Overflows,
			LastFrameAt:   st.Stream.LastFrameAt,
			LastError:     st.Stream.LastError,
		},
		Publisher: models.PublisherStatus{
			FramesSent:   st.Publisher.FramesSent,
			Placeholders: st.Publisher.Placeholders,
			Repeats:      st.Publisher.Repeats,
			ObservedFPS:  st.Publisher.ObservedFPS,
		},
	}
	if !st.StartedAt.IsZero() {
		data.UptimeSec = now.Sub(st.StartedAt).Seconds()
	}
	return data
}
