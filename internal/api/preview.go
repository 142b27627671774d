package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrelay/internal/api/models"
)

func (s *Server) registerPreviewRoutes() {
	if s.options.Preview == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/preview/snapshot",
		Summary:     "Preview Snapshot",
		Description: "Latest preview frame as a JPEG. The live stream is served at /preview.mjpeg.",
		Tags:        []string{"preview"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, _ *struct{}) (*models.SnapshotResponse, error) {
		data := s.options.Preview.Snapshot()
		if data == nil {
			return nil, huma.Error404NotFound("No frame received yet")
		}
		return &models.SnapshotResponse{
			ContentType:  "image/jpeg",
			CacheControl: "no-store",
			Body:         data,
		}, nil
	})
}
