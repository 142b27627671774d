package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/internal/logging"
)

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Most recent entries from the in-memory log buffer, oldest first",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		entries := make([]models.LogEntry, 0, input.Limit)
		if buffer := logging.GetBuffer(); buffer != nil {
			all := buffer.ReadAll()
			// walk backwards so the module filter still yields Limit entries
			for i := len(all) - 1; i >= 0 && len(entries) < input.Limit; i-- {
				entry := all[i]
				if input.Module != "" && entry.Module != input.Module {
					continue
				}
				entries = append(entries, models.LogEntry{
					Timestamp:  entry.Timestamp,
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				})
			}
		}
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
		return &models.LogsResponse{Body: models.LogsData{Entries: entries, Count: len(entries)}}, nil
	})
}
