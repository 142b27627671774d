package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/pkg/linuxav/v4l2"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-output-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "Output Devices",
		Description: "List V4L2 devices that accept frames, such as v4l2loopback nodes",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		found, err := s.options.ListDevices()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
		}

		list := make([]models.DeviceInfo, 0, len(found))
		for _, dev := range found {
			info := models.DeviceInfo{
				DevicePath: dev.DevicePath,
				DeviceName: dev.DeviceName,
				Driver:     dev.Driver,
				DeviceID:   dev.DeviceID,
				Caps:       dev.Caps,
			}
			// A loopback without a writer attached may refuse enumeration.
			if formats, fmtErr := v4l2.GetFormats(dev.DevicePath, true); fmtErr == nil {
				for _, f := range formats {
					info.Formats = append(info.Formats, v4l2.FormatFourCC(f.PixelFormat))
				}
			} else {
				s.logger.Debug("Format enumeration failed", "device", dev.DevicePath, "error", fmtErr)
			}
			list = append(list, info)
		}

		return &models.DevicesResponse{Body: models.DeviceData{Devices: list, Count: len(list)}}, nil
	})
}
