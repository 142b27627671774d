// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/smazurov/camrelay/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Relay status models
type StreamStatus struct {
	Running       bool      `json:"running" doc:"Whether the reader loop is active"`
	Phase         string    `json:"phase" example:"streaming" enum:"idle,connecting,streaming,backoff,stopped" doc:"Connection phase"`
	ConnID        string    `json:"conn_id,omitempty" example:"0b6c4f0e-9d0a-4b1e-8f3c-1c2d3e4f5a6b" doc:"Identifier of the current connection attempt"`
	Attempts      uint64    `json:"attempts" example:"3" doc:"Connection attempts since start"`
	BackoffMs     int64     `json:"backoff_ms" example:"2000" doc:"Delay between reconnect attempts"`
	FramesDecoded uint64    `json:"frames_decoded" example:"1200" doc:"Frames decoded since start"`
	FramesDropped uint64    `json:"frames_dropped" example:"2" doc:"Frames that failed to decode"`
	Overflows     uint64    `json:"overflows" example:"0" doc:"Buffer overflows discarded by the scanner"`
	LastFrameAt   time.Time `json:"last_frame_at,omitzero" doc:"When the latest frame was decoded"`
	LastError     string    `json:"last_error,omitempty" example:"no data received within timeout" doc:"Most recent connection error"`
}

type PublisherStatus struct {
	FramesSent   uint64  `json:"frames_sent" example:"9000" doc:"Frames written to the device"`
	Placeholders uint64  `json:"placeholders" example:"60" doc:"Placeholder frames written"`
	Repeats      uint64  `json:"repeats" example:"120" doc:"Frames re-sent because no newer frame arrived"`
	ObservedFPS  float64 `json:"observed_fps" example:"29.8" doc:"Measured write rate over the last reporting window"`
}

type StatusData struct {
	StreamURL string          `json:"stream_url" example:"http://192.168.1.100:81/stream" doc:"Camera MJPEG endpoint"`
	Device    string          `json:"device" example:"/dev/video10" doc:"Virtual camera device"`
	Format    string          `json:"format" example:"yuyv" doc:"Device pixel format"`
	Width     int             `json:"width" example:"640" doc:"Output width"`
	Height    int             `json:"height" example:"480" doc:"Output height"`
	FPS       int             `json:"fps" example:"30" doc:"Target output frame rate"`
	StartedAt time.Time       `json:"started_at,omitzero" doc:"When the relay started"`
	UptimeSec float64         `json:"uptime_sec" example:"3600" doc:"Seconds since start"`
	Stream    StreamStatus    `json:"stream"`
	Publisher PublisherStatus `json:"publisher"`
}

type StatusResponse struct {
	Body StatusData
}

// Metrics models
type MetricsData struct {
	ConnectionAttempts uint64    `json:"connection_attempts" example:"3"`
	ConnectionFailures uint64    `json:"connection_failures" example:"2"`
	BytesReceived      uint64    `json:"bytes_received" example:"10485760"`
	FramesDecoded      uint64    `json:"frames_decoded" example:"1200"`
	FramesDropped      uint64    `json:"frames_dropped" example:"2"`
	FramesSent         uint64    `json:"frames_sent" example:"9000"`
	Placeholders       uint64    `json:"placeholders" example:"60"`
	Repeats            uint64    `json:"repeats" example:"120"`
	PublisherFPS       float64   `json:"publisher_fps" example:"29.8"`
	LastFrameAt        time.Time `json:"last_frame_at,omitzero"`
}

type MetricsResponse struct {
	Body MetricsData
}

// Device models
type DeviceInfo struct {
	DevicePath string   `json:"device_path" example:"/dev/video10" doc:"Device node"`
	DeviceName string   `json:"device_name" example:"Virtual Camera" doc:"Card name reported by the driver"`
	Driver     string   `json:"driver" example:"v4l2 loopback" doc:"Kernel driver"`
	DeviceID   string   `json:"device_id" example:"platform-v4l2loopback-0" doc:"Stable identifier"`
	Caps       uint32   `json:"caps" example:"69206018" doc:"Effective device capabilities bitmask"`
	Formats    []string `json:"formats,omitempty" example:"[\"YUYV\"]" doc:"Output pixel formats currently offered"`
}

type DeviceData struct {
	Devices []DeviceInfo `json:"devices" doc:"Video output devices"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

type DevicesResponse struct {
	Body DeviceData
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Number of most recent entries"`
	Module string `query:"module" example:"stream" doc:"Only return entries from this module"`
}

type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level" example:"info"`
	Module     string         `json:"module" example:"stream"`
	Message    string         `json:"message" example:"Connected to camera"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type LogsData struct {
	Entries []LogEntry `json:"entries"`
	Count   int        `json:"count" example:"100"`
}

type LogsResponse struct {
	Body LogsData
}

// Preview models
type SnapshotResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}
