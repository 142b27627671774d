package events

// Event type constants for kelindar/event.
const (
	TypeConnectionStateChanged uint32 = iota + 1
	TypeFirstFrame
	TypeDeviceOpened
	TypePublisherStats
	TypeDeviceHotplug
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ConnectionStateChangedEvent is published by the stream reader whenever its
// connection phase changes.
type ConnectionStateChangedEvent struct {
	ConnID    string `json:"conn_id,omitempty" example:"6f1c0d1e-9c55-4a8e-9a53-0b7a3a4f2b11" doc:"Connection attempt identifier"`
	Phase     string `json:"phase" example:"streaming" doc:"Reader phase: connecting, streaming, backoff, stopped"`
	Attempt   uint64 `json:"attempt" example:"3" doc:"Connection attempt counter"`
	Error     string `json:"error,omitempty" example:"connection refused" doc:"Error that caused the change, if any"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConnectionStateChangedEvent.
func (e ConnectionStateChangedEvent) Type() uint32 { return TypeConnectionStateChanged }

// FirstFrameEvent is published once per connection when the first frame decodes.
type FirstFrameEvent struct {
	ConnID    string `json:"conn_id" doc:"Connection attempt identifier"`
	Seq       uint64 `json:"seq" example:"1" doc:"Frame sequence number"`
	Width     int    `json:"width" example:"640" doc:"Source width before resizing"`
	Height    int    `json:"height" example:"480" doc:"Source height before resizing"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FirstFrameEvent.
func (e FirstFrameEvent) Type() uint32 { return TypeFirstFrame }

// DeviceOpenedEvent is published when the virtual camera device is ready.
type DeviceOpenedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video10" doc:"Virtual camera device path"`
	Format     string `json:"format" example:"yuyv" doc:"Pixel format written to the device"`
	Width      int    `json:"width" example:"640" doc:"Output width"`
	Height     int    `json:"height" example:"480" doc:"Output height"`
	FPS        int    `json:"fps" example:"30" doc:"Target frame rate"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceOpenedEvent.
func (e DeviceOpenedEvent) Type() uint32 { return TypeDeviceOpened }

// PublisherStatsEvent carries the periodic publisher diagnostics.
type PublisherStatsEvent struct {
	ObservedFPS  float64 `json:"observed_fps" example:"29.8" doc:"Sent frames divided by elapsed wall time"`
	FramesSent   uint64  `json:"frames_sent" example:"900" doc:"Frames written to the device"`
	Placeholders uint64  `json:"placeholders" example:"12" doc:"Placeholder frames written"`
	Repeats      uint64  `json:"repeats" example:"40" doc:"Frames written again because no newer frame arrived"`
	Timestamp    string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PublisherStatsEvent.
func (e PublisherStatsEvent) Type() uint32 { return TypePublisherStats }

// DeviceHotplugEvent reports a video device node appearing or disappearing.
type DeviceHotplugEvent struct {
	Action     string `json:"action" example:"remove" enum:"add,remove,change" doc:"Kernel uevent action"`
	DevicePath string `json:"device_path" example:"/dev/video10" doc:"Device node"`
	InUse      bool   `json:"in_use" doc:"Whether the relay writes to this device"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceHotplugEvent.
func (e DeviceHotplugEvent) Type() uint32 { return TypeDeviceHotplug }
