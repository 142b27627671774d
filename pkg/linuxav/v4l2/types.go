package v4l2

import "errors"

// ErrNotOutputDevice is returned when a device cannot accept frames.
var ErrNotOutputDevice = errors.New("not a V4L2 video output device")

// ErrUnsupported is returned on platforms without V4L2.
var ErrUnsupported = errors.New("V4L2 is only supported on Linux")

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	Driver     string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Caps       uint32
}

// IsCapture reports whether the device produces frames.
func (d DeviceInfo) IsCapture() bool {
	return d.Caps&CapVideoCapture != 0
}

// IsOutput reports whether the device accepts frames.
func (d DeviceInfo) IsOutput() bool {
	return d.Caps&CapVideoOutput != 0
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// PixFormat describes a single-planar image format.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
}

// Framerate represents a frame interval as a fraction of a second.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Capability flags.
const (
	CapVideoCapture = 0x00000001
	CapVideoOutput  = 0x00000002
	CapReadWrite    = 0x01000000
	CapStreaming    = 0x04000000
	CapDeviceCaps   = 0x80000000
)

// Pixel formats.
const (
	PixFmtRGB24 = 0x33424752 // 'RGB3'
	PixFmtBGR24 = 0x33524742 // 'BGR3'
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtYU12  = 0x32315559 // 'YU12'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
)

// Field order.
const (
	FieldNone = 1
)

// Colorspaces.
const (
	ColorspaceSMPTE170M = 1
	ColorspaceJPEG      = 7
	ColorspaceSRGB      = 8
)

// Buffer types.
const (
	bufTypeVideoCapture = 1
	bufTypeVideoOutput  = 2
)

// Format flags.
const (
	fmtFlagEmulated = 0x0002
)

// Output parameter capabilities.
const (
	capTimePerFrame = 0x1000
)
