// Package vcam exposes virtual camera devices that other applications can
// open like a physical webcam.
package vcam

import (
	"github.com/smazurov/camrelay/internal/pixfmt"
	"github.com/smazurov/camrelay/pkg/linuxav/v4l2"
)

// Errors returned by Open.
var (
	ErrNotOutputDevice = v4l2.ErrNotOutputDevice
	ErrUnsupported     = v4l2.ErrUnsupported
)

// Device is a virtual camera that accepts raw frames.
type Device interface {
	// WriteFrame sends one frame laid out in the device's pixel format.
	WriteFrame(frame []byte) error
	Close() error
	Path() string
}

// Config describes the device to open.
type Config struct {
	Path   string
	Width  int
	Height int
	Format pixfmt.Format
	FPS    int
}
