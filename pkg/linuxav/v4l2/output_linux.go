package v4l2

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Output is an open V4L2 video output device using the read/write I/O method.
type Output struct {
	path   string
	format PixFormat

	mu sync.Mutex
	fd int
}

// OpenOutput opens devicePath, verifies it is an output device, and applies
// the requested format. The driver may fill in BytesPerLine and SizeImage;
// any change to the size or pixel format is an error.
func OpenOutput(devicePath string, want PixFormat) (*Output, error) {
	fd, err := open(devicePath, unix.O_RDWR)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", devicePath, err)
	}

	c, err := queryCapability(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("VIDIOC_QUERYCAP on %s: %w", devicePath, err)
	}
	if c.effectiveCaps()&CapVideoOutput == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("%s (%s): %w", devicePath, cstr(c.card[:]), ErrNotOutputDevice)
	}

	if want.Field == 0 {
		want.Field = FieldNone
	}
	format := v4l2Format{typ: bufTypeVideoOutput, pix: fromPixFormat(want)}
	if err := ioctl(fd, vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("VIDIOC_S_FMT %dx%d %s on %s: %w",
			want.Width, want.Height, FormatFourCC(want.PixelFormat), devicePath, err)
	}

	got := format.pix.toPixFormat()
	if got.Width != want.Width || got.Height != want.Height || got.PixelFormat != want.PixelFormat {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: driver selected %dx%d %s instead of %dx%d %s",
			devicePath, got.Width, got.Height, FormatFourCC(got.PixelFormat),
			want.Width, want.Height, FormatFourCC(want.PixelFormat))
	}
	if got.SizeImage == 0 {
		got.SizeImage = want.SizeImage
	}
	if got.BytesPerLine == 0 {
		got.BytesPerLine = want.BytesPerLine
	}

	return &Output{path: devicePath, format: got, fd: fd}, nil
}

// Path returns the device node path.
func (o *Output) Path() string {
	return o.path
}

// Format returns the format negotiated with the driver.
func (o *Output) Format() PixFormat {
	return o.format
}

// SetFrameRate advertises the frame interval to readers of the device.
// Drivers without VIDIOC_S_PARM support return an error that callers may
// ignore.
func (o *Output) SetFrameRate(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %d", fps)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fd < 0 {
		return unix.EBADF
	}

	parm := v4l2Streamparm{typ: bufTypeVideoOutput}
	parm.parm.capability = capTimePerFrame
	parm.parm.timeperframe = v4l2Fract{numerator: 1, denominator: uint32(fps)}
	if err := ioctl(o.fd, vidiocSParm, unsafe.Pointer(&parm)); err != nil {
		return fmt.Errorf("VIDIOC_S_PARM: %w", err)
	}
	return nil
}

// FrameRate reads back the frame interval currently configured.
func (o *Output) FrameRate() (Framerate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fd < 0 {
		return Framerate{}, unix.EBADF
	}

	parm := v4l2Streamparm{typ: bufTypeVideoOutput}
	if err := ioctl(o.fd, vidiocGParm, unsafe.Pointer(&parm)); err != nil {
		return Framerate{}, fmt.Errorf("VIDIOC_G_PARM: %w", err)
	}
	return Framerate{
		Numerator:   parm.parm.timeperframe.numerator,
		Denominator: parm.parm.timeperframe.denominator,
	}, nil
}

// Write writes one complete frame. Short writes are retried until the whole
// buffer is consumed.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fd < 0 {
		return 0, unix.EBADF
	}

	written := 0
	for written < len(p) {
		n, err := unix.Write(o.fd, p[written:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return written, fmt.Errorf("write %s: %w", o.path, err)
		}
		if n == 0 {
			return written, fmt.Errorf("write %s: %w", o.path, unix.EIO)
		}
		written += n
	}
	return written, nil
}

// Close releases the device. Closing twice is a no-op.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fd < 0 {
		return nil
	}
	err := unix.Close(o.fd)
	o.fd = -1
	return err
}
