package vcam

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/pkg/linuxav/v4l2"
)

type v4l2Device struct {
	out       *v4l2.Output
	frameSize int
}

// Open opens a V4L2 output device (typically v4l2loopback) and configures it
// for cfg. The device must accept the exact size and format.
func Open(cfg Config) (Device, error) {
	logger := logging.GetLogger("vcam")

	if err := cfg.Format.Validate(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	want := cfg.Format.PixFormat(cfg.Width, cfg.Height)
	out, err := v4l2.OpenOutput(cfg.Path, want)
	if err != nil {
		return nil, err
	}

	got := out.Format()
	if got.BytesPerLine != want.BytesPerLine {
		out.Close()
		return nil, fmt.Errorf("%s: driver uses %d bytes per line, want %d", cfg.Path, got.BytesPerLine, want.BytesPerLine)
	}

	if cfg.FPS > 0 {
		if rateErr := out.SetFrameRate(cfg.FPS); rateErr != nil {
			logger.Debug("Device does not accept a frame rate", "device", cfg.Path, "error", rateErr)
		}
	}

	logger.Info("Opened virtual camera",
		slog.String("device", cfg.Path),
		slog.Int("width", cfg.Width),
		slog.Int("height", cfg.Height),
		slog.String("format", cfg.Format.String()),
		slog.String("fourcc", v4l2.FormatFourCC(got.PixelFormat)),
		slog.Int("size_image", int(got.SizeImage)))

	return &v4l2Device{out: out, frameSize: int(want.SizeImage)}, nil
}

func (d *v4l2Device) WriteFrame(frame []byte) error {
	if len(frame) != d.frameSize {
		return fmt.Errorf("frame is %d bytes, device expects %d", len(frame), d.frameSize)
	}
	_, err := d.out.Write(frame)
	return err
}

func (d *v4l2Device) Close() error {
	return d.out.Close()
}

func (d *v4l2Device) Path() string {
	return d.out.Path()
}
