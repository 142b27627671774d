package relay

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/camrelay/internal/pixfmt"
	"github.com/smazurov/camrelay/internal/stream"
)

// Default configuration values.
const (
	DefaultCameraBaseURL   = "http://192.168.1.100"
	DefaultStreamPort      = 81
	DefaultStreamPath      = "/stream"
	DefaultDevice          = "/dev/video10"
	DefaultWidth           = 640
	DefaultHeight          = 480
	DefaultFPS             = 30
	DefaultStatsEvery      = 30
	DefaultPlaceholderText = "Waiting for camera..."
)

// Config is read once at startup and passed to every component.
type Config struct {
	CameraBaseURL string
	StreamPort    int
	StreamPath    string

	Device string
	Format pixfmt.Format
	Width  int
	Height int
	FPS    int

	ChunkSize        int
	ConnectTimeout   time.Duration
	ReconnectBackoff time.Duration
	MaxFrameSize     int

	// StatsEvery is the number of sent frames between rate reports.
	StatsEvery      int
	PlaceholderText string
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		CameraBaseURL:    DefaultCameraBaseURL,
		StreamPort:       DefaultStreamPort,
		StreamPath:       DefaultStreamPath,
		Device:           DefaultDevice,
		Format:           pixfmt.YUYV,
		Width:            DefaultWidth,
		Height:           DefaultHeight,
		FPS:              DefaultFPS,
		ChunkSize:        stream.DefaultChunkSize,
		ConnectTimeout:   stream.DefaultTimeout,
		ReconnectBackoff: stream.DefaultBackoff,
		StatsEvery:       DefaultStatsEvery,
		PlaceholderText:  DefaultPlaceholderText,
	}
}

// StreamURL joins the base URL, stream port and stream path. A port already
// present in the base URL is replaced when StreamPort is set.
func (c Config) StreamURL() (string, error) {
	base := strings.TrimSpace(c.CameraBaseURL)
	if base == "" {
		return "", errors.New("camera base URL is required")
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid camera base URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("camera base URL %q has no host", c.CameraBaseURL)
	}

	if c.StreamPort > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(c.StreamPort))
	}

	path := c.StreamPath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

// Validate checks the configuration before any resource is opened.
func (c Config) Validate() error {
	if _, err := c.StreamURL(); err != nil {
		return err
	}
	if c.StreamPort < 0 || c.StreamPort > 65535 {
		return fmt.Errorf("invalid stream port %d", c.StreamPort)
	}
	if c.Device == "" {
		return errors.New("output device is required")
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %d", c.FPS)
	}
	if err := c.Format.Validate(c.Width, c.Height); err != nil {
		return err
	}
	return nil
}

func (c Config) streamConfig() (stream.Config, error) {
	streamURL, err := c.StreamURL()
	if err != nil {
		return stream.Config{}, err
	}
	return stream.Config{
		URL:          streamURL,
		Width:        c.Width,
		Height:       c.Height,
		ChunkSize:    c.ChunkSize,
		Timeout:      c.ConnectTimeout,
		Backoff:      c.ReconnectBackoff,
		MaxFrameSize: c.MaxFrameSize,
	}, nil
}
