package stream

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultChunkSize = 1024
	DefaultTimeout   = 5 * time.Second
	DefaultBackoff   = 2 * time.Second
)

// Config describes the camera stream and the output frame size.
type Config struct {
	// URL of the MJPEG stream, e.g. http://192.168.1.100:81/stream.
	URL    string
	Width  int
	Height int

	// ChunkSize is the read size for the response body.
	ChunkSize int
	// Timeout bounds connecting, waiting for response headers, and the gap
	// between two successful reads.
	Timeout time.Duration
	// Backoff is the fixed delay before reconnecting.
	Backoff time.Duration
	// MaxFrameSize bounds a single buffered JPEG.
	MaxFrameSize int
}

// Validate checks that the stream can be opened and frames resized.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("stream URL is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid stream URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported stream URL scheme %q", u.Scheme)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", c.Width, c.Height)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	return c
}
