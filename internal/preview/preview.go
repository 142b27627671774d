// Package preview serves the relayed frames as an MJPEG stream for browsers.
package preview

import (
	"bytes"
	"context"
	"image/jpeg"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-mjpeg"

	"github.com/smazurov/camrelay/internal/frame"
)

// Defaults for New.
const (
	DefaultFPS     = 5
	DefaultQuality = 70
)

// Preview re-encodes a throttled subset of the published frames and fans
// them out to HTTP clients.
type Preview struct {
	stream   *mjpeg.Stream
	interval time.Duration
	quality  int
	logger   *slog.Logger

	pending  chan *frame.Frame
	lastSent atomic.Int64

	mu     sync.RWMutex
	latest []byte

	encoded atomic.Uint64
}

// New creates a preview limited to fps frames per second.
func New(fps, quality int, logger *slog.Logger) *Preview {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Preview{
		stream:   mjpeg.NewStream(),
		interval: time.Second / time.Duration(fps),
		quality:  quality,
		logger:   logger,
		pending:  make(chan *frame.Frame, 1),
	}
}

// Offer queues f for encoding unless a frame was accepted within the last
// interval or the encoder is busy. It never blocks. A frame dropped because
// the encoder is busy does not restart the interval. Offer is called from
// the publisher goroutine only.
func (p *Preview) Offer(f *frame.Frame) {
	if f == nil || f.Image == nil {
		return
	}
	now := time.Now().UnixNano()
	if now-p.lastSent.Load() < int64(p.interval) {
		return
	}
	select {
	case p.pending <- f:
		p.lastSent.Store(now)
	default:
	}
}

// Run encodes queued frames until ctx is done, then closes the stream.
func (p *Preview) Run(ctx context.Context) {
	defer func() {
		if err := p.stream.Close(); err != nil {
			p.logger.Debug("Preview stream close failed", "error", err)
		}
	}()

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-p.pending:
			buf.Reset()
			if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: p.quality}); err != nil {
				p.logger.Warn("Preview encode failed", "seq", f.Seq, "error", err)
				continue
			}
			data := append([]byte(nil), buf.Bytes()...)

			p.mu.Lock()
			p.latest = data
			p.mu.Unlock()
			p.encoded.Add(1)

			if err := p.stream.Update(data); err != nil {
				p.logger.Debug("Preview stream update failed", "error", err)
			}
		}
	}
}

// Snapshot returns the most recent encoded JPEG, or nil before the first.
func (p *Preview) Snapshot() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Encoded reports how many frames have been encoded.
func (p *Preview) Encoded() uint64 {
	return p.encoded.Load()
}

// ServeHTTP streams multipart JPEG frames to the client.
func (p *Preview) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.stream.ServeHTTP(w, r)
}
