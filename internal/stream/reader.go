// Package stream reads an MJPEG stream from an IP camera and keeps the most
// recently decoded frame available to consumers.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/frame"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/mjpeg"
	"github.com/smazurov/camrelay/internal/version"
)

// ErrAlreadyRunning is returned by Start on a running Reader.
var ErrAlreadyRunning = errors.New("stream reader already running")

var (
	errStreamClosed = errors.New("stream closed by camera")
	errIdleTimeout  = errors.New("no data received within timeout")
)

// Reader maintains a connection to the camera and publishes decoded frames.
// Frames are resized to the configured output size before publication.
type Reader struct {
	cfg    Config
	client *http.Client
	bus    *events.Bus
	logger *slog.Logger

	slot *frame.Slot
	seq  uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.RWMutex
	status   Status
}

// Option configures a Reader.
type Option func(*Reader)

// WithEventBus publishes connection and first-frame events on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(r *Reader) { r.bus = bus }
}

// WithHTTPClient replaces the default client. The client must not set a
// total request timeout, since the response body is read indefinitely.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Reader) { r.client = client }
}

// WithLogger overrides the "stream" module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) { r.logger = logger }
}

// NewReader creates a stopped Reader.
func NewReader(cfg Config, opts ...Option) *Reader {
	cfg = cfg.withDefaults()
	r := &Reader{
		cfg:    cfg,
		logger: logging.GetLogger("stream"),
		status: Status{Phase: PhaseIdle, Backoff: cfg.Backoff},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = newHTTPClient(cfg.Timeout)
	}
	r.slot = frame.NewSlot()
	return r
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: timeout,
			DisableCompression:    true,
		},
	}
}

// Start launches the background loop and returns immediately. Frames from a
// previous run are discarded.
func (r *Reader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.slot.Reset()

	r.statusMu.Lock()
	r.status.Running = true
	r.statusMu.Unlock()

	r.logger.Info("Starting stream reader", "url", r.cfg.URL, "width", r.cfg.Width, "height", r.cfg.Height)
	go r.run(ctx, r.done)
	return nil
}

// Stop signals the loop to exit and waits for it. Stopping a stopped Reader
// is a no-op.
func (r *Reader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil

	r.statusMu.Lock()
	r.status.Running = false
	r.statusMu.Unlock()
	r.setPhase(PhaseStopped, "", nil)
	r.logger.Info("Stream reader stopped")
}

// Read returns the newest frame, or false if none was decoded since Start.
func (r *Reader) Read() (*frame.Frame, bool) {
	return r.slot.Load()
}

// WaitFirstFrame blocks until a frame is available or ctx is done.
func (r *Reader) WaitFirstFrame(ctx context.Context) (*frame.Frame, error) {
	return r.slot.Wait(ctx)
}

// Status returns a snapshot of the reader state.
func (r *Reader) Status() Status {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status
}

func (r *Reader) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	slot := r.slot
	for {
		if ctx.Err() != nil {
			return
		}

		connID := uuid.NewString()
		r.statusMu.Lock()
		r.status.Attempts++
		attempt := r.status.Attempts
		r.statusMu.Unlock()
		metrics.RecordConnectionAttempt()

		err := r.stream(ctx, connID, slot)
		metrics.SetConnected(false)
		if ctx.Err() != nil {
			return
		}

		reason := failureReason(err)
		metrics.RecordConnectionFailure(reason)
		r.logger.Warn("Camera connection lost, retrying",
			"conn_id", connID,
			"attempt", attempt,
			"reason", reason,
			"error", err,
			"backoff", r.cfg.Backoff)
		r.setPhase(PhaseBackoff, connID, err)

		timer := time.NewTimer(r.cfg.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream runs one connection until it fails or ctx is cancelled.
func (r *Reader) stream(ctx context.Context, connID string, slot *frame.Slot) error {
	r.setPhase(PhaseConnecting, connID, nil)
	logger := r.logger.With("conn_id", connID)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, r.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	// Bounds dialing and response headers as well as body reads.
	var idle atomic.Bool
	watchdog := time.AfterFunc(r.cfg.Timeout, func() {
		idle.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	resp, err := r.client.Do(req)
	if err != nil {
		if idle.Load() {
			return fmt.Errorf("connect: %w", errIdleTimeout)
		}
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}

	r.setPhase(PhaseStreaming, connID, nil)
	metrics.SetConnected(true)
	logger.Info("Connected to camera", "url", r.cfg.URL, "content_type", resp.Header.Get("Content-Type"))

	scanner := mjpeg.NewScanner(r.cfg.MaxFrameSize)
	buf := make([]byte, r.cfg.ChunkSize)
	first := true

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(r.cfg.Timeout)
			metrics.AddBytesReceived(n)

			overflows := scanner.Overflows()
			for _, data := range scanner.Feed(buf[:n]) {
				if f, ok := r.decode(data, logger); ok {
					slot.Store(f)
					if first {
						first = false
						r.firstFrame(connID, f, logger)
					}
				}
			}
			if d := scanner.Overflows() - overflows; d > 0 {
				r.recordOverflows(d, logger)
			}
		}

		if readErr != nil {
			switch {
			case idle.Load():
				return errIdleTimeout
			case errors.Is(readErr, io.EOF):
				return errStreamClosed
			default:
				return fmt.Errorf("read: %w", readErr)
			}
		}
	}
}

// decode turns one JPEG payload into a frame at the output size. Malformed
// payloads are dropped.
func (r *Reader) decode(data []byte, logger *slog.Logger) (*frame.Frame, bool) {
	start := time.Now()

	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Debug("Dropping undecodable frame", "bytes", len(data), "error", err)
		metrics.RecordFrameDropped(metrics.DropDecode)
		r.statusMu.Lock()
		r.status.FramesDropped++
		r.statusMu.Unlock()
		return nil, false
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.cfg.Width, r.cfg.Height))
	sb := src.Bounds()
	if sb.Dx() == r.cfg.Width && sb.Dy() == r.cfg.Height {
		draw.Copy(dst, image.Point{}, src, sb, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	}

	r.seq++
	now := time.Now()
	metrics.RecordFrameDecoded(now.Sub(start))

	r.statusMu.Lock()
	r.status.FramesDecoded++
	r.status.LastFrameAt = now
	r.statusMu.Unlock()

	return &frame.Frame{Image: dst, Seq: r.seq, CapturedAt: now}, true
}

func (r *Reader) firstFrame(connID string, f *frame.Frame, logger *slog.Logger) {
	logger.Info("Receiving frames", "seq", f.Seq)
	r.bus.Publish(events.FirstFrameEvent{
		ConnID:    connID,
		Seq:       f.Seq,
		Width:     f.Width(),
		Height:    f.Height(),
		Timestamp: f.CapturedAt.Format(time.RFC3339),
	})
}

func (r *Reader) recordOverflows(n uint64, logger *slog.Logger) {
	logger.Warn("Discarded oversized partial frame", "max_frame_size", r.cfg.MaxFrameSize, "count", n)
	for range n {
		metrics.RecordFrameDropped(metrics.DropOverflow)
	}
	r.statusMu.Lock()
	r.status.Overflows += n
	r.statusMu.Unlock()
}

func (r *Reader) setPhase(phase Phase, connID string, err error) {
	r.statusMu.Lock()
	r.status.Phase = phase
	if connID != "" {
		r.status.ConnID = connID
	}
	if err != nil {
		r.status.LastError = err.Error()
	}
	attempts := r.status.Attempts
	r.statusMu.Unlock()

	ev := events.ConnectionStateChangedEvent{
		ConnID:    connID,
		Phase:     string(phase),
		Attempt:   attempts,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.bus.Publish(ev)
}

// StatusError reports a non-200 response from the camera.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d %s", e.Code, http.StatusText(e.Code))
}

func failureReason(err error) string {
	var statusErr *StatusError
	switch {
	case errors.Is(err, errIdleTimeout):
		return "timeout"
	case errors.Is(err, errStreamClosed):
		return "closed"
	case errors.As(err, &statusErr):
		return "status"
	default:
		return "error"
	}
}
