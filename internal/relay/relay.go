// Package relay forwards an IP camera's MJPEG stream into a virtual camera.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/stream"
	"github.com/smazurov/camrelay/internal/systemd"
	"github.com/smazurov/camrelay/internal/vcam"
)

// Options carries optional collaborators for a Relay.
type Options struct {
	EventBus *events.Bus
	Preview  FrameSink
	// OpenDevice defaults to vcam.Open.
	OpenDevice func(vcam.Config) (vcam.Device, error)
	// HTTPClient overrides the stream reader's client.
	HTTPClient *http.Client
	Notifier   *systemd.Notifier
}

// Status describes a running or finished relay.
type Status struct {
	StreamURL string
	Device    string
	Format    string
	Width     int
	Height    int
	FPS       int
	StartedAt time.Time
	Stream    stream.Status
	Publisher PublisherStats
}

// Relay owns the stream reader, the device and the publisher.
type Relay struct {
	cfg       Config
	streamURL string
	opts      Options
	reader    *stream.Reader
	logger    *slog.Logger

	mu        sync.RWMutex
	publisher *Publisher
	startedAt time.Time
}

// New validates cfg and prepares a relay. No device or network resources are
// opened until Run.
func New(cfg Config, opts Options) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	streamCfg, err := cfg.streamConfig()
	if err != nil {
		return nil, err
	}

	if opts.OpenDevice == nil {
		opts.OpenDevice = vcam.Open
	}
	logger := logging.GetLogger("relay")
	if opts.Notifier == nil {
		opts.Notifier = systemd.NewNotifier(logger)
	}

	readerOpts := []stream.Option{stream.WithEventBus(opts.EventBus)}
	if opts.HTTPClient != nil {
		readerOpts = append(readerOpts, stream.WithHTTPClient(opts.HTTPClient))
	}

	return &Relay{
		cfg:       cfg,
		streamURL: streamCfg.URL,
		opts:      opts,
		reader:    stream.NewReader(streamCfg, readerOpts...),
		logger:    logger,
	}, nil
}

// Reader exposes the stream reader, e.g. for the preview or status API.
func (r *Relay) Reader() *stream.Reader {
	return r.reader
}

// Run opens the device, starts the reader and publishes until ctx is done or
// the device fails. The reader is always stopped and joined before Run
// returns. Device failures are returned wrapped in ErrDevice.
func (r *Relay) Run(ctx context.Context) error {
	devCfg := vcam.Config{
		Path:   r.cfg.Device,
		Width:  r.cfg.Width,
		Height: r.cfg.Height,
		Format: r.cfg.Format,
		FPS:    r.cfg.FPS,
	}
	dev, err := r.opts.OpenDevice(devCfg)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrDevice, r.cfg.Device, err)
	}
	defer func() {
		if closeErr := dev.Close(); closeErr != nil {
			r.logger.Warn("Failed to close virtual camera", "device", dev.Path(), "error", closeErr)
		}
	}()

	publisher, err := NewPublisher(r.cfg, r.reader, dev, r.opts.EventBus, r.opts.Preview, logging.GetLogger("publisher"))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.publisher = publisher
	r.startedAt = time.Now()
	r.mu.Unlock()

	r.opts.EventBus.Publish(events.DeviceOpenedEvent{
		DevicePath: dev.Path(),
		Format:     r.cfg.Format.String(),
		Width:      r.cfg.Width,
		Height:     r.cfg.Height,
		FPS:        r.cfg.FPS,
		Timestamp:  time.Now().Format(time.RFC3339),
	})

	if err := r.reader.Start(); err != nil {
		return err
	}
	defer r.reader.Stop()

	watchdogCtx, stopWatchdog := context.WithCancel(ctx)
	defer stopWatchdog()
	go r.opts.Notifier.RunWatchdog(watchdogCtx)

	r.logger.Info("Relay running", "stream_url", r.streamURL, "device", dev.Path())
	r.opts.Notifier.Ready(fmt.Sprintf("relaying %s to %s", r.streamURL, dev.Path()))
	defer r.opts.Notifier.Stopping()

	return publisher.Run(ctx)
}

// Status returns the current relay state.
func (r *Relay) Status() Status {
	r.mu.RLock()
	publisher := r.publisher
	startedAt := r.startedAt
	r.mu.RUnlock()

	s := Status{
		StreamURL: r.streamURL,
		Device:    r.cfg.Device,
		Format:    r.cfg.Format.String(),
		Width:     r.cfg.Width,
		Height:    r.cfg.Height,
		FPS:       r.cfg.FPS,
		StartedAt: startedAt,
		Stream:    r.reader.Status(),
	}
	if publisher != nil {
		s.Publisher = publisher.Stats()
	}
	return s
}
