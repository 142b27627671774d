package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/frame"
	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/pixfmt"
	"github.com/smazurov/camrelay/internal/vcam"
)

// ErrDevice marks failures of the virtual camera device. They end the relay.
var ErrDevice = errors.New("virtual camera device failure")

// Source supplies the newest decoded frame.
type Source interface {
	Read() (*frame.Frame, bool)
}

// FrameSink receives published frames in addition to the device, e.g. the
// MJPEG preview. Offer must not block.
type FrameSink interface {
	Offer(f *frame.Frame)
}

// PublisherStats is a snapshot of the publisher counters.
type PublisherStats struct {
	FramesSent   uint64
	Placeholders uint64
	Repeats      uint64
	ObservedFPS  float64
}

// Publisher pushes frames to the device at a capped rate.
type Publisher struct {
	src        Source
	dev        vcam.Device
	format     pixfmt.Format
	width      int
	height     int
	fps        int
	statsEvery int

	placeholder      []byte
	placeholderImage *frame.Frame
	buf              []byte

	bus    *events.Bus
	sink   FrameSink
	logger *slog.Logger

	sent         atomic.Uint64
	placeholders atomic.Uint64
	repeats      atomic.Uint64
	observedFPS  atomic.Uint64 // float64 bits
}

// NewPublisher prepares a publisher for cfg. The placeholder frame is
// rendered and converted once here.
func NewPublisher(cfg Config, src Source, dev vcam.Device, bus *events.Bus, sink FrameSink, logger *slog.Logger) (*Publisher, error) {
	if err := cfg.Format.Validate(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", cfg.FPS)
	}
	statsEvery := cfg.StatsEvery
	if statsEvery <= 0 {
		statsEvery = DefaultStatsEvery
	}
	caption := cfg.PlaceholderText
	if caption == "" {
		caption = DefaultPlaceholderText
	}

	size := cfg.Format.FrameSize(cfg.Width, cfg.Height)
	img := renderPlaceholder(cfg.Width, cfg.Height, caption)
	placeholder := make([]byte, size)
	if err := cfg.Format.Convert(placeholder, img); err != nil {
		return nil, fmt.Errorf("convert placeholder: %w", err)
	}

	return &Publisher{
		src:              src,
		dev:              dev,
		format:           cfg.Format,
		width:            cfg.Width,
		height:           cfg.Height,
		fps:              cfg.FPS,
		statsEvery:       statsEvery,
		placeholder:      placeholder,
		placeholderImage: &frame.Frame{Image: img},
		buf:              make([]byte, size),
		bus:              bus,
		sink:             sink,
		logger:           logger,
	}, nil
}

// Run sends one frame per tick until ctx is done. A placeholder is sent while
// no frame is available; a frame is sent again when nothing newer arrived.
// Device errors are returned wrapped in ErrDevice; cancellation returns nil.
func (p *Publisher) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(p.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("Publishing frames", "device", p.dev.Path(), "fps", p.fps, "format", p.format.String())

	var (
		lastSeq    uint64
		haveFrame  bool
		windowFrom = time.Now()
		windowSent int
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		data, kind, f, err := p.next(&lastSeq, &haveFrame)
		if err != nil {
			return err
		}

		if writeErr := p.dev.WriteFrame(data); writeErr != nil {
			metrics.RecordWriteError()
			return fmt.Errorf("%w: %s: %w", ErrDevice, p.dev.Path(), writeErr)
		}

		p.sent.Add(1)
		metrics.RecordFrameSent(kind)
		if kind != metrics.KindRepeat && p.sink != nil {
			p.sink.Offer(f)
		}

		windowSent++
		if windowSent == p.statsEvery {
			p.report(windowSent, time.Since(windowFrom))
			windowFrom = time.Now()
			windowSent = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// next picks the bytes for this tick. Converted live frames stay in p.buf so
// repeats are not converted again.
func (p *Publisher) next(lastSeq *uint64, haveFrame *bool) ([]byte, string, *frame.Frame, error) {
	f, ok := p.src.Read()
	if !ok {
		p.placeholders.Add(1)
		return p.placeholder, metrics.KindPlaceholder, p.placeholderImage, nil
	}

	if *haveFrame && f.Seq == *lastSeq {
		p.repeats.Add(1)
		return p.buf, metrics.KindRepeat, f, nil
	}

	if err := p.format.Convert(p.buf, f.Image); err != nil {
		return nil, "", nil, fmt.Errorf("convert frame %d: %w", f.Seq, err)
	}
	*lastSeq = f.Seq
	*haveFrame = true
	return p.buf, metrics.KindLive, f, nil
}

func (p *Publisher) report(sent int, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	fps := float64(sent) / elapsed.Seconds()
	p.observedFPS.Store(math.Float64bits(fps))
	metrics.SetPublisherFPS(fps)

	stats := p.Stats()
	p.logger.Info("Output frame rate",
		"fps", fmt.Sprintf("%.1f", fps),
		"frames_sent", stats.FramesSent,
		"placeholders", stats.Placeholders,
		"repeats", stats.Repeats)

	p.bus.Publish(events.PublisherStatsEvent{
		ObservedFPS:  fps,
		FramesSent:   stats.FramesSent,
		Placeholders: stats.Placeholders,
		Repeats:      stats.Repeats,
		Timestamp:    time.Now().Format(time.RFC3339),
	})
}

// Stats returns the publisher counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		FramesSent:   p.sent.Load(),
		Placeholders: p.placeholders.Load(),
		Repeats:      p.repeats.Load(),
		ObservedFPS:  math.Float64frombits(p.observedFPS.Load()),
	}
}
