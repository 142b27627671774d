// Package metrics provides Prometheus metrics for the camera relay.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camrelay"

var (
	streamConnectionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "connection_attempts_total",
		Help:      "Connection attempts made to the camera",
	})

	streamConnectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "connection_failures_total",
		Help:      "Camera connections that failed or ended",
	}, []string{"reason"})

	streamConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "connected",
		Help:      "1 while the camera stream is open",
	})

	streamBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "received_bytes_total",
		Help:      "Bytes read from the camera stream",
	})

	streamFramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_decoded_total",
		Help:      "JPEG frames decoded and published",
	})

	streamFramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_dropped_total",
		Help:      "Frames discarded before publication",
	}, []string{"reason"})

	streamDecodeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "decode_seconds",
		Help:      "Time spent decoding and resizing a frame",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
	})

	publisherFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "publisher",
		Name:      "fps",
		Help:      "Observed output frame rate",
	})

	publisherFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publisher",
		Name:      "frames_total",
		Help:      "Frames written to the virtual camera",
	}, []string{"kind"})

	publisherWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publisher",
		Name:      "write_errors_total",
		Help:      "Failed writes to the virtual camera",
	})

	// Local cache for the status API.
	snapshot   Snapshot
	snapshotMu sync.RWMutex
)

// Frame kinds reported by the publisher.
const (
	KindLive        = "live"
	KindRepeat      = "repeat"
	KindPlaceholder = "placeholder"
)

// Drop reasons reported by the stream reader.
const (
	DropDecode   = "decode"
	DropOverflow = "overflow"
)

// Snapshot holds current counter values for status reporting.
type Snapshot struct {
	ConnectionAttempts uint64
	ConnectionFailures uint64
	BytesReceived      uint64
	FramesDecoded      uint64
	FramesDropped      uint64
	FramesSent         uint64
	Placeholders       uint64
	Repeats            uint64
	PublisherFPS       float64
	LastFrameAt        time.Time
}

// RecordConnectionAttempt counts a new connection attempt.
func RecordConnectionAttempt() {
	streamConnectionAttempts.Inc()
	update(func(s *Snapshot) { s.ConnectionAttempts++ })
}

// RecordConnectionFailure counts a failed or terminated connection.
func RecordConnectionFailure(reason string) {
	streamConnectionFailures.WithLabelValues(reason).Inc()
	update(func(s *Snapshot) { s.ConnectionFailures++ })
}

// SetConnected reports whether the camera stream is currently open.
func SetConnected(connected bool) {
	if connected {
		streamConnected.Set(1)
	} else {
		streamConnected.Set(0)
	}
}

// AddBytesReceived counts stream bytes.
func AddBytesReceived(n int) {
	streamBytes.Add(float64(n))
	update(func(s *Snapshot) { s.BytesReceived += uint64(n) })
}

// RecordFrameDecoded counts a published frame and its decode time.
func RecordFrameDecoded(took time.Duration) {
	streamFramesDecoded.Inc()
	streamDecodeSeconds.Observe(took.Seconds())
	now := time.Now()
	update(func(s *Snapshot) {
		s.FramesDecoded++
		s.LastFrameAt = now
	})
}

// RecordFrameDropped counts a discarded frame.
func RecordFrameDropped(reason string) {
	streamFramesDropped.WithLabelValues(reason).Inc()
	update(func(s *Snapshot) { s.FramesDropped++ })
}

// RecordFrameSent counts a frame written to the device.
func RecordFrameSent(kind string) {
	publisherFrames.WithLabelValues(kind).Inc()
	update(func(s *Snapshot) {
		s.FramesSent++
		switch kind {
		case KindPlaceholder:
			s.Placeholders++
		case KindRepeat:
			s.Repeats++
		}
	})
}

// RecordWriteError counts a failed device write.
func RecordWriteError() {
	publisherWriteErrors.Inc()
}

// SetPublisherFPS sets the observed output frame rate.
func SetPublisherFPS(fps float64) {
	publisherFPS.Set(fps)
	update(func(s *Snapshot) { s.PublisherFPS = fps })
}

// Get returns a copy of the current values.
func Get() Snapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot
}

func update(fn func(*Snapshot)) {
	snapshotMu.Lock()
	fn(&snapshot)
	snapshotMu.Unlock()
}
