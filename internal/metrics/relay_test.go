package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPublisherMetrics(t *testing.T) {
	before := Get()

	RecordFrameSent(KindLive)
	RecordFrameSent(KindRepeat)
	RecordFrameSent(KindPlaceholder)
	SetPublisherFPS(29.5)

	after := Get()
	if after.FramesSent-before.FramesSent != 3 {
		t.Errorf("FramesSent delta = %d, want 3", after.FramesSent-before.FramesSent)
	}
	if after.Repeats-before.Repeats != 1 {
		t.Errorf("Repeats delta = %d, want 1", after.Repeats-before.Repeats)
	}
	if after.Placeholders-before.Placeholders != 1 {
		t.Errorf("Placeholders delta = %d, want 1", after.Placeholders-before.Placeholders)
	}
	if after.PublisherFPS != 29.5 {
		t.Errorf("PublisherFPS = %v, want 29.5", after.PublisherFPS)
	}

	if v := testutil.ToFloat64(publisherFPS); v != 29.5 {
		t.Errorf("publisherFPS gauge = %v, want 29.5", v)
	}
	if v := testutil.ToFloat64(publisherFrames.WithLabelValues(KindPlaceholder)); v < 1 {
		t.Errorf("placeholder counter = %v, want >= 1", v)
	}
}

func TestStreamMetrics(t *testing.T) {
	before := Get()

	RecordConnectionAttempt()
	RecordConnectionFailure("dial")
	AddBytesReceived(1024)
	RecordFrameDecoded(3 * time.Millisecond)
	RecordFrameDropped(DropDecode)
	SetConnected(true)

	after := Get()
	if after.ConnectionAttempts-before.ConnectionAttempts != 1 {
		t.Errorf("ConnectionAttempts delta = %d, want 1", after.ConnectionAttempts-before.ConnectionAttempts)
	}
	if after.ConnectionFailures-before.ConnectionFailures != 1 {
		t.Errorf("ConnectionFailures delta = %d, want 1", after.ConnectionFailures-before.ConnectionFailures)
	}
	if after.BytesReceived-before.BytesReceived != 1024 {
		t.Errorf("BytesReceived delta = %d, want 1024", after.BytesReceived-before.BytesReceived)
	}
	if after.FramesDecoded-before.FramesDecoded != 1 || after.FramesDropped-before.FramesDropped != 1 {
		t.Errorf("decoded/dropped deltas = %d/%d, want 1/1",
			after.FramesDecoded-before.FramesDecoded, after.FramesDropped-before.FramesDropped)
	}
	if after.LastFrameAt.IsZero() {
		t.Error("LastFrameAt not set")
	}

	if v := testutil.ToFloat64(streamConnected); v != 1 {
		t.Errorf("connected gauge = %v, want 1", v)
	}
	SetConnected(false)
	if v := testutil.ToFloat64(streamConnected); v != 0 {
		t.Errorf("connected gauge = %v, want 0", v)
	}
}
