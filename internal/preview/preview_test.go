package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/smazurov/camrelay/internal/frame"
)

func testFrame(seq uint64) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := range 24 {
		for x := range 32 {
			img.SetRGBA(x, y, color.RGBA{B: 255, A: 255})
		}
	}
	return &frame.Frame{Image: img, Seq: seq, CapturedAt: time.Now()}
}

func startPreview(t *testing.T, fps int) *Preview {
	t.Helper()
	p := New(fps, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func waitEncoded(t *testing.T, p *Preview, n uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.Encoded() < n {
		if time.Now().After(deadline) {
			t.Fatalf("encoded %d frames, want %d", p.Encoded(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPreview_SnapshotIsJPEG(t *testing.T) {
	p := startPreview(t, 10)
	if p.Snapshot() != nil {
		t.Fatal("Snapshot() before any frame must be nil")
	}

	p.Offer(testFrame(1))
	waitEncoded(t, p, 1)

	img, err := jpeg.Decode(bytes.NewReader(p.Snapshot()))
	if err != nil {
		t.Fatalf("snapshot does not decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("snapshot size = %v, want 32x24", b)
	}
}

func TestPreview_Throttles(t *testing.T) {
	p := startPreview(t, 2)

	for i := range 50 {
		p.Offer(testFrame(uint64(i + 1)))
	}
	waitEncoded(t, p, 1)
	time.Sleep(50 * time.Millisecond)

	if got := p.Encoded(); got != 1 {
		t.Errorf("encoded %d frames from a burst, want 1", got)
	}
}

func TestPreview_IgnoresEmptyFrames(t *testing.T) {
	p := startPreview(t, 100)
	p.Offer(nil)
	p.Offer(&frame.Frame{})
	time.Sleep(30 * time.Millisecond)

	if p.Encoded() != 0 {
		t.Errorf("encoded %d empty frames", p.Encoded())
	}
}

func TestPreview_BusyEncoderKeepsWindow(t *testing.T) {
	// not running, so the queue stays full after the first frame
	p := New(20, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p.Offer(testFrame(1))
	time.Sleep(70 * time.Millisecond)
	p.Offer(testFrame(2)) // window elapsed but the queue is full

	if f := <-p.pending; f.Seq != 1 {
		t.Fatalf("queued seq %d, want 1", f.Seq)
	}

	p.Offer(testFrame(3))
	select {
	case f := <-p.pending:
		if f.Seq != 3 {
			t.Errorf("queued seq %d, want 3", f.Seq)
		}
	default:
		t.Fatal("frame rejected: a dropped offer restarted the throttle window")
	}
}
