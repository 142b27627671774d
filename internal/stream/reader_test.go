package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/camrelay/internal/events"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func encodeJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	return buf.Bytes()
}

// serveMJPEG writes next(i) as multipart parts every interval until the
// client goes away. A nil part sends nothing for that tick.
func serveMJPEG(w http.ResponseWriter, r *http.Request, interval time.Duration, next func(i int) []byte) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for i := 0; ; i++ {
		if data := next(i); data != nil {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data))
			_, _ = w.Write(data)
			_, _ = w.Write([]byte("\r\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(interval):
		}
	}
}

func newCamera(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func startReader(t *testing.T, cfg Config, opts ...Option) *Reader {
	t.Helper()
	r := NewReader(cfg, opts...)
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(r.Stop)
	return r
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testConfig(url string) Config {
	return Config{
		URL:     url,
		Width:   64,
		Height:  48,
		Timeout: time.Second,
		Backoff: 50 * time.Millisecond,
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{URL: "http://cam/stream", Width: 640, Height: 480}.withDefaults()
	if cfg.ChunkSize != 1024 || cfg.Timeout != 5*time.Second || cfg.Backoff != 2*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{URL: "http://192.168.1.100:81/stream", Width: 640, Height: 480}, false},
		{"missing url", Config{Width: 640, Height: 480}, true},
		{"bad scheme", Config{URL: "rtsp://cam/stream", Width: 640, Height: 480}, true},
		{"zero size", Config{URL: "http://cam/stream"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReader_NoFrameBeforeFirst(t *testing.T) {
	srv := newCamera(t, func(w http.ResponseWriter, r *http.Request) {
		serveMJPEG(w, r, 10*time.Millisecond, func(int) []byte { return nil })
	})

	r := NewReader(testConfig(srv.URL))
	if f, ok := r.Read(); ok || f != nil {
		t.Fatal("Read() before Start must report no frame")
	}

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Stop)

	time.Sleep(100 * time.Millisecond)
	if _, ok := r.Read(); ok {
		t.Fatal("Read() must report no frame until one is decoded")
	}
}

func TestReader_PublishesResizedFrame(t *testing.T) {
	jpg := encodeJPEG(t, 320, 240, red)
	srv := newCamera(t, func(w http.ResponseWriter, r *http.Request) {
		serveMJPEG(w, r, 20*time.Millisecond, func(int) []byte { return jpg })
	})

	r := startReader(t, testConfig(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	f, err := r.WaitFirstFrame(ctx)
	if err != nil {
		t.Fatalf("WaitFirstFrame failed: %v", err)
	}

	if f.Width() != 64 || f.Height() != 48 {
		t.Errorf("frame size = %dx%d, want 64x48", f.Width(), f.Height())
	}
	c := f.Image.RGBAAt(32, 24)
	if c.R < 200 || c.G > 60 || c.B > 60 {
		t.Errorf("center pixel = %v, want red", c)
	}

	got, ok := r.Read()
	if !ok || got.Seq < f.Seq {
		t.Errorf("Read() = %v, %v; want frame with seq >= %d", got, ok, f.Seq)
	}
	if s := r.Status(); s.Phase != PhaseStreaming || s.ConnID == "" || s.FramesDecoded == 0 {
		t.Errorf("unexpected status %+v", s)
	}
}

func TestReader_WaitFirstFrameBeforeStart(t *testing.T) {
	jpg := encodeJPEG(t, 64, 48, red)
	srv := newCamera(t, func(w http.ResponseWriter, r *http.Request) {
		serveMJPEG(w, r, 20*time.Millisecond, func(int) []byte { return jpg })
	})

	r := NewReader(testConfig(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := r.WaitFirstFrame(ctx)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Stop)

	if err := <-errCh; err != nil {
		t.Fatalf("WaitFirstFrame started before Start: %v", err)
	}
}

func TestReader_RestartDiscardsOldFrame(t *testing.T) {
	jpg := encodeJPEG(t, 64, 48, red)
	var serve atomic.Bool
	serve.Store(true)
	srv := newCamera(t, func(w http.ResponseWriter, r *http.Request) {
		serveMJPEG(w, r, 20*time.Millisecond, func(int) []byte {
			if serve.Load() {
				return jpg
			}
			return nil
		})
	})

	r := NewReader(testConfig(srv.URL))
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 3*time.Second, func() bool { _, ok := r.Read(); return ok }, "no frame on first run")
	r.Stop()

	serve.Store(false)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Stop)

	if _, ok := r.Read(); ok {
		t.Fatal("Read() returned a frame from the previous run")
	}
}

func TestReader_MalformedFrameKeepsPrevious(t *testing.T) {
	good := encodeJPEG(t, 64, 48, blue)
	bad := []byte("\xff\xd8this is not a jpeg\xff\xd9")
	srv := newCamera(t, func(w http.ResponseWriter, r *http.Request) {
		serveMJPEG(w, r, 10*time.Millisecond, func(i int) []byte {
			if i == 0 {
				return good
			}
			return bad
		})
	})

	r := startReader(t, testConfig(srv.URL))

	waitFor(t, 3*time.Second, func() bool { return r.Status().FramesDropped >= 3 },
		"malformed frames were not dropped")

	f, ok := r.Read()
	if !ok {
		t.Fatal("previous frame was lost after malformed frames")
	}
	if f.Seq != 1 {
		t.Errorf("Seq = %d, want 1", f.Seq)
	}
	if c := f.Image.RGBAAt(10, 10); c.B < 200 {
		t.Errorf("pixel = %v, want the blue frame", c)
	}
	if s := r.Status(); s.Attempts != 1 {
		t.Errorf("malformed frames must not reconnect, attempts = %d", s.Attempts)
	}
}

func TestReader_RetriesAfterConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := startReader(t, testConfig(url))

	waitFor(t, 3*time.Second, func() bool { return r.Status().Attempts >= 2 },
		"reader did not retry after a refused connection")

	s := r.Status()
	if !s.Running {
		t.Error("reader goroutine stopped after a connection failure")
	}
	if s.LastError == "" {
		t.Error("LastError not recorded")
	}
}

func TestReader_ReconnectsAfterServerError(t *testing.T) {
	jpg := encodeJPEG(t, 64, 48, red)
	var requests atomic.Int32
	srv := newCamera(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		serveMJPEG(w, r, 20*time.Millisecond, func(int) []byte { return jpg })
	})

	r := startReader(t, testConfig(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := r.WaitFirstFrame(ctx); err != nil {
		t.Fatalf("no frame after reconnect: %v", err)
	}
	if requests.Load() < 2 {
		t.Errorf("requests = %d, want at least 2", requests.Load())
	}
	if s := r.Status(); !strings.Contains(s.LastError, "503") {
		t.Errorf("LastError = %q, want the 503 status", s.LastError)
	}
}

func TestReader_IdleTimeoutReconnects(t *testing.T) {
	jpg := encodeJPEG(t, 64, 48, red)
	srv := newCamera(t, func(w http.ResponseWriter, r *http.Request) {
		serveMJPEG(w, r, 10*time.Millisecond, func(i int) []byte {
			if i == 0 {
				return jpg
			}
			return nil
		})
	})

	cfg := testConfig(srv.URL)
	cfg.Timeout = 100 * time.Millisecond
	cfg.Backoff = 10 * time.Millisecond
	r := startReader(t, cfg)

	waitFor(t, 3*time.Second, func() bool { return r.Status().Attempts >= 2 },
		"stalled stream did not time out")
	if s := r.Status(); !strings.Contains(s.LastError, "no data") {
		t.Errorf("LastError = %q, want idle timeout", s.LastError)
	}
}

func TestReader_StopJoins(t *testing.T) {
	jpg := encodeJPEG(t, 64, 48, red)
	srv := newCamera(t, func(w http.ResponseWriter, r *http.Request) {
		serveMJPEG(w, r, 5*time.Millisecond, func(int) []byte { return jpg })
	})

	r := NewReader(testConfig(srv.URL))
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := r.WaitFirstFrame(ctx); err != nil {
		t.Fatal(err)
	}

	r.Stop()
	f, _ := r.Read()
	time.Sleep(100 * time.Millisecond)
	g, _ := r.Read()
	if f.Seq != g.Seq {
		t.Errorf("frames still published after Stop: seq %d -> %d", f.Seq, g.Seq)
	}

	s := r.Status()
	if s.Running || s.Phase != PhaseStopped {
		t.Errorf("status after Stop = %+v", s)
	}

	r.Stop()
}

func TestReader_PublishesEvents(t *testing.T) {
	jpg := encodeJPEG(t, 64, 48, red)
	srv := newCamera(t, func(w http.ResponseWriter, r *http.Request) {
		serveMJPEG(w, r, 20*time.Millisecond, func(int) []byte { return jpg })
	})

	bus := events.New()
	phases := make(chan string, 16)
	firsts := make(chan events.FirstFrameEvent, 1)
	defer bus.Subscribe(func(e events.ConnectionStateChangedEvent) {
		select {
		case phases <- e.Phase:
		default:
		}
	})()
	defer bus.Subscribe(func(e events.FirstFrameEvent) {
		select {
		case firsts <- e:
		default:
		}
	})()

	startReader(t, testConfig(srv.URL), WithEventBus(bus))

	select {
	case e := <-firsts:
		if e.ConnID == "" || e.Width != 64 || e.Height != 48 {
			t.Errorf("unexpected first frame event %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no FirstFrameEvent")
	}

	seen := map[string]bool{}
	timeout := time.After(time.Second)
	for !seen[string(PhaseStreaming)] {
		select {
		case p := <-phases:
			seen[p] = true
		case <-timeout:
			t.Fatalf("phases seen %v, want streaming", seen)
		}
	}
	if !seen[string(PhaseConnecting)] {
		t.Errorf("connecting phase not published before streaming: %v", seen)
	}
}
