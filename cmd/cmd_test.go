package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/camrelay/internal/version"
	"github.com/smazurov/camrelay/pkg/linuxav/hotplug"
	"github.com/smazurov/camrelay/pkg/linuxav/v4l2"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// multipartCamera serves count parts, each holding payload.
func multipartCamera(payload []byte, count int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		for range count {
			part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"image/jpeg"}})
			if err != nil {
				return
			}
			if _, err := part.Write(payload); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
		mw.Close()
	}
}

func TestProbe(t *testing.T) {
	frame := encodeJPEG(t, 64, 48)
	ts := httptest.NewServer(multipartCamera(frame, 5))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := Probe(ctx, ts.Client(), ts.URL, 3)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if res.Frames != 3 {
		t.Errorf("Frames = %d, want 3", res.Frames)
	}
	if res.Width != 64 || res.Height != 48 {
		t.Errorf("resolution = %dx%d, want 64x48", res.Width, res.Height)
	}
	if res.Bytes != 3*len(frame) {
		t.Errorf("Bytes = %d, want %d", res.Bytes, 3*len(frame))
	}
	if !bytes.Equal(res.Last, frame) {
		t.Error("Last frame differs from served frame")
	}
	if !strings.HasPrefix(res.ContentType, "multipart/x-mixed-replace") {
		t.Errorf("ContentType = %q", res.ContentType)
	}
}

func TestProbeTruncatedFrame(t *testing.T) {
	frame := encodeJPEG(t, 16, 16)
	ts := httptest.NewServer(multipartCamera(frame[:len(frame)-2], 2))
	defer ts.Close()

	if _, err := Probe(context.Background(), ts.Client(), ts.URL, 1); err == nil {
		t.Fatal("expected error for a part without EOI")
	}
}

func TestProbeHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := Probe(context.Background(), ts.Client(), ts.URL, 1)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want HTTP 503", err)
	}
}

func TestProbeSendsUserAgent(t *testing.T) {
	frame := encodeJPEG(t, 8, 8)
	agent := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent <- r.UserAgent()
		multipartCamera(frame, 1)(w, r)
	}))
	defer ts.Close()

	if _, err := Probe(context.Background(), ts.Client(), ts.URL, 1); err != nil {
		t.Fatal(err)
	}
	if got := <-agent; got != version.UserAgent() {
		t.Errorf("User-Agent = %q, want %q", got, version.UserAgent())
	}
}

func TestProbeResultFPS(t *testing.T) {
	if fps := (ProbeResult{Frames: 30, Elapsed: 2 * time.Second}).FPS(); fps != 15 {
		t.Errorf("FPS() = %v, want 15", fps)
	}
	if fps := (ProbeResult{Frames: 3}).FPS(); fps != 0 {
		t.Errorf("FPS() with zero elapsed = %v, want 0", fps)
	}
}

func TestVersionCmdJSON(t *testing.T) {
	cmd := CreateVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	var info version.Info
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if info.Version != version.Version {
		t.Errorf("Version = %q, want %q", info.Version, version.Version)
	}
}

func TestProbeCmdRequiresURL(t *testing.T) {
	cmd := CreateProbeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without a stream URL")
	}
}

func TestFormatHotplug(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := hotplug.Event{Action: hotplug.ActionRemove, DevName: "video10"}
	if got, want := formatHotplug(ev, at), "03:04:05 remove /dev/video10"; got != want {
		t.Errorf("formatHotplug() = %q, want %q", got, want)
	}
}

func TestDescribeCaps(t *testing.T) {
	tests := []struct {
		caps uint32
		want string
	}{
		{0, "-"},
		{v4l2.CapVideoOutput, "output"},
		{v4l2.CapVideoCapture | v4l2.CapVideoOutput, "capture+output"},
	}
	for _, tt := range tests {
		if got := describeCaps(v4l2.DeviceInfo{Caps: tt.caps}); got != tt.want {
			t.Errorf("describeCaps(%#x) = %q, want %q", tt.caps, got, tt.want)
		}
	}
}
