package relay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/camrelay/pkg/linuxav/hotplug"
)

func TestHotplugEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		ev     hotplug.Event
		ok     bool
		inUse  bool
		device string
	}{
		{"own device removed", hotplug.Event{Action: "remove", DevName: "video10"}, true, true, "/dev/video10"},
		{"other device added", hotplug.Event{Action: "add", DevName: "video0"}, true, false, "/dev/video0"},
		{"no node", hotplug.Event{Action: "change"}, false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := hotplugEvent(tt.ev, "/dev/video10", now)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.InUse != tt.inUse || got.DevicePath != tt.device || got.Action != tt.ev.Action {
				t.Errorf("unexpected event %+v", got)
			}
			if got.Timestamp != "2026-03-01T12:00:00Z" {
				t.Errorf("Timestamp = %q", got.Timestamp)
			}
		})
	}
}

func TestResolveNode(t *testing.T) {
	dir := t.TempDir()
	node := filepath.Join(dir, "video10")
	if err := os.WriteFile(node, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "by-id")
	if err := os.Symlink(node, link); err != nil {
		t.Fatal(err)
	}

	want, _ := filepath.EvalSymlinks(node)
	if got := resolveNode(link); got != want {
		t.Errorf("resolveNode(link) = %q, want %q", got, want)
	}
	if got := resolveNode("/nonexistent//video3"); got != "/nonexistent/video3" {
		t.Errorf("resolveNode(missing) = %q", got)
	}
}
