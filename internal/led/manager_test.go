package led

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camrelay/internal/events"
)

type mockController struct {
	mu    sync.Mutex
	calls []Pattern
}

func (m *mockController) Set(p Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, p)
	return nil
}

func (m *mockController) Name() string { return "mock" }

func (m *mockController) snapshot() []Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Pattern(nil), m.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitPattern(t *testing.T, mgr *Manager, want Pattern) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for mgr.Current() != want {
		if time.Now().After(deadline) {
			t.Fatalf("pattern = %q, want %q", mgr.Current(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager_FollowsPhase(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()
	mgr := NewManager(ctrl, bus, discardLogger())
	mgr.Start()

	if mgr.Current() != PatternBlink {
		t.Fatalf("initial pattern = %q, want blink", mgr.Current())
	}

	bus.Publish(events.ConnectionStateChangedEvent{Phase: "streaming"})
	waitPattern(t, mgr, PatternSolid)

	bus.Publish(events.ConnectionStateChangedEvent{Phase: "backoff"})
	waitPattern(t, mgr, PatternBlink)

	mgr.Stop()
	if mgr.Current() != PatternOff {
		t.Errorf("pattern after Stop = %q, want off", mgr.Current())
	}
}

func TestManager_SkipsRepeatedPattern(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()
	mgr := NewManager(ctrl, bus, discardLogger())
	mgr.Start()
	defer mgr.Stop()

	for range 5 {
		bus.Publish(events.ConnectionStateChangedEvent{Phase: "connecting"})
	}
	bus.Publish(events.ConnectionStateChangedEvent{Phase: "streaming"})
	waitPattern(t, mgr, PatternSolid)

	calls := ctrl.snapshot()
	if len(calls) != 2 || calls[0] != PatternBlink || calls[1] != PatternSolid {
		t.Errorf("controller calls = %v, want [blink solid]", calls)
	}
}

func TestPatternForPhase(t *testing.T) {
	tests := map[string]Pattern{
		"streaming":  PatternSolid,
		"connecting": PatternBlink,
		"backoff":    PatternBlink,
		"stopped":    PatternOff,
		"idle":       PatternOff,
	}
	for phase, want := range tests {
		if got := patternForPhase(phase); got != want {
			t.Errorf("patternForPhase(%q) = %q, want %q", phase, got, want)
		}
	}
}
