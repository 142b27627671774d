package led

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDisabled(t *testing.T) {
	ctrl := New(Disabled, discardLogger())
	if ctrl.Name() != Disabled {
		t.Errorf("Name() = %q, want %q", ctrl.Name(), Disabled)
	}
	if err := ctrl.Set(PatternSolid); err != nil {
		t.Errorf("no-op Set failed: %v", err)
	}
}

func TestNewNamed(t *testing.T) {
	if got := New("ACT", discardLogger()).Name(); got != "ACT" {
		t.Errorf("Name() = %q, want ACT", got)
	}
}

func TestLedForBoard(t *testing.T) {
	tests := map[string]string{
		"Raspberry Pi 4 Model B Rev 1.4": "ACT",
		"FriendlyElec NanoPC-T6":         "usr_led",
		"Orange Pi 5":                    "green_led",
		"unknown":                        "",
	}
	for model, want := range tests {
		if got := ledForBoard(model); got != want {
			t.Errorf("ledForBoard(%q) = %q, want %q", model, got, want)
		}
	}
}

func TestDetectBoard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model")
	if err := os.WriteFile(path, []byte("Raspberry Pi 4 Model B\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := detectBoard(path); got != "Raspberry Pi 4 Model B" {
		t.Errorf("detectBoard() = %q", got)
	}
	if got := detectBoard(filepath.Join(t.TempDir(), "missing")); got != "unknown" {
		t.Errorf("detectBoard(missing) = %q, want unknown", got)
	}
}

func TestSysfsSet(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "ACT")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	ctrl := newSysfs(root, "ACT")

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	if err := ctrl.Set(PatternSolid); err != nil {
		t.Fatal(err)
	}
	if read("trigger") != "none" || read("brightness") != "1" {
		t.Errorf("solid: trigger=%q brightness=%q", read("trigger"), read("brightness"))
	}

	if err := ctrl.Set(PatternBlink); err != nil {
		t.Fatal(err)
	}
	if read("trigger") != "timer" {
		t.Errorf("blink: trigger=%q, want timer", read("trigger"))
	}

	if err := ctrl.Set(PatternOff); err != nil {
		t.Fatal(err)
	}
	if read("trigger") != "none" || read("brightness") != "0" {
		t.Errorf("off: trigger=%q brightness=%q", read("trigger"), read("brightness"))
	}

	if err := ctrl.Set("rainbow"); err == nil {
		t.Error("expected error for unknown pattern")
	}
}

func TestSysfsMissingLED(t *testing.T) {
	if err := newSysfs(t.TempDir(), "nope").Set(PatternSolid); err == nil {
		t.Error("expected error for missing LED directory")
	}
}
