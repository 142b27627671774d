package led

import (
	"fmt"
	"os"
	"path/filepath"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs drives an LED through the kernel LED class interface.
type sysfs struct {
	dir  string
	name string
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{dir: filepath.Join(root, name), name: name}
}

// Set selects a trigger and brightness for p. Blinking uses the timer
// trigger with the kernel default 500ms period.
func (s *sysfs) Set(p Pattern) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("LED %q: %w", s.name, err)
	}

	trigger, brightness := "none", "0"
	switch p {
	case PatternOff:
	case PatternSolid:
		brightness = "1"
	case PatternBlink:
		trigger, brightness = "timer", "1"
	default:
		return fmt.Errorf("LED %q: unknown pattern %q", s.name, p)
	}

	if err := os.WriteFile(filepath.Join(s.dir, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("failed to set LED trigger: %w", err)
	}
	if trigger != "none" {
		return nil
	}
	if err := os.WriteFile(filepath.Join(s.dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

func (s *sysfs) Name() string { return s.name }
