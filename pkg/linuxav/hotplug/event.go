// Package hotplug reports kernel device add and remove events read from the
// netlink uevent socket, without cgo or libudev.
package hotplug

import (
	"bytes"
	"errors"
	"path"
	"strings"
)

// Actions reported by the kernel.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// SubsystemVideo4Linux is the subsystem of /dev/videoN nodes.
const SubsystemVideo4Linux = "video4linux"

// ErrUnsupported is returned by NewMonitor on platforms without netlink.
var ErrUnsupported = errors.New("hotplug: not supported on this platform")

// Event is a single kernel uevent.
type Event struct {
	Action    string
	KObj      string // sysfs path, e.g. /devices/virtual/video4linux/video10
	Subsystem string
	DevName   string // relative to /dev, e.g. video10
	Env       map[string]string
}

// Node returns the device node path, or "" when the event carries none.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	return path.Join("/dev", e.DevName)
}

// ParseUEvent decodes "ACTION@KOBJ\0KEY=VALUE\0...". Messages rebroadcast by
// udev start with a binary "libudev" header and are skipped.
func ParseUEvent(data []byte) (Event, bool) {
	if len(data) == 0 || bytes.HasPrefix(data, []byte("libudev")) {
		return Event{}, false
	}

	parts := bytes.Split(data, []byte{0})
	action, kobj, found := strings.Cut(string(parts[0]), "@")
	if !found || action == "" {
		return Event{}, false
	}

	ev := Event{Action: action, KObj: kobj, Env: make(map[string]string)}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		}
	}
	return ev, true
}
