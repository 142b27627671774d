package relay

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/pkg/linuxav/hotplug"
)

// WatchDevices publishes video4linux hotplug events on bus until ctx is
// done. Removal of device is logged as a warning; writes to it will fail
// and end Run shortly after.
func WatchDevices(ctx context.Context, bus *events.Bus, device string, logger *slog.Logger) error {
	monitor, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return err
	}
	defer monitor.Close()

	target := resolveNode(device)
	uevents := make(chan hotplug.Event, 8)
	errCh := make(chan error, 1)
	go func() { errCh <- monitor.Run(ctx, uevents) }()

	for ev := range uevents {
		out, ok := hotplugEvent(ev, target, time.Now())
		if !ok {
			continue
		}
		if out.InUse && out.Action == hotplug.ActionRemove {
			logger.Warn("Virtual camera device removed", "device", out.DevicePath)
		} else {
			logger.Debug("Video device changed", "action", out.Action, "device", out.DevicePath)
		}
		bus.Publish(out)
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func hotplugEvent(ev hotplug.Event, target string, now time.Time) (events.DeviceHotplugEvent, bool) {
	node := ev.Node()
	if node == "" {
		return events.DeviceHotplugEvent{}, false
	}
	return events.DeviceHotplugEvent{
		Action:     ev.Action,
		DevicePath: node,
		InUse:      node == target,
		Timestamp:  now.Format(time.RFC3339),
	}, true
}

// resolveNode follows /dev/v4l/by-id style symlinks to the real node.
func resolveNode(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
