// Package systemd reports service state to the systemd service manager.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. Outside a Type=notify unit every call
// is a silent no-op.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a notifier that logs delivery failures to logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready tells systemd that startup finished, with a human readable status.
func (n *Notifier) Ready(status string) {
	n.send(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Status updates the status line shown by systemctl.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// Stopping tells systemd that shutdown began.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// RunWatchdog pings the watchdog at half the configured interval until ctx
// is done. It returns immediately when WatchdogSec is not set.
func (n *Notifier) RunWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid systemd watchdog settings", "error", err)
		return
	}
	if interval == 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	n.logger.Debug("systemd watchdog enabled", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) send(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("Failed to notify systemd", "error", fmt.Errorf("sd_notify: %w", err))
		return
	}
	if sent {
		n.logger.Debug("Notified systemd", "state", state)
	}
}
