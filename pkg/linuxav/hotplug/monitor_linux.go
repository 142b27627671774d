//go:build linux

package hotplug

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// pollInterval bounds how long Run waits before rechecking its context.
const pollInterval = 500 // ms

// Monitor listens for kernel uevents on a netlink socket.
type Monitor struct {
	fd         int
	mu         sync.RWMutex
	subsystems map[string]struct{}
	closeOnce  sync.Once
	closeErr   error
}

// NewMonitor opens the uevent socket. When subsystems are given, only their
// events are delivered.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, err
	}
	// group 1 carries the kernel broadcast, before udev rewrites it
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}); err != nil {
		unix.Close(fd)
		return nil, err
	}

	m := &Monitor{fd: fd, subsystems: make(map[string]struct{})}
	for _, s := range subsystems {
		m.subsystems[s] = struct{}{}
	}
	return m, nil
}

// Watch adds subsystem to the filter.
func (m *Monitor) Watch(subsystem string) {
	m.mu.Lock()
	m.subsystems[subsystem] = struct{}{}
	m.mu.Unlock()
}

func (m *Monitor) wants(subsystem string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.subsystems) == 0 {
		return true
	}
	_, ok := m.subsystems[subsystem]
	return ok
}

// Close releases the socket. It is safe to call more than once.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = unix.Close(m.fd)
	})
	return m.closeErr
}

// Run delivers events to out until ctx is done or the socket fails. out is
// closed when Run returns.
func (m *Monitor) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)

	buf := make([]byte, 8192)
	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, pollInterval)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		size, _, err := unix.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			// ENOBUFS means the kernel dropped events; keep listening.
			if errors.Is(err, unix.ENOBUFS) {
				continue
			}
			return err
		}

		ev, ok := ParseUEvent(buf[:size])
		if !ok || !m.wants(ev.Subsystem) {
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
