//go:build !linux

package hotplug

import "context"

// Monitor is unavailable outside Linux.
type Monitor struct{}

// NewMonitor always returns ErrUnsupported.
func NewMonitor(...string) (*Monitor, error) {
	return nil, ErrUnsupported
}

// Watch is a no-op.
func (m *Monitor) Watch(string) {}

// Close is a no-op.
func (m *Monitor) Close() error { return nil }

// Run closes out and returns ErrUnsupported.
func (m *Monitor) Run(_ context.Context, out chan<- Event) error {
	close(out)
	return ErrUnsupported
}
