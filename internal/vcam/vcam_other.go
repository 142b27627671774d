//go:build !linux

package vcam

import "fmt"

// Open is not available on this platform.
func Open(cfg Config) (Device, error) {
	return nil, fmt.Errorf("virtual camera %s: %w", cfg.Path, ErrUnsupported)
}
