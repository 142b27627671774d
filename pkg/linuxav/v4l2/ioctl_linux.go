package v4l2

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

func open(path string, flags int) (int, error) {
	for {
		fd, err := unix.Open(path, flags|unix.O_CLOEXEC, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return fd, err
	}
}

func queryCapability(fd int) (*v4l2Capability, error) {
	c := &v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(c)); err != nil {
		return nil, err
	}
	return c, nil
}

// effectiveCaps returns the capabilities of the opened node rather than the
// whole physical device when the driver reports them.
func (c *v4l2Capability) effectiveCaps() uint32 {
	if c.capabilities&CapDeviceCaps != 0 {
		return c.deviceCaps
	}
	return c.capabilities
}
