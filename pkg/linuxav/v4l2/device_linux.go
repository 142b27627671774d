package v4l2

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

const sysfsVideoDir = "/sys/class/video4linux"

// FindDevices finds all V4L2 video devices on the system, capture and output.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsVideoDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	logger := slog.With("component", "linuxav")
	var devices []DeviceInfo

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "video") {
			continue
		}

		devicePath := "/dev/" + entry.Name()

		fd, err := open(devicePath, unix.O_RDWR|unix.O_NONBLOCK)
		if err != nil {
			logger.Debug("failed to open video device", "path", devicePath, "error", err)
			continue
		}

		c, err := queryCapability(fd)
		unix.Close(fd)
		if err != nil {
			logger.Debug("failed to query device capabilities", "path", devicePath, "error", err)
			continue
		}

		caps := c.effectiveCaps()
		if caps&(CapVideoCapture|CapVideoOutput) == 0 {
			continue
		}

		indexValue := readSysfsInt(filepath.Join(sysfsVideoDir, entry.Name(), "index"))

		stableID := findStableID(entry.Name(), indexValue)
		if stableID == "" {
			busInfo := cstr(c.busInfo[:])
			if strings.HasPrefix(busInfo, "usb-") {
				stableID = fmt.Sprintf("%s-video-index%d", busInfo, indexValue)
			} else {
				stableID = fmt.Sprintf("platform-%s-video-index%d", busInfo, indexValue)
			}
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: cstr(c.card[:]),
			Driver:     cstr(c.driver[:]),
			DeviceID:   stableID,
			Caps:       caps,
		})
	}

	return devices, nil
}

// FindOutputDevices returns the devices that accept frames, such as
// v4l2loopback nodes.
func FindOutputDevices() ([]DeviceInfo, error) {
	all, err := FindDevices()
	if err != nil {
		return nil, err
	}
	outputs := make([]DeviceInfo, 0, len(all))
	for _, d := range all {
		if d.IsOutput() {
			outputs = append(outputs, d)
		}
	}
	return outputs, nil
}

// QueryDevice returns capability information for a single device node.
func QueryDevice(devicePath string) (DeviceInfo, error) {
	fd, err := open(devicePath, unix.O_RDWR|unix.O_NONBLOCK)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to open device: %w", err)
	}
	defer unix.Close(fd)

	c, err := queryCapability(fd)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("VIDIOC_QUERYCAP: %w", err)
	}
	return DeviceInfo{
		DevicePath: devicePath,
		DeviceName: cstr(c.card[:]),
		Driver:     cstr(c.driver[:]),
		Caps:       c.effectiveCaps(),
	}, nil
}

// GetFormats returns the pixel formats a device supports in the given
// direction. Output devices usually report formats only once a writer has
// configured them.
func GetFormats(devicePath string, output bool) ([]FormatInfo, error) {
	fd, err := open(devicePath, unix.O_RDWR|unix.O_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer unix.Close(fd)

	bufType := uint32(bufTypeVideoCapture)
	if output {
		bufType = bufTypeVideoOutput
	}

	var formats []FormatInfo
	for i := uint32(0); ; i++ {
		fmtdesc := v4l2Fmtdesc{
			index: i,
			typ:   bufType,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFmt, unsafe.Pointer(&fmtdesc)); ioctlErr != nil {
			if errors.Is(ioctlErr, unix.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, ioctlErr)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: fmtdesc.pixelformat,
			FormatName:  cstr(fmtdesc.description[:]),
			Emulated:    fmtdesc.flags&fmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}

		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

// readSysfsInt reads an integer value from a sysfs file.
func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
