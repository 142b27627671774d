//go:build !linux

package v4l2

// FindDevices is not available outside Linux.
func FindDevices() ([]DeviceInfo, error) {
	return nil, ErrUnsupported
}

// FindOutputDevices is not available outside Linux.
func FindOutputDevices() ([]DeviceInfo, error) {
	return nil, ErrUnsupported
}

// QueryDevice is not available outside Linux.
func QueryDevice(string) (DeviceInfo, error) {
	return DeviceInfo{}, ErrUnsupported
}

// GetFormats is not available outside Linux.
func GetFormats(string, bool) ([]FormatInfo, error) {
	return nil, ErrUnsupported
}
