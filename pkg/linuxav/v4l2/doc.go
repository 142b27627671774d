// Package v4l2 provides pure Go bindings to the parts of the Video4Linux2
// (V4L2) API needed to discover devices and feed raw frames into an output
// device such as v4l2loopback.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindOutputDevices to discover devices that accept frames:
//
//	devices, err := v4l2.FindOutputDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Writing Frames
//
// Open an output device with a fixed format and write whole frames:
//
//	out, err := v4l2.OpenOutput("/dev/video10", v4l2.PixFormat{
//	    Width: 640, Height: 480, PixelFormat: v4l2.PixFmtYUYV,
//	})
//	defer out.Close()
//	_, err = out.Write(frame) // len(frame) == out.Format().SizeImage
package v4l2
