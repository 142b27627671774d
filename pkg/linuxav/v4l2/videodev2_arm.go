//go:build linux && arm

package v4l2

import "unsafe"

// Compile-time struct size assertions for 32-bit ARM.
var _ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}

// IOCTL constants for 32-bit ARM.
// Only the v4l2_format based requests differ from 64-bit, since the union
// is 4-byte aligned here.
const (
	vidiocGFmt = 0xc0cc5604
	vidiocSFmt = 0xc0cc5605
)

// v4l2Format has size 204 bytes.
type v4l2Format struct {
	typ uint32        // offset 0
	pix v4l2PixFormat // offset 4 (union with the other format types)
	_   [152]byte     // rest of the 200 byte union
}
