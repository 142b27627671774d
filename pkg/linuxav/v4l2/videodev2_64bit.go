//go:build linux && (amd64 || arm64)

package v4l2

import "unsafe"

// v4l2_format contains a union with pointer members, so the union is 8-byte
// aligned on 64-bit kernels.
var _ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}

// IOCTL constants for 64-bit architectures.
const (
	vidiocGFmt = 0xc0d05604
	vidiocSFmt = 0xc0d05605
)

// v4l2Format has size 208 bytes.
type v4l2Format struct {
	typ uint32        // offset 0
	_   [4]byte       // padding
	pix v4l2PixFormat // offset 8 (union with the other format types)
	_   [152]byte     // rest of the 200 byte union
}
