package v4l2

import "unsafe"

// Compile-time struct size assertions.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Fmtdesc{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2Fract{})]byte{}
	_ [40]byte  = [unsafe.Sizeof(v4l2Outputparm{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2Streamparm{})]byte{}
)

// IOCTL constants that are the same on every architecture.
const (
	vidiocQuerycap = 0x80685600
	vidiocEnumFmt  = 0xc0405602
	vidiocGParm    = 0xc0cc5615
	vidiocSParm    = 0xc0cc5616
)

// v4l2Capability has size 104 bytes.
type v4l2Capability struct {
	driver       [16]byte  // offset 0
	card         [32]byte  // offset 16
	busInfo      [32]byte  // offset 48
	version      uint32    // offset 80
	capabilities uint32    // offset 84
	deviceCaps   uint32    // offset 88
	reserved     [3]uint32 // offset 92
}

// v4l2Fmtdesc has size 64 bytes.
type v4l2Fmtdesc struct {
	index       uint32    // offset 0
	typ         uint32    // offset 4
	flags       uint32    // offset 8
	description [32]byte  // offset 12
	pixelformat uint32    // offset 44
	mbusCode    uint32    // offset 48
	reserved    [3]uint32 // offset 52
}

// v4l2PixFormat has size 48 bytes.
type v4l2PixFormat struct {
	width        uint32 // offset 0
	height       uint32 // offset 4
	pixelformat  uint32 // offset 8
	field        uint32 // offset 12
	bytesperline uint32 // offset 16
	sizeimage    uint32 // offset 20
	colorspace   uint32 // offset 24
	priv         uint32 // offset 28
	flags        uint32 // offset 32
	ycbcrEnc     uint32 // offset 36
	quantization uint32 // offset 40
	xferFunc     uint32 // offset 44
}

// v4l2Fract has size 8 bytes.
type v4l2Fract struct {
	numerator   uint32
	denominator uint32
}

// v4l2Outputparm has size 40 bytes.
type v4l2Outputparm struct {
	capability   uint32    // offset 0
	outputmode   uint32    // offset 4
	timeperframe v4l2Fract // offset 8
	extendedmode uint32    // offset 16
	writebuffers uint32    // offset 20
	reserved     [4]uint32 // offset 24
}

// v4l2Streamparm has size 204 bytes; the parm union is 200 bytes.
type v4l2Streamparm struct {
	typ  uint32         // offset 0
	parm v4l2Outputparm // offset 4
	_    [160]byte      // rest of the union
}

func (p *v4l2PixFormat) toPixFormat() PixFormat {
	return PixFormat{
		Width:        p.width,
		Height:       p.height,
		PixelFormat:  p.pixelformat,
		Field:        p.field,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
		Colorspace:   p.colorspace,
	}
}

func fromPixFormat(f PixFormat) v4l2PixFormat {
	return v4l2PixFormat{
		width:        f.Width,
		height:       f.Height,
		pixelformat:  f.PixelFormat,
		field:        f.Field,
		bytesperline: f.BytesPerLine,
		sizeimage:    f.SizeImage,
		colorspace:   f.Colorspace,
	}
}
