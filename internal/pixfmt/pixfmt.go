// Package pixfmt converts RGBA frames into the raw pixel layouts accepted by
// V4L2 output devices.
package pixfmt

import (
	"fmt"
	"image"
	"strings"

	"github.com/smazurov/camrelay/pkg/linuxav/v4l2"
)

// Format is a raw pixel layout.
type Format int

// Supported formats.
const (
	RGB24 Format = iota + 1
	BGR24
	YUYV
	YU12
)

var names = map[Format]string{
	RGB24: "rgb24",
	BGR24: "bgr24",
	YUYV:  "yuyv",
	YU12:  "yu12",
}

// Names lists the accepted format names.
func Names() []string {
	return []string{"rgb24", "bgr24", "yuyv", "yu12"}
}

// Parse returns the format with the given name. "i420" is accepted as an
// alias for yu12.
func Parse(name string) (Format, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "i420" {
		return YU12, nil
	}
	for f, s := range names {
		if s == n {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown pixel format %q (supported: %s)", name, strings.Join(Names(), ", "))
}

func (f Format) String() string {
	if s, ok := names[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FourCC returns the V4L2 pixel format code.
func (f Format) FourCC() uint32 {
	switch f {
	case RGB24:
		return v4l2.PixFmtRGB24
	case BGR24:
		return v4l2.PixFmtBGR24
	case YUYV:
		return v4l2.PixFmtYUYV
	case YU12:
		return v4l2.PixFmtYU12
	}
	return 0
}

// Colorspace returns the V4L2 colorspace matching the conversion.
func (f Format) Colorspace() uint32 {
	switch f {
	case YUYV, YU12:
		return v4l2.ColorspaceSMPTE170M
	default:
		return v4l2.ColorspaceSRGB
	}
}

// BytesPerLine returns the stride of the first plane.
func (f Format) BytesPerLine(width int) int {
	switch f {
	case RGB24, BGR24:
		return width * 3
	case YUYV:
		return width * 2
	case YU12:
		return width
	}
	return 0
}

// FrameSize returns the number of bytes in one frame.
func (f Format) FrameSize(width, height int) int {
	switch f {
	case RGB24, BGR24:
		return width * height * 3
	case YUYV:
		return width * height * 2
	case YU12:
		return width*height + 2*(width/2)*(height/2)
	}
	return 0
}

// Validate reports whether the format can represent a width x height frame.
func (f Format) Validate(width, height int) error {
	if _, ok := names[f]; !ok {
		return fmt.Errorf("unknown pixel format %d", int(f))
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	switch f {
	case YUYV:
		if width%2 != 0 {
			return fmt.Errorf("%s needs an even width, got %d", f, width)
		}
	case YU12:
		if width%2 != 0 || height%2 != 0 {
			return fmt.Errorf("%s needs even dimensions, got %dx%d", f, width, height)
		}
	}
	return nil
}

// PixFormat describes f at the given size for VIDIOC_S_FMT.
func (f Format) PixFormat(width, height int) v4l2.PixFormat {
	return v4l2.PixFormat{
		Width:        uint32(width),
		Height:       uint32(height),
		PixelFormat:  f.FourCC(),
		Field:        v4l2.FieldNone,
		BytesPerLine: uint32(f.BytesPerLine(width)),
		SizeImage:    uint32(f.FrameSize(width, height)),
		Colorspace:   f.Colorspace(),
	}
}

// Convert writes img into dst in format f. dst must hold at least
// FrameSize bytes for the image size; the alpha channel is ignored.
func (f Format) Convert(dst []byte, img *image.RGBA) error {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if err := f.Validate(w, h); err != nil {
		return err
	}
	if need := f.FrameSize(w, h); len(dst) < need {
		return fmt.Errorf("destination buffer too small: %d < %d", len(dst), need)
	}

	switch f {
	case RGB24:
		packRGB(dst, img, false)
	case BGR24:
		packRGB(dst, img, true)
	case YUYV:
		packYUYV(dst, img)
	case YU12:
		packYU12(dst, img)
	}
	return nil
}

func packRGB(dst []byte, img *image.RGBA, swap bool) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	o := 0
	for y := range h {
		row := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		for x := range w {
			p := row[x*4 : x*4+3 : x*4+3]
			if swap {
				dst[o], dst[o+1], dst[o+2] = p[2], p[1], p[0]
			} else {
				dst[o], dst[o+1], dst[o+2] = p[0], p[1], p[2]
			}
			o += 3
		}
	}
}

func packYUYV(dst []byte, img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	o := 0
	for y := range h {
		row := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		for x := 0; x < w; x += 2 {
			r0, g0, b0 := int32(row[x*4]), int32(row[x*4+1]), int32(row[x*4+2])
			r1, g1, b1 := int32(row[x*4+4]), int32(row[x*4+5]), int32(row[x*4+6])

			u, v := chroma((r0+r1)/2, (g0+g1)/2, (b0+b1)/2)
			dst[o] = luma(r0, g0, b0)
			dst[o+1] = u
			dst[o+2] = luma(r1, g1, b1)
			dst[o+3] = v
			o += 4
		}
	}
}

func packYU12(dst []byte, img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	cw := w / 2
	yPlane := dst[:w*h]
	uPlane := dst[w*h : w*h+cw*(h/2)]
	vPlane := dst[w*h+cw*(h/2) : w*h+2*cw*(h/2)]

	for y := 0; y < h; y += 2 {
		row0 := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		row1 := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y+1):]
		for x := 0; x < w; x += 2 {
			var rs, gs, bs int32
			for i, row := range [2][]byte{row0, row1} {
				for j := range 2 {
					p := (x + j) * 4
					r, g, b := int32(row[p]), int32(row[p+1]), int32(row[p+2])
					yPlane[(y+i)*w+x+j] = luma(r, g, b)
					rs += r
					gs += g
					bs += b
				}
			}
			u, v := chroma(rs/4, gs/4, bs/4)
			ci := (y/2)*cw + x/2
			uPlane[ci] = u
			vPlane[ci] = v
		}
	}
}

// BT.601 limited range.
func luma(r, g, b int32) byte {
	return byte(((66*r + 129*g + 25*b + 128) >> 8) + 16)
}

func chroma(r, g, b int32) (u, v byte) {
	u = byte(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
	v = byte(((112*r - 94*g - 18*b + 128) >> 8) + 128)
	return u, v
}
