package relay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const placeholderTextX = 50

// renderPlaceholder draws caption in white on a black canvas, starting at
// x=50 on the vertical midpoint.
func renderPlaceholder(width, height int, caption string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(placeholderTextX, height/2),
	}
	d.DrawString(caption)
	return img
}
