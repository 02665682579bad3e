package depth

import (
	"image"
	"image/color"
)

// BGRX is an in-memory image laid out as the sensor delivers it: blue, green,
// red and one unused byte per pixel. Every pixel is opaque.
type BGRX struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

func NewBGRX(r image.Rectangle) *BGRX {
	return &BGRX{
		Pix:    make([]uint8, bytesPerPixel*r.Dx()*r.Dy()),
		Stride: bytesPerPixel * r.Dx(),
		Rect:   r,
	}
}

func (p *BGRX) ColorModel() color.Model {
	return color.RGBAModel
}

func (p *BGRX) Bounds() image.Rectangle {
	return p.Rect
}

func (p *BGRX) At(x, y int) color.Color {
	return p.BGRXAt(x, y)
}

func (p *BGRX) BGRXAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}

	i := p.PixOffset(x, y)
	s := p.Pix[i : i+bytesPerPixel : i+bytesPerPixel]

	return color.RGBA{R: s[redIndex], G: s[greenIndex], B: s[blueIndex], A: 255}
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *BGRX) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*bytesPerPixel
}

// ToRGBA converts the image into a new RGBA image with the same bounds.
func (p *BGRX) ToRGBA() *image.RGBA {
	rgba := image.NewRGBA(p.Rect)
	p.CopyToRGBA(rgba)

	return rgba
}

// CopyToRGBA writes the image into dst, which must share the same bounds.
func (p *BGRX) CopyToRGBA(dst *image.RGBA) {
	n := min(len(p.Pix), len(dst.Pix))
	for i := 0; i+bytesPerPixel <= n; i += bytesPerPixel {
		dst.Pix[i+0] = p.Pix[i+redIndex]
		dst.Pix[i+1] = p.Pix[i+greenIndex]
		dst.Pix[i+2] = p.Pix[i+blueIndex]
		dst.Pix[i+3] = 255
	}
}

// HorizontalFlip mirrors the given RGBA image in place.
func HorizontalFlip(img *image.RGBA) {
	bounds := img.Bounds()
	width := bounds.Dx()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):img.PixOffset(bounds.Min.X, y)+width*4]
		for l, r := 0, width-1; l < r; l, r = l+1, r-1 {
			for c := 0; c < 4; c++ {
				row[l*4+c], row[r*4+c] = row[r*4+c], row[l*4+c]
			}
		}
	}
}
