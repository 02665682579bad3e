// Package overlay draws skeleton scenes over video and depth images.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/spatial/r2"

	"essaim.dev/kinectview/skeleton"
)

// kappa places cubic Bézier control points approximating a quarter circle.
const kappa = 0.5522847498

// Style holds the colors and stroke widths of the overlay.
type Style struct {
	Bone      color.RGBA
	BoneWidth float64

	Joint color.RGBA

	HandOutline      color.RGBA
	HandOutlineWidth float64

	Ring      color.RGBA
	RingWidth float64
}

// DefaultStyle draws blue bones, lilac joints and hands outlined in black.
func DefaultStyle() Style {
	return Style{
		Bone:             color.RGBA{R: 0, G: 0, B: 255, A: 255},
		BoneWidth:        5,
		Joint:            color.RGBA{R: 181, G: 165, B: 213, A: 255},
		HandOutline:      color.RGBA{R: 0, G: 0, B: 0, A: 255},
		HandOutlineWidth: 1,
		Ring:             color.RGBA{R: 0, G: 0, B: 255, A: 255},
		RingWidth:        2,
	}
}

// Painter rasterizes scenes. It reuses its rasterizer and is not safe for
// concurrent use.
type Painter struct {
	style Style
	z     *vector.Rasterizer
}

func NewPainter(style Style) *Painter {
	return &Painter{
		style: style,
		z:     vector.NewRasterizer(0, 0),
	}
}

// Draw paints the scene over dst, scene coordinates being relative to the
// top left corner of dst. Polylines are painted before markers.
func (p *Painter) Draw(dst *image.RGBA, scene skeleton.Scene) {
	for _, pl := range scene.Polylines {
		p.drawPolyline(dst, pl)
	}

	for _, m := range scene.Markers {
		if c, ok := m.Circle(); ok {
			p.drawCircle(dst, c)
		}
		if l, ok := m.Tick(); ok {
			p.fill(dst, p.style.Joint, func() { p.addSegment(l.From, l.To, l.Width) })
		}
	}
}

func (p *Painter) drawPolyline(dst *image.RGBA, pl skeleton.Polyline) {
	w := p.style.BoneWidth

	p.fill(dst, p.style.Bone, func() {
		for idx := 1; idx < len(pl.Points); idx++ {
			p.addSegment(pl.Points[idx-1], pl.Points[idx], w)
		}
		// Round the joins between segments.
		for idx := 1; idx < len(pl.Points)-1; idx++ {
			p.addDisc(pl.Points[idx], w/2, false)
		}
	})
}

func (p *Painter) drawCircle(dst *image.RGBA, c skeleton.Circle) {
	r := c.Diameter / 2

	if c.Filled {
		p.fill(dst, p.style.HandOutline, func() { p.addDisc(c.Center, r, false) })
		p.fill(dst, p.style.Joint, func() { p.addDisc(c.Center, r-p.style.HandOutlineWidth, false) })
		return
	}

	half := p.style.RingWidth / 2
	p.fill(dst, p.style.Ring, func() {
		p.addDisc(c.Center, r+half, false)
		p.addDisc(c.Center, r-half, true)
	})
}

// fill rasterizes the path built by addPath and paints it with col.
func (p *Painter) fill(dst *image.RGBA, col color.RGBA, addPath func()) {
	b := dst.Bounds()
	p.z.Reset(b.Dx(), b.Dy())
	p.z.DrawOp = draw.Over

	addPath()

	p.z.Draw(dst, b, image.NewUniform(col), image.Point{})
}

// addSegment adds the rectangle covering a stroke of width w from a to b.
func (p *Painter) addSegment(a, b r2.Vec, w float64) {
	d := r2.Sub(b, a)
	length := r2.Norm(d)
	if length == 0 {
		p.addDisc(a, w/2, false)
		return
	}

	n := r2.Scale(w/2/length, r2.Vec{X: -d.Y, Y: d.X})

	// Same winding as addDisc so that overlaps never cancel out.
	p.moveTo(r2.Sub(a, n))
	p.lineTo(r2.Sub(b, n))
	p.lineTo(r2.Add(b, n))
	p.lineTo(r2.Add(a, n))
	p.z.ClosePath()
}

// addDisc adds a circle of radius r around c. A reversed circle is wound the
// other way and cuts a hole in the shape it overlaps.
func (p *Painter) addDisc(c r2.Vec, r float64, reversed bool) {
	if r <= 0 {
		return
	}

	k := kappa * r
	sign := 1.0
	if reversed {
		sign = -1
	}

	pt := func(x, y float64) r2.Vec { return r2.Vec{X: c.X + x, Y: c.Y + sign*y} }

	p.moveTo(pt(r, 0))
	p.cubeTo(pt(r, k), pt(k, r), pt(0, r))
	p.cubeTo(pt(-k, r), pt(-r, k), pt(-r, 0))
	p.cubeTo(pt(-r, -k), pt(-k, -r), pt(0, -r))
	p.cubeTo(pt(k, -r), pt(r, -k), pt(r, 0))
	p.z.ClosePath()
}

func (p *Painter) moveTo(v r2.Vec) {
	p.z.MoveTo(float32(v.X), float32(v.Y))
}

func (p *Painter) lineTo(v r2.Vec) {
	p.z.LineTo(float32(v.X), float32(v.Y))
}

func (p *Painter) cubeTo(b, c, d r2.Vec) {
	p.z.CubeTo(float32(b.X), float32(b.Y), float32(c.X), float32(c.Y), float32(d.X), float32(d.Y))
}

// Label writes text with its baseline starting at dot.
func Label(dst draw.Image, text string, dot image.Point, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(dot.X, dot.Y),
	}
	d.DrawString(text)
}
