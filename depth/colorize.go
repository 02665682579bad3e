// Package depth turns raw depth+player frames into false-colored images.
package depth

import "image"

const (
	// PlayerIndexBitmaskWidth is the number of low bits of a sample holding the
	// player index.
	PlayerIndexBitmaskWidth = 3
	// PlayerIndexBitmask extracts the player index from a sample.
	PlayerIndexBitmask = 1<<PlayerIndexBitmaskWidth - 1

	bytesPerPixel = 4

	blueIndex  = 0
	greenIndex = 1
	redIndex   = 2
)

// Sample is a single depth pixel as delivered by the sensor: the player index
// in the low bits and the depth magnitude in the remaining ones.
type Sample uint16

// Player returns the tracked player index, 0 when no player covers the pixel.
func (s Sample) Player() uint8 {
	return uint8(s & PlayerIndexBitmask)
}

// Depth returns the raw depth magnitude.
func (s Sample) Depth() uint16 {
	return uint16(s >> PlayerIndexBitmaskWidth)
}

// Thresholds are the sensor reported distances outside of which readings are
// unreliable, in raw depth units.
type Thresholds struct {
	Near uint16
	Far  uint16
}

// DefaultThresholds is the default range of a Kinect depth stream.
var DefaultThresholds = Thresholds{Near: 800, Far: 4000}

// Intensity maps a 12 bit depth magnitude to an 8 bit gray level, brighter
// when closer.
func Intensity(depth uint16) uint8 {
	return ^uint8(depth >> 4)
}

// Pixel returns the color of a single sample.
func Pixel(s Sample, t Thresholds) (b, g, r uint8) {
	d := s.Depth()

	switch {
	case d <= t.Near:
		return 255, 255, 255
	case d >= t.Far:
		return 0, 0, 0
	}

	i := Intensity(d)
	if s.Player() == 0 {
		return i / 2, i / 2, i / 2
	}

	return 0, 0, i
}

// Colorize writes one BGRX pixel per sample into dst. Only as many samples as
// fit in dst are processed; the unused fourth byte is left untouched.
func Colorize(dst []byte, samples []uint16, t Thresholds) {
	for i16, i32 := 0, 0; i16 < len(samples) && i32+bytesPerPixel <= len(dst); i16, i32 = i16+1, i32+bytesPerPixel {
		b, g, r := Pixel(Sample(samples[i16]), t)
		dst[i32+blueIndex] = b
		dst[i32+greenIndex] = g
		dst[i32+redIndex] = r
	}
}

// Colorizer colorizes successive frames of the same stream into a single
// reusable image. It is not safe for concurrent use.
type Colorizer struct {
	thresholds Thresholds
	img        *BGRX
}

func NewColorizer(t Thresholds) *Colorizer {
	return &Colorizer{thresholds: t}
}

func (c *Colorizer) Thresholds() Thresholds {
	return c.thresholds
}

// Image returns the last colorized frame, nil before the first one.
func (c *Colorizer) Image() *BGRX {
	return c.img
}

// NeedsAllocation reports whether the next frame of the given size requires a
// new output buffer.
func (c *Colorizer) NeedsAllocation(width, height int) bool {
	return c.img == nil || c.img.Rect.Dx() != width || c.img.Rect.Dy() != height
}

// Reset sizes the output buffer and replaces the thresholds.
func (c *Colorizer) Reset(width, height int, t Thresholds) {
	c.thresholds = t
	c.img = NewBGRX(image.Rect(0, 0, width, height))
}

// Colorize converts a frame into the reusable image, allocating it first when
// the frame size differs from the previous one. It reports whether it
// allocated.
func (c *Colorizer) Colorize(width, height int, samples []uint16) (*BGRX, bool) {
	allocated := false
	if c.NeedsAllocation(width, height) {
		c.Reset(width, height, c.thresholds)
		allocated = true
	}

	Colorize(c.img.Pix, samples, c.thresholds)

	return c.img, allocated
}
