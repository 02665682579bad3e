package sensor

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"essaim.dev/kinectview/skeleton"
)

// skeletonToDepthMultiplier is the nominal focal length in pixels of the depth
// camera at 320x240.
const skeletonToDepthMultiplier = 285.63

// CoordinateMapper projects skeleton space points into a depth image, and
// depth image points onto the color image.
type CoordinateMapper interface {
	MapSkeletonPoint(p r3.Vec) r2.Vec
	MapToColorPoint(p r2.Vec) r2.Vec
}

// Projection is a pinhole model of the depth camera together with a linear
// registration of the depth image onto the color image.
type Projection struct {
	Width  int
	Height int

	// ColorScale and ColorOffset register depth pixels onto color pixels.
	ColorScale  r2.Vec
	ColorOffset r2.Vec
}

// NewProjection returns the projection of a depth image of the given size
// whose color image has the same size and is aligned with it.
func NewProjection(width, height int) Projection {
	return Projection{
		Width:      width,
		Height:     height,
		ColorScale: r2.Vec{X: 1, Y: 1},
	}
}

// MapSkeletonPoint returns the depth image pixel of p. Points at or behind the
// camera plane map to the image center.
func (p Projection) MapSkeletonPoint(v r3.Vec) r2.Vec {
	center := r2.Vec{X: float64(p.Width) / 2, Y: float64(p.Height) / 2}
	if v.Z <= 0 {
		return center
	}

	f := skeletonToDepthMultiplier * float64(p.Width) / 320

	return r2.Vec{
		X: center.X + v.X*f/v.Z,
		Y: center.Y - v.Y*f/v.Z,
	}
}

func (p Projection) MapToColorPoint(v r2.Vec) r2.Vec {
	return r2.Add(r2.Vec{X: v.X * p.ColorScale.X, Y: v.Y * p.ColorScale.Y}, p.ColorOffset)
}

// ProjectSkeleton maps every joint of s into depth image space and, from
// there, into color image space.
func ProjectSkeleton(m CoordinateMapper, s SkeletonData) (depthSkeleton, colorSkeleton skeleton.Skeleton) {
	depthSkeleton = make(skeleton.Skeleton, len(s.Joints))
	colorSkeleton = make(skeleton.Skeleton, len(s.Joints))

	for j, pos := range s.Joints {
		d := m.MapSkeletonPoint(pos)
		depthSkeleton[j] = d
		colorSkeleton[j] = m.MapToColorPoint(d)
	}

	return depthSkeleton, colorSkeleton
}
