// Package sensor defines the frames delivered by a depth camera and the
// callbacks through which they are delivered.
package sensor

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"essaim.dev/kinectview/depth"
	"essaim.dev/kinectview/skeleton"
)

// Sensor delivers color, depth and skeleton frames to its handlers. Handlers
// are invoked sequentially from the goroutine running Run.
type Sensor interface {
	SetHandlers(h Handlers)
	// DepthRange returns the depth distances outside of which readings are
	// unreliable.
	DepthRange() depth.Thresholds
	Run(ctx context.Context) error
	Close() error
}

// release is the handle shared by every frame type. Release is idempotent.
type release struct {
	once sync.Once
	fn   func()
}

func (r *release) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.fn != nil {
			r.fn()
		}
	})
}

// ColorFrame holds a BGRX video image, stride Width*4.
type ColorFrame struct {
	Width  int
	Height int
	Pix    []byte

	release
}

func NewColorFrame(width, height int, pix []byte, releaseFunc func()) *ColorFrame {
	return &ColorFrame{Width: width, Height: height, Pix: pix, release: release{fn: releaseFunc}}
}

// DepthFrame holds one depth+player sample per pixel.
type DepthFrame struct {
	Width   int
	Height  int
	Samples []uint16
	// Mapper projects skeleton space into this frame and onto the color image.
	Mapper CoordinateMapper

	release
}

func NewDepthFrame(width, height int, samples []uint16, mapper CoordinateMapper, releaseFunc func()) *DepthFrame {
	return &DepthFrame{
		Width:   width,
		Height:  height,
		Samples: samples,
		Mapper:  mapper,
		release: release{fn: releaseFunc},
	}
}

type TrackingState int

const (
	NotTracked TrackingState = iota
	PositionOnly
	Tracked
)

// SkeletonData is one skeleton slot reported by the sensor, with joint
// positions in skeleton space (meters, camera centered).
type SkeletonData struct {
	TrackingID int
	State      TrackingState
	Joints     map[skeleton.JointType]r3.Vec
}

type SkeletonFrame struct {
	Skeletons []SkeletonData

	release
}

func NewSkeletonFrame(skeletons []SkeletonData, releaseFunc func()) *SkeletonFrame {
	return &SkeletonFrame{Skeletons: skeletons, release: release{fn: releaseFunc}}
}
