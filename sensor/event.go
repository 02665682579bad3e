package sensor

import (
	"cmp"
	"slices"
)

// Event carries the frames available when a handler fires. Any of them may be
// missing, for instance while the sensor is unplugged.
type Event struct {
	Color     *ColorFrame
	Depth     *DepthFrame
	Skeletons *SkeletonFrame
}

// OpenColorFrame returns the color frame, nil when there is none. The caller
// must release it.
func (e *Event) OpenColorFrame() *ColorFrame {
	if e == nil {
		return nil
	}
	return e.Color
}

func (e *Event) OpenDepthFrame() *DepthFrame {
	if e == nil {
		return nil
	}
	return e.Depth
}

func (e *Event) OpenSkeletonFrame() *SkeletonFrame {
	if e == nil {
		return nil
	}
	return e.Skeletons
}

// Release releases every frame of the event, including the ones no handler
// opened.
func (e *Event) Release() {
	if e == nil {
		return
	}
	if e.Color != nil {
		e.Color.Release()
	}
	if e.Depth != nil {
		e.Depth.Release()
	}
	if e.Skeletons != nil {
		e.Skeletons.Release()
	}
}

type Handlers struct {
	ColorFrameReady func(*Event)
	DepthFrameReady func(*Event)
	AllFramesReady  func(*Event)
}

// Dispatch runs the handlers one after the other, then releases whatever
// frames are left. Handlers fire even when their frame is missing.
func Dispatch(h Handlers, e *Event) {
	defer e.Release()

	if h.ColorFrameReady != nil {
		h.ColorFrameReady(e)
	}
	if h.DepthFrameReady != nil {
		h.DepthFrameReady(e)
	}
	if h.AllFramesReady != nil {
		h.AllFramesReady(e)
	}
}

// TrackedSkeletons returns the fully tracked skeletons of a frame ordered by
// tracking id.
func TrackedSkeletons(f *SkeletonFrame) []SkeletonData {
	if f == nil {
		return nil
	}

	tracked := make([]SkeletonData, 0, len(f.Skeletons))
	for _, s := range f.Skeletons {
		if s.State == Tracked {
			tracked = append(tracked, s)
		}
	}

	slices.SortFunc(tracked, func(a, b SkeletonData) int {
		return cmp.Compare(a.TrackingID, b.TrackingID)
	})

	return tracked
}
