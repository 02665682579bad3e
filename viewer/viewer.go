// Package viewer turns sensor frames into the images and overlays shown to
// the user.
package viewer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"maps"

	"essaim.dev/kinectview/depth"
	"essaim.dev/kinectview/metrics"
	"essaim.dev/kinectview/sensor"
	"essaim.dev/kinectview/skeleton"
)

const (
	streamColor     = "color"
	streamDepth     = "depth"
	streamSkeletons = "skeletons"
)

// Surface presents what the viewer produces. Every update replaces the
// previous one; the viewer reuses the images it passes between calls.
type Surface interface {
	UpdateVideo(img *depth.BGRX)
	UpdateDepth(img *depth.BGRX)
	UpdateDepthOverlay(scene skeleton.Scene)
	UpdateColorOverlay(scene skeleton.Scene)
}

// Viewer handles the sensor callbacks. The sensor invokes them one at a time,
// so the buffers below are owned by whichever callback is running.
type Viewer struct {
	sensor  sensor.Sensor
	surface Surface
	log     *slog.Logger
	metrics *metrics.Metrics

	video     *depth.BGRX
	colorizer *depth.Colorizer

	depthSkeletons []skeleton.Skeleton
	colorSkeletons []skeleton.Skeleton
}

func New(s sensor.Sensor, surface Surface, log *slog.Logger, m *metrics.Metrics) *Viewer {
	return &Viewer{
		sensor:  s,
		surface: surface,
		log:     log,
		metrics: m,

		colorizer: depth.NewColorizer(depth.DefaultThresholds),
	}
}

// Run attaches the viewer to the sensor and runs it until ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	v.sensor.SetHandlers(sensor.Handlers{
		ColorFrameReady: v.OnColorFrameReady,
		DepthFrameReady: v.OnDepthFrameReady,
		AllFramesReady:  v.OnAllFramesReady,
	})

	if err := v.sensor.Run(ctx); err != nil {
		return fmt.Errorf("could not run sensor: %w", err)
	}

	return nil
}

func (v *Viewer) OnColorFrameReady(e *sensor.Event) {
	frame := e.OpenColorFrame()
	if frame == nil {
		// Happens while the sensor is unplugged or stopping.
		v.metrics.IncFramesSkipped(streamColor)
		return
	}
	defer frame.Release()

	if len(frame.Pix) != frame.Width*frame.Height*4 {
		v.log.Warn("color frame does not match its size",
			"width", frame.Width,
			"height", frame.Height,
			"bytes", len(frame.Pix),
		)
		v.metrics.IncFramesSkipped(streamColor)
		return
	}

	if v.video == nil || v.video.Rect.Dx() != frame.Width || v.video.Rect.Dy() != frame.Height {
		v.video = depth.NewBGRX(image.Rect(0, 0, frame.Width, frame.Height))
		v.metrics.IncBufferAllocations(streamColor)
		v.log.Debug("allocated video buffer", "width", frame.Width, "height", frame.Height)
	}

	copy(v.video.Pix, frame.Pix)
	v.metrics.IncFrames(streamColor)

	v.surface.UpdateVideo(v.video)
}

func (v *Viewer) OnDepthFrameReady(e *sensor.Event) {
	frame := e.OpenDepthFrame()
	if frame == nil {
		v.metrics.IncFramesSkipped(streamDepth)
		return
	}
	// OnAllFramesReady still reads the mapper of this frame. It releases the
	// frame, or Dispatch does once every handler returned.

	if len(frame.Samples) != frame.Width*frame.Height {
		v.log.Warn("depth frame does not match its size",
			"width", frame.Width,
			"height", frame.Height,
			"samples", len(frame.Samples),
		)
		v.metrics.IncFramesSkipped(streamDepth)
		return
	}

	if v.colorizer.NeedsAllocation(frame.Width, frame.Height) {
		t := v.sensor.DepthRange()
		v.colorizer.Reset(frame.Width, frame.Height, t)
		v.metrics.IncBufferAllocations(streamDepth)
		v.log.Debug("allocated depth buffer",
			"width", frame.Width,
			"height", frame.Height,
			"near", t.Near,
			"far", t.Far,
		)
	}

	img, _ := v.colorizer.Colorize(frame.Width, frame.Height, frame.Samples)
	v.metrics.IncFrames(streamDepth)

	v.surface.UpdateDepth(img)
}

func (v *Viewer) OnAllFramesReady(e *sensor.Event) {
	skeletons, ok := v.copySkeletons(e)
	if !ok {
		v.metrics.IncFramesSkipped(streamSkeletons)
		return
	}

	depthFrame := e.OpenDepthFrame()
	if depthFrame == nil {
		v.metrics.IncFramesSkipped(streamSkeletons)
		return
	}
	defer depthFrame.Release()

	if depthFrame.Mapper == nil {
		v.log.Error("depth frame has no coordinate mapper")
		v.metrics.IncFramesSkipped(streamSkeletons)
		return
	}

	v.depthSkeletons = v.depthSkeletons[:0]
	v.colorSkeletons = v.colorSkeletons[:0]
	for _, s := range skeletons {
		d, c := sensor.ProjectSkeleton(depthFrame.Mapper, s)
		v.depthSkeletons = append(v.depthSkeletons, d)
		v.colorSkeletons = append(v.colorSkeletons, c)
	}
	v.metrics.IncFrames(streamSkeletons)

	v.updateOverlays()
}

// copySkeletons copies the tracked skeletons out of the skeleton frame and
// releases it.
func (v *Viewer) copySkeletons(e *sensor.Event) ([]sensor.SkeletonData, bool) {
	frame := e.OpenSkeletonFrame()
	if frame == nil {
		return nil, false
	}
	defer frame.Release()

	tracked := sensor.TrackedSkeletons(frame)
	for idx := range tracked {
		tracked[idx].Joints = maps.Clone(tracked[idx].Joints)
	}

	return tracked, true
}

func (v *Viewer) updateOverlays() {
	depthScene, err := skeleton.MapFrame(v.depthSkeletons)
	if err != nil {
		v.log.Error("could not map skeletons onto depth image", "error", err)
		v.metrics.IncSkeletonErrors()
	}

	colorScene, err := skeleton.MapFrame(v.colorSkeletons)
	if err != nil {
		v.log.Error("could not map skeletons onto video image", "error", err)
		v.metrics.IncSkeletonErrors()
	}

	v.metrics.SetTrackedSkeletons(depthScene.Skeletons)

	v.surface.UpdateDepthOverlay(depthScene)
	v.surface.UpdateColorOverlay(colorScene)
}
