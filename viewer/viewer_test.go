package viewer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"essaim.dev/kinectview/depth"
	"essaim.dev/kinectview/metrics"
	"essaim.dev/kinectview/sensor"
	"essaim.dev/kinectview/skeleton"
)

type fakeSensor struct {
	handlers   sensor.Handlers
	thresholds depth.Thresholds
	rangeReads int
	events     []*sensor.Event
}

func (s *fakeSensor) SetHandlers(h sensor.Handlers) { s.handlers = h }

func (s *fakeSensor) DepthRange() depth.Thresholds {
	s.rangeReads++
	return s.thresholds
}

func (s *fakeSensor) Run(ctx context.Context) error {
	for _, e := range s.events {
		sensor.Dispatch(s.handlers, e)
	}
	return nil
}

func (s *fakeSensor) Close() error { return nil }

type recordingSurface struct {
	video, depth               []*depth.BGRX
	depthOverlay, colorOverlay []skeleton.Scene
	videoPix                   [][]byte
}

func (s *recordingSurface) UpdateVideo(img *depth.BGRX) {
	s.video = append(s.video, img)
	s.videoPix = append(s.videoPix, bytes.Clone(img.Pix))
}

func (s *recordingSurface) UpdateDepth(img *depth.BGRX) { s.depth = append(s.depth, img) }

func (s *recordingSurface) UpdateDepthOverlay(scene skeleton.Scene) {
	s.depthOverlay = append(s.depthOverlay, scene)
}

func (s *recordingSurface) UpdateColorOverlay(scene skeleton.Scene) {
	s.colorOverlay = append(s.colorOverlay, scene)
}

// identityMapper maps skeleton space straight onto both images.
type identityMapper struct {
	colorOffset r2.Vec
}

func (m identityMapper) MapSkeletonPoint(p r3.Vec) r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }
func (m identityMapper) MapToColorPoint(p r2.Vec) r2.Vec  { return r2.Add(p, m.colorOffset) }

// releaseCheckingMapper fails the test when used after its frame is released.
type releaseCheckingMapper struct {
	identityMapper
	t        *testing.T
	released *bool
}

func (m releaseCheckingMapper) MapSkeletonPoint(p r3.Vec) r2.Vec {
	assert.False(m.t, *m.released, "mapper used after the depth frame was released")
	return m.identityMapper.MapSkeletonPoint(p)
}

func newTestViewer(s *fakeSensor) (*Viewer, *recordingSurface, *bytes.Buffer) {
	var logs bytes.Buffer
	surface := &recordingSurface{}
	log := slog.New(slog.NewTextHandler(&logs, nil))

	return New(s, surface, log, metrics.New()), surface, &logs
}

func skippedFrames(t *testing.T, v *Viewer, stream string) float64 {
	t.Helper()

	families, err := v.metrics.Registry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != "kinectview_frames_skipped_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "stream" && l.GetValue() == stream {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func fullJoints(offset float64) map[skeleton.JointType]r3.Vec {
	joints := make(map[skeleton.JointType]r3.Vec, skeleton.JointCount)
	for j := skeleton.JointType(0); int(j) < skeleton.JointCount; j++ {
		joints[j] = r3.Vec{X: offset + float64(j), Y: float64(j), Z: 2}
	}
	return joints
}

func TestColorFrameCopiedAndReleased(t *testing.T) {
	s := &fakeSensor{}
	v, surface, _ := newTestViewer(s)

	released := 0
	pix := []byte{1, 2, 3, 0, 4, 5, 6, 0}
	v.OnColorFrameReady(&sensor.Event{Color: sensor.NewColorFrame(2, 1, pix, func() { released++ })})

	require.Len(t, surface.video, 1)
	assert.Equal(t, pix, surface.videoPix[0])
	assert.Equal(t, 1, released)

	pix2 := []byte{9, 9, 9, 0, 8, 8, 8, 0}
	v.OnColorFrameReady(&sensor.Event{Color: sensor.NewColorFrame(2, 1, pix2, nil)})

	require.Len(t, surface.video, 2)
	assert.Same(t, surface.video[0], surface.video[1], "buffer allocated once")
	assert.Equal(t, pix2, surface.videoPix[1])
}

func TestEmptyFramesLeaveSurfaceUntouched(t *testing.T) {
	s := &fakeSensor{}
	v, surface, _ := newTestViewer(s)

	e := &sensor.Event{}
	v.OnColorFrameReady(e)
	v.OnDepthFrameReady(e)
	v.OnAllFramesReady(e)

	assert.Empty(t, surface.video)
	assert.Empty(t, surface.depth)
	assert.Empty(t, surface.depthOverlay)
	assert.Empty(t, surface.colorOverlay)
	assert.Zero(t, s.rangeReads)
}

func TestDepthFrameColorized(t *testing.T) {
	s := &fakeSensor{thresholds: depth.Thresholds{Near: 400, Far: 4000}}
	v, surface, _ := newTestViewer(s)

	samples := []uint16{100 << 3, 5000 << 3, 1000<<3 | 1}
	released := 0

	v.OnDepthFrameReady(&sensor.Event{Depth: sensor.NewDepthFrame(3, 1, samples, nil, func() { released++ })})
	v.OnDepthFrameReady(&sensor.Event{Depth: sensor.NewDepthFrame(3, 1, samples, nil, func() { released++ })})

	require.Len(t, surface.depth, 2)
	assert.Same(t, surface.depth[0], surface.depth[1])
	assert.Equal(t, 1, s.rangeReads, "thresholds read once per stream initialization")
	assert.Zero(t, released, "depth frame is left to the event")

	img := surface.depth[1]
	assert.Equal(t, []byte{255, 255, 255}, img.Pix[0:3])
	assert.Equal(t, []byte{0, 0, 0}, img.Pix[4:7])
	assert.Equal(t, []byte{0, 0, depth.Intensity(1000)}, img.Pix[8:11])
}

func TestDepthFrameResizeReallocates(t *testing.T) {
	s := &fakeSensor{thresholds: depth.DefaultThresholds}
	v, surface, _ := newTestViewer(s)

	v.OnDepthFrameReady(&sensor.Event{Depth: sensor.NewDepthFrame(1, 1, []uint16{0}, nil, nil)})
	v.OnDepthFrameReady(&sensor.Event{Depth: sensor.NewDepthFrame(2, 1, []uint16{0, 0}, nil, nil)})

	require.Len(t, surface.depth, 2)
	assert.NotSame(t, surface.depth[0], surface.depth[1])
	assert.Equal(t, 2, s.rangeReads)
}

func TestAllFramesReadyBuildsOverlays(t *testing.T) {
	s := &fakeSensor{}
	v, surface, _ := newTestViewer(s)

	var released []string
	e := &sensor.Event{
		Depth: sensor.NewDepthFrame(640, 480, nil, identityMapper{colorOffset: r2.Vec{X: 5}}, func() {
			released = append(released, "depth")
		}),
		Skeletons: sensor.NewSkeletonFrame([]sensor.SkeletonData{
			{TrackingID: 7, State: sensor.Tracked, Joints: fullJoints(1000)},
			{TrackingID: 2, State: sensor.Tracked, Joints: fullJoints(0)},
			{TrackingID: 3, State: sensor.PositionOnly, Joints: fullJoints(500)},
		}, func() { released = append(released, "skeletons") }),
	}

	v.OnAllFramesReady(e)

	assert.ElementsMatch(t, []string{"depth", "skeletons"}, released)
	require.Len(t, surface.depthOverlay, 1)
	require.Len(t, surface.colorOverlay, 1)

	depthScene := surface.depthOverlay[0]
	assert.Equal(t, 2, depthScene.Skeletons)
	assert.Len(t, depthScene.Polylines, 10)
	assert.Len(t, depthScene.Markers, 2*skeleton.JointCount)
	assert.Less(t, depthScene.Polylines[0].Points[0].X, 1000.0, "ordered by tracking id")
	assert.GreaterOrEqual(t, depthScene.Polylines[5].Points[0].X, 1000.0)

	colorScene := surface.colorOverlay[0]
	assert.Equal(t, depthScene.Polylines[0].Points[0].X+5, colorScene.Polylines[0].Points[0].X)
}

func TestAllFramesReadyReplacesPreviousSkeletons(t *testing.T) {
	s := &fakeSensor{}
	v, surface, _ := newTestViewer(s)

	frame := func(skeletons ...sensor.SkeletonData) *sensor.Event {
		return &sensor.Event{
			Depth:     sensor.NewDepthFrame(1, 1, nil, identityMapper{}, nil),
			Skeletons: sensor.NewSkeletonFrame(skeletons, nil),
		}
	}

	v.OnAllFramesReady(frame(
		sensor.SkeletonData{TrackingID: 1, State: sensor.Tracked, Joints: fullJoints(0)},
		sensor.SkeletonData{TrackingID: 2, State: sensor.Tracked, Joints: fullJoints(0)},
	))
	v.OnAllFramesReady(frame())

	require.Len(t, surface.depthOverlay, 2)
	assert.Equal(t, 2, surface.depthOverlay[0].Skeletons)
	assert.Zero(t, surface.depthOverlay[1].Skeletons)
	assert.Empty(t, surface.depthOverlay[1].Polylines)
}

func TestAllFramesReadyWithoutDepthKeepsOverlay(t *testing.T) {
	s := &fakeSensor{}
	v, surface, _ := newTestViewer(s)

	released := false
	v.OnAllFramesReady(&sensor.Event{
		Skeletons: sensor.NewSkeletonFrame(nil, func() { released = true }),
	})

	assert.True(t, released)
	assert.Empty(t, surface.depthOverlay)
}

func TestMissingJointIsReported(t *testing.T) {
	s := &fakeSensor{}
	v, surface, logs := newTestViewer(s)

	broken := fullJoints(0)
	delete(broken, skeleton.Head)

	v.OnAllFramesReady(&sensor.Event{
		Depth: sensor.NewDepthFrame(1, 1, nil, identityMapper{}, nil),
		Skeletons: sensor.NewSkeletonFrame([]sensor.SkeletonData{
			{TrackingID: 1, State: sensor.Tracked, Joints: broken},
			{TrackingID: 2, State: sensor.Tracked, Joints: fullJoints(100)},
		}, nil),
	})

	require.Len(t, surface.depthOverlay, 1)
	assert.Equal(t, 1, surface.depthOverlay[0].Skeletons, "broken skeleton is not drawn")
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "missing joint Head")
}

func TestRunDispatchesThroughSensor(t *testing.T) {
	s := &fakeSensor{
		thresholds: depth.DefaultThresholds,
		events: []*sensor.Event{{
			Color:     sensor.NewColorFrame(1, 1, []byte{1, 2, 3, 0}, nil),
			Depth:     sensor.NewDepthFrame(1, 1, []uint16{0}, identityMapper{}, nil),
			Skeletons: sensor.NewSkeletonFrame(nil, nil),
		}},
	}
	v, surface, _ := newTestViewer(s)

	require.NoError(t, v.Run(context.Background()))

	assert.Len(t, surface.video, 1)
	assert.Len(t, surface.depth, 1)
	assert.Len(t, surface.depthOverlay, 1)
	assert.Len(t, surface.colorOverlay, 1)
}

func TestDepthFrameReleasedAfterSkeletonsProjected(t *testing.T) {
	released := 0
	done := false
	mapper := releaseCheckingMapper{t: t, released: &done}

	s := &fakeSensor{
		thresholds: depth.DefaultThresholds,
		events: []*sensor.Event{{
			Depth: sensor.NewDepthFrame(1, 1, []uint16{0}, mapper, func() {
				released++
				done = true
			}),
			Skeletons: sensor.NewSkeletonFrame([]sensor.SkeletonData{
				{TrackingID: 1, State: sensor.Tracked, Joints: fullJoints(0)},
			}, nil),
		}},
	}
	v, surface, _ := newTestViewer(s)

	require.NoError(t, v.Run(context.Background()))

	assert.Equal(t, 1, released)
	require.Len(t, surface.depth, 1)
	require.Len(t, surface.depthOverlay, 1)
	assert.Equal(t, 1, surface.depthOverlay[0].Skeletons)
}

func TestShortColorFrameSkipped(t *testing.T) {
	s := &fakeSensor{}
	v, surface, logs := newTestViewer(s)

	pix := []byte{1, 2, 3, 0, 4, 5, 6, 0}
	v.OnColorFrameReady(&sensor.Event{Color: sensor.NewColorFrame(2, 1, pix, nil)})

	released := false
	v.OnColorFrameReady(&sensor.Event{Color: sensor.NewColorFrame(2, 1, []byte{9, 9, 9, 0}, func() { released = true })})
	v.OnColorFrameReady(&sensor.Event{Color: sensor.NewColorFrame(3, 1, pix, nil)})

	require.Len(t, surface.video, 1, "short frames are not shown")
	assert.Equal(t, pix, surface.video[0].Pix, "previous image left intact")
	assert.True(t, released)
	assert.Equal(t, 2.0, skippedFrames(t, v, streamColor))
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestShortDepthFrameSkipped(t *testing.T) {
	s := &fakeSensor{thresholds: depth.DefaultThresholds}
	v, surface, logs := newTestViewer(s)

	v.OnDepthFrameReady(&sensor.Event{Depth: sensor.NewDepthFrame(2, 1, []uint16{1000 << 3, 1000 << 3}, nil, nil)})
	want := bytes.Clone(surface.depth[0].Pix)

	v.OnDepthFrameReady(&sensor.Event{Depth: sensor.NewDepthFrame(2, 1, []uint16{0}, nil, nil)})
	v.OnDepthFrameReady(&sensor.Event{Depth: sensor.NewDepthFrame(4, 1, []uint16{0, 0}, nil, nil)})

	require.Len(t, surface.depth, 1, "short frames are not shown")
	assert.Equal(t, want, surface.depth[0].Pix, "previous image left intact")
	assert.Equal(t, 1, s.rangeReads, "short frame does not reallocate")
	assert.Equal(t, 2.0, skippedFrames(t, v, streamDepth))
	assert.Contains(t, logs.String(), "level=WARN")
}
