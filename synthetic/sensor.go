// Package synthetic implements a sensor rendering a waving figure in front of
// a wall, for running the viewer without a camera.
package synthetic

import (
	"context"
	"image"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"essaim.dev/kinectview/clock"
	"essaim.dev/kinectview/depth"
	"essaim.dev/kinectview/sensor"
	"essaim.dev/kinectview/skeleton"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 480

	// skeletonSlots is the number of skeletons reported per frame, tracked or not.
	skeletonSlots = 6

	wallDepth   = 3000
	floorDepth  = 4500
	nearDepth   = 500
	figureDepth = 2000
	figureZ     = figureDepth / 1000.0

	floorRows   = 40
	nearBlock   = 40
	figurePad   = 12
	playerIndex = 1
	trackingID  = 1
)

// restPose is the figure standing still, in meters relative to the hip center.
var restPose = map[skeleton.JointType]r3.Vec{
	skeleton.HipCenter:      {X: 0, Y: 0},
	skeleton.Spine:          {X: 0, Y: 0.3},
	skeleton.ShoulderCenter: {X: 0, Y: 0.55},
	skeleton.Head:           {X: 0, Y: 0.75},
	skeleton.ShoulderLeft:   {X: -0.2, Y: 0.5},
	skeleton.ElbowLeft:      {X: -0.35, Y: 0.3},
	skeleton.WristLeft:      {X: -0.45, Y: 0.1},
	skeleton.HandLeft:       {X: -0.5, Y: 0.02},
	skeleton.ShoulderRight:  {X: 0.2, Y: 0.5},
	skeleton.ElbowRight:     {X: 0.35, Y: 0.3},
	skeleton.WristRight:     {X: 0.45, Y: 0.1},
	skeleton.HandRight:      {X: 0.5, Y: 0.02},
	skeleton.HipLeft:        {X: -0.1, Y: -0.05},
	skeleton.KneeLeft:       {X: -0.12, Y: -0.45},
	skeleton.AnkleLeft:      {X: -0.12, Y: -0.85},
	skeleton.FootLeft:       {X: -0.15, Y: -0.9},
	skeleton.HipRight:       {X: 0.1, Y: -0.05},
	skeleton.KneeRight:      {X: 0.12, Y: -0.45},
	skeleton.AnkleRight:     {X: 0.12, Y: -0.85},
	skeleton.FootRight:      {X: 0.15, Y: -0.9},
}

type Sensor struct {
	clock  clock.Clock
	log    *slog.Logger
	width  int
	height int

	projection sensor.Projection
	thresholds depth.Thresholds

	handlers   sensor.Handlers
	handlersMu sync.RWMutex

	colorPool sync.Pool
	depthPool sync.Pool
}

func New(c clock.Clock, log *slog.Logger) *Sensor {
	s := &Sensor{
		clock:      c,
		log:        log,
		width:      DefaultWidth,
		height:     DefaultHeight,
		projection: sensor.NewProjection(DefaultWidth, DefaultHeight),
		thresholds: depth.DefaultThresholds,
	}

	s.colorPool.New = func() any {
		b := make([]byte, s.width*s.height*4)
		return &b
	}
	s.depthPool.New = func() any {
		b := make([]uint16, s.width*s.height)
		return &b
	}

	return s
}

func (s *Sensor) SetHandlers(h sensor.Handlers) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.handlers = h
}

func (s *Sensor) DepthRange() depth.Thresholds {
	return s.thresholds
}

func (s *Sensor) Close() error {
	return s.clock.Close()
}

// Run produces one event per clock tick until the context is done or the
// clock stops.
func (s *Sensor) Run(ctx context.Context) error {
	ticks := s.clock.Tick()

	s.log.Info("synthetic sensor started", "width", s.width, "height", s.height)

	for {
		select {
		case <-ctx.Done():
			return nil
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}

			s.handlersMu.RLock()
			h := s.handlers
			s.handlersMu.RUnlock()

			sensor.Dispatch(h, s.Frame(tick))
		}
	}
}

// Frame renders the event of the given tick.
func (s *Sensor) Frame(tick int64) *sensor.Event {
	joints := Pose(tick)

	box := s.figureBounds(joints)

	return &sensor.Event{
		Color:     s.colorFrame(box),
		Depth:     s.depthFrame(box),
		Skeletons: s.skeletonFrame(joints),
	}
}

// Pose returns the figure's joints at the given tick: swaying left and right
// while waving its right hand.
func Pose(tick int64) map[skeleton.JointType]r3.Vec {
	phase := float64(tick) * 0.05
	sway := 0.4 * math.Sin(phase)
	wave := 0.5 * (1 + math.Sin(phase*4)) / 2

	joints := make(map[skeleton.JointType]r3.Vec, len(restPose))
	for j, p := range restPose {
		switch j {
		case skeleton.HandRight, skeleton.WristRight:
			p.Y += wave
		case skeleton.ElbowRight:
			p.Y += wave / 2
		}

		joints[j] = r3.Vec{X: p.X + sway, Y: p.Y, Z: figureZ}
	}

	return joints
}

func (s *Sensor) figureBounds(joints map[skeleton.JointType]r3.Vec) image.Rectangle {
	var box image.Rectangle
	first := true

	for _, p := range joints {
		pt := s.projection.MapSkeletonPoint(p)
		r := image.Rectangle{Min: toPoint(pt), Max: toPoint(pt).Add(image.Pt(1, 1))}
		if first {
			box, first = r, false
			continue
		}
		box = box.Union(r)
	}

	return box.Inset(-figurePad).Intersect(image.Rect(0, 0, s.width, s.height))
}

func (s *Sensor) colorFrame(figure image.Rectangle) *sensor.ColorFrame {
	buf := s.colorPool.Get().(*[]byte)
	pix := *buf

	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			i := (y*s.width + x) * 4
			b, g, r := uint8(x*255/s.width), uint8(y*255/s.height), uint8(96)
			if (image.Point{x, y}).In(figure) {
				b, g, r = 40, 120, 220
			}
			pix[i], pix[i+1], pix[i+2], pix[i+3] = b, g, r, 0
		}
	}

	return sensor.NewColorFrame(s.width, s.height, pix, func() { s.colorPool.Put(buf) })
}

func (s *Sensor) depthFrame(figure image.Rectangle) *sensor.DepthFrame {
	buf := s.depthPool.Get().(*[]uint16)
	samples := *buf

	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			d, player := uint16(wallDepth), uint16(0)

			switch {
			case x < nearBlock && y < nearBlock:
				d = nearDepth
			case y >= s.height-floorRows:
				d = floorDepth
			case (image.Point{x, y}).In(figure):
				d, player = figureDepth, playerIndex
			}

			samples[y*s.width+x] = d<<depth.PlayerIndexBitmaskWidth | player
		}
	}

	return sensor.NewDepthFrame(s.width, s.height, samples, s.projection, func() { s.depthPool.Put(buf) })
}

func (s *Sensor) skeletonFrame(joints map[skeleton.JointType]r3.Vec) *sensor.SkeletonFrame {
	skeletons := make([]sensor.SkeletonData, skeletonSlots)
	skeletons[0] = sensor.SkeletonData{
		TrackingID: trackingID,
		State:      sensor.Tracked,
		Joints:     joints,
	}

	return sensor.NewSkeletonFrame(skeletons, nil)
}

func toPoint(v r2.Vec) image.Point {
	return image.Pt(int(math.Round(v.X)), int(math.Round(v.Y)))
}
