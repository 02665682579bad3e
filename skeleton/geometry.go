package skeleton

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	tickLength = 6
	tickWidth  = 6

	handDiameter = 30
	headDiameter = 80
)

var (
	// ErrMissingJoint is matched by every MissingJointError.
	ErrMissingJoint = errors.New("missing joint")
	ErrUnknownJoint = errors.New("unknown joint")
)

// MissingJointError reports a body chain referencing a joint absent from the
// skeleton.
type MissingJointError struct {
	Chain string
	Joint JointType
}

func (e *MissingJointError) Error() string {
	return fmt.Sprintf("chain %s: missing joint %s", e.Chain, e.Joint)
}

func (e *MissingJointError) Is(target error) bool {
	return target == ErrMissingJoint
}

// Chain is an ordered sequence of joints drawn as one connected polyline.
type Chain struct {
	Name   string
	Joints []JointType
}

// Chains are the body chains of a skeleton, in drawing order.
var Chains = []Chain{
	{Name: "spine", Joints: []JointType{HipCenter, Spine, ShoulderCenter, Head}},
	{Name: "left arm", Joints: []JointType{ShoulderCenter, ShoulderLeft, ElbowLeft, WristLeft, HandLeft}},
	{Name: "right arm", Joints: []JointType{ShoulderCenter, ShoulderRight, ElbowRight, WristRight, HandRight}},
	{Name: "left leg", Joints: []JointType{HipCenter, HipLeft, KneeLeft, AnkleLeft, FootLeft}},
	{Name: "right leg", Joints: []JointType{HipCenter, HipRight, KneeRight, AnkleRight, FootRight}},
}

type Polyline struct {
	Chain  string
	Points []r2.Vec
}

// Line is a straight stroke.
type Line struct {
	From  r2.Vec
	To    r2.Vec
	Width float64
}

// Circle is centered on a joint; unfilled circles are drawn as a ring.
type Circle struct {
	Center   r2.Vec
	Diameter float64
	Filled   bool
}

type MarkerKind int

const (
	MarkerTick MarkerKind = iota + 1
	MarkerHand
	MarkerHead
)

// Marker is the shape drawn on a single joint.
type Marker struct {
	Joint  JointType
	Kind   MarkerKind
	Center r2.Vec
}

// MarkerFor returns the marker drawn on joint j at p.
func MarkerFor(j JointType, p r2.Vec) Marker {
	kind := MarkerTick

	switch j {
	case HandLeft, HandRight:
		kind = MarkerHand
	case Head:
		kind = MarkerHead
	}

	return Marker{Joint: j, Kind: kind, Center: p}
}

// Tick returns the short horizontal stroke centered on the joint. Hands have
// none.
func (m Marker) Tick() (Line, bool) {
	if m.Kind == MarkerHand {
		return Line{}, false
	}

	half := r2.Vec{X: tickLength / 2}

	return Line{
		From:  r2.Sub(m.Center, half),
		To:    r2.Add(m.Center, half),
		Width: tickWidth,
	}, true
}

// Circle returns the filled disc of a hand or the ring around the head.
func (m Marker) Circle() (Circle, bool) {
	switch m.Kind {
	case MarkerHand:
		return Circle{Center: m.Center, Diameter: handDiameter, Filled: true}, true
	case MarkerHead:
		return Circle{Center: m.Center, Diameter: headDiameter}, true
	default:
		return Circle{}, false
	}
}

// Geometry holds the shapes of one skeleton.
type Geometry struct {
	Polylines []Polyline
	Markers   []Marker
}

// Map builds the polylines of every chain followed by one marker per joint of
// the skeleton. It fails when a chain references a joint the skeleton does
// not have.
func Map(s Skeleton) (Geometry, error) {
	for j := range s {
		if !j.Valid() {
			return Geometry{}, fmt.Errorf("%w: %s", ErrUnknownJoint, j)
		}
	}

	g := Geometry{
		Polylines: make([]Polyline, 0, len(Chains)),
		Markers:   make([]Marker, 0, len(s)),
	}

	for _, chain := range Chains {
		points := make([]r2.Vec, 0, len(chain.Joints))
		for _, j := range chain.Joints {
			p, ok := s[j]
			if !ok {
				return Geometry{}, &MissingJointError{Chain: chain.Name, Joint: j}
			}
			points = append(points, p)
		}
		g.Polylines = append(g.Polylines, Polyline{Chain: chain.Name, Points: points})
	}

	// Joint order rather than map order keeps the output deterministic.
	for j := JointType(0); int(j) < JointCount; j++ {
		if p, ok := s[j]; ok {
			g.Markers = append(g.Markers, MarkerFor(j, p))
		}
	}

	return g, nil
}

// Scene is everything drawn on one surface for one frame: the polylines of all
// skeletons, then their markers.
type Scene struct {
	Polylines []Polyline
	Markers   []Marker
	// Skeletons is the number of skeletons drawn.
	Skeletons int
}

// MapFrame maps every skeleton of a frame. A skeleton that cannot be mapped is
// left out of the scene as a whole and its error is joined into the returned
// one; the scene of the remaining skeletons is still returned.
func MapFrame(skeletons []Skeleton) (Scene, error) {
	var (
		scene Scene
		errs  []error
		geoms = make([]Geometry, 0, len(skeletons))
	)

	for idx, s := range skeletons {
		g, err := Map(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("skeleton %d: %w", idx, err))
			continue
		}
		geoms = append(geoms, g)
	}

	for _, g := range geoms {
		scene.Polylines = append(scene.Polylines, g.Polylines...)
	}
	for _, g := range geoms {
		scene.Markers = append(scene.Markers, g.Markers...)
	}
	scene.Skeletons = len(geoms)

	return scene, errors.Join(errs...)
}
