package skeleton

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// fullSkeleton places every joint on its own x column.
func fullSkeleton(offset float64) Skeleton {
	s := make(Skeleton, JointCount)
	for j := JointType(0); int(j) < JointCount; j++ {
		s[j] = r2.Vec{X: offset + float64(j), Y: float64(-j)}
	}
	return s
}

func TestJointTypeNames(t *testing.T) {
	assert.Equal(t, 20, JointCount)
	assert.Equal(t, "Head", Head.String())
	assert.Equal(t, "FootRight", FootRight.String())
	assert.Equal(t, "JointType(42)", JointType(42).String())

	j, err := ParseJointType("ElbowLeft")
	require.NoError(t, err)
	assert.Equal(t, ElbowLeft, j)

	_, err = ParseJointType("Tail")
	assert.ErrorIs(t, err, ErrUnknownJoint)
}

func TestMapPolylines(t *testing.T) {
	g, err := Map(fullSkeleton(0))
	require.NoError(t, err)

	require.Len(t, g.Polylines, 5)

	counts := make([]int, 0, len(g.Polylines))
	names := make([]string, 0, len(g.Polylines))
	for _, p := range g.Polylines {
		counts = append(counts, len(p.Points))
		names = append(names, p.Chain)
	}
	assert.Equal(t, []int{4, 5, 5, 5, 5}, counts)
	assert.Equal(t, []string{"spine", "left arm", "right arm", "left leg", "right leg"}, names)

	assert.Equal(t, []r2.Vec{
		{X: float64(ShoulderCenter), Y: -float64(ShoulderCenter)},
		{X: float64(ShoulderRight), Y: -float64(ShoulderRight)},
		{X: float64(ElbowRight), Y: -float64(ElbowRight)},
		{X: float64(WristRight), Y: -float64(WristRight)},
		{X: float64(HandRight), Y: -float64(HandRight)},
	}, g.Polylines[2].Points)
}

func TestMapSpineScenario(t *testing.T) {
	s := fullSkeleton(100)
	s[HipCenter] = r2.Vec{X: 0, Y: 0}
	s[Spine] = r2.Vec{X: 0, Y: -10}
	s[ShoulderCenter] = r2.Vec{X: 0, Y: -20}
	s[Head] = r2.Vec{X: 0, Y: -30}

	g, err := Map(s)
	require.NoError(t, err)

	assert.Equal(t, []r2.Vec{{X: 0, Y: 0}, {X: 0, Y: -10}, {X: 0, Y: -20}, {X: 0, Y: -30}}, g.Polylines[0].Points)
}

func TestMapMarkers(t *testing.T) {
	g, err := Map(fullSkeleton(0))
	require.NoError(t, err)
	require.Len(t, g.Markers, JointCount)

	for idx, m := range g.Markers {
		assert.Equal(t, JointType(idx), m.Joint, "markers follow joint order")

		tick, hasTick := m.Tick()
		circle, hasCircle := m.Circle()

		switch m.Joint {
		case HandLeft, HandRight:
			assert.Equal(t, MarkerHand, m.Kind)
			assert.False(t, hasTick)
			require.True(t, hasCircle)
			assert.Equal(t, 30.0, circle.Diameter)
			assert.True(t, circle.Filled)
			assert.Equal(t, m.Center, circle.Center)
		case Head:
			assert.Equal(t, MarkerHead, m.Kind)
			require.True(t, hasTick)
			require.True(t, hasCircle)
			assert.Equal(t, 80.0, circle.Diameter)
			assert.False(t, circle.Filled)
			assert.Equal(t, 6.0, tick.Width)
		default:
			assert.Equal(t, MarkerTick, m.Kind)
			require.True(t, hasTick)
			assert.False(t, hasCircle)
		}
	}
}

func TestMarkerTickIsCentered(t *testing.T) {
	tick, ok := MarkerFor(Spine, r2.Vec{X: 10, Y: 20}).Tick()
	require.True(t, ok)

	assert.Equal(t, Line{From: r2.Vec{X: 7, Y: 20}, To: r2.Vec{X: 13, Y: 20}, Width: 6}, tick)
}

func TestMapMissingJoint(t *testing.T) {
	s := fullSkeleton(0)
	delete(s, Head)

	g, err := Map(s)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingJoint)

	var missing *MissingJointError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, Head, missing.Joint)
	assert.Equal(t, "spine", missing.Chain)
	assert.Empty(t, g.Polylines)
	assert.Empty(t, g.Markers)
}

func TestMapUnknownJoint(t *testing.T) {
	s := fullSkeleton(0)
	s[JointType(99)] = r2.Vec{}

	_, err := Map(s)
	assert.ErrorIs(t, err, ErrUnknownJoint)
}

func TestMapFrameOrdering(t *testing.T) {
	first, second := fullSkeleton(0), fullSkeleton(1000)

	scene, err := MapFrame([]Skeleton{first, second})
	require.NoError(t, err)

	require.Len(t, scene.Polylines, 10)
	require.Len(t, scene.Markers, 2*JointCount)
	assert.Equal(t, 2, scene.Skeletons)

	for idx, p := range scene.Polylines {
		fromSecond := p.Points[0].X >= 1000
		assert.Equal(t, idx >= 5, fromSecond, "polyline %d", idx)
		assert.Equal(t, Chains[idx%5].Name, p.Chain)
	}
	for idx, m := range scene.Markers {
		fromSecond := m.Center.X >= 1000
		assert.Equal(t, idx >= JointCount, fromSecond, "marker %d", idx)
	}
}

func TestMapFrameDropsBrokenSkeleton(t *testing.T) {
	broken := fullSkeleton(500)
	delete(broken, KneeRight)

	scene, err := MapFrame([]Skeleton{fullSkeleton(0), broken, fullSkeleton(1000)})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingJoint)
	assert.Contains(t, err.Error(), "skeleton 1")
	assert.Equal(t, 2, scene.Skeletons)
	assert.Len(t, scene.Polylines, 10)
	for _, p := range scene.Polylines {
		for _, pt := range p.Points {
			assert.False(t, pt.X >= 500 && pt.X < 1000, "no geometry from the broken skeleton")
		}
	}
}

func TestMapFrameEmpty(t *testing.T) {
	scene, err := MapFrame(nil)
	require.NoError(t, err)
	assert.Zero(t, scene.Skeletons)
	assert.Empty(t, scene.Polylines)
	assert.Empty(t, scene.Markers)
}

func TestMapIsDeterministic(t *testing.T) {
	s := fullSkeleton(0)
	a, err := Map(s)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := Map(s)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}
