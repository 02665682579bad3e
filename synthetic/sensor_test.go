package synthetic

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"essaim.dev/kinectview/clock"
	"essaim.dev/kinectview/depth"
	"essaim.dev/kinectview/sensor"
	"essaim.dev/kinectview/skeleton"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFrameContents(t *testing.T) {
	s := New(clock.NewManualClock(), discardLogger())

	e := s.Frame(0)
	defer e.Release()

	require.NotNil(t, e.Color)
	assert.Equal(t, DefaultWidth, e.Color.Width)
	assert.Equal(t, DefaultHeight, e.Color.Height)
	assert.Len(t, e.Color.Pix, DefaultWidth*DefaultHeight*4)

	require.NotNil(t, e.Depth)
	require.Len(t, e.Depth.Samples, DefaultWidth*DefaultHeight)
	require.NotNil(t, e.Depth.Mapper)

	near := depth.Sample(e.Depth.Samples[0])
	assert.LessOrEqual(t, near.Depth(), s.DepthRange().Near)

	floor := depth.Sample(e.Depth.Samples[(DefaultHeight-1)*DefaultWidth+DefaultWidth/2])
	assert.GreaterOrEqual(t, floor.Depth(), s.DepthRange().Far)

	hip := e.Depth.Mapper.MapSkeletonPoint(e.Skeletons.Skeletons[0].Joints[skeleton.HipCenter])
	figure := depth.Sample(e.Depth.Samples[int(hip.Y)*DefaultWidth+int(hip.X)])
	assert.Equal(t, uint8(playerIndex), figure.Player())
	assert.Equal(t, uint16(figureDepth), figure.Depth())

	require.NotNil(t, e.Skeletons)
	assert.Len(t, e.Skeletons.Skeletons, skeletonSlots)

	tracked := sensor.TrackedSkeletons(e.Skeletons)
	require.Len(t, tracked, 1)
	assert.Len(t, tracked[0].Joints, skeleton.JointCount)
}

func TestPoseWaves(t *testing.T) {
	still := Pose(0)
	moved := Pose(10)

	assert.NotEqual(t, still[skeleton.HandRight], moved[skeleton.HandRight])
	assert.Equal(t, figureZ, moved[skeleton.Head].Z)
}

func TestRunDispatchesEachTick(t *testing.T) {
	c := clock.NewManualClock()
	s := New(c, discardLogger())

	var events, colorFrames int
	s.SetHandlers(sensor.Handlers{
		ColorFrameReady: func(e *sensor.Event) {
			if f := e.OpenColorFrame(); f != nil {
				defer f.Release()
				colorFrames++
			}
		},
		AllFramesReady: func(*sensor.Event) { events++ },
	})

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
	}()

	c.Advance()
	c.Advance()
	c.Advance()
	require.NoError(t, s.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sensor did not stop")
	}

	assert.Equal(t, 3, events)
	assert.Equal(t, 3, colorFrames)
}

func TestRunStopsOnContext(t *testing.T) {
	s := New(clock.NewManualClock(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, s.Run(ctx))
}
