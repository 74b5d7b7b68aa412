package locus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bucknalla/go-robot-locus/internal/timeutil"
)

// recordingView keeps every update a controller publishes.
type recordingView struct {
	mu       sync.Mutex
	controls []Controls
	statuses []Status
}

func (v *recordingView) SetControls(c Controls) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controls = append(v.controls, c)
}

func (v *recordingView) ShowStatus(s Status) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, s)
}

func (v *recordingView) lastControls() Controls {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.controls) == 0 {
		return Controls{}
	}
	return v.controls[len(v.controls)-1]
}

func (v *recordingView) countPointNum(text string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, s := range v.statuses {
		if s.Display.PointNum == text {
			n++
		}
	}
	return n
}

type testRig struct {
	ctrl    *Controller
	clock   *timeutil.ManualClock
	view    *recordingView
	plotter *Plotter
	scaler  *Scaler
	fetches atomic.Int32
}

func staticFetcher(rig *testRig, samples []Sample, err error) Fetcher {
	return FetcherFunc(func(ctx context.Context, q Query) ([]Sample, error) {
		rig.fetches.Add(1)
		if err != nil {
			return nil, err
		}
		out := make([]Sample, len(samples))
		copy(out, samples)
		return out, nil
	})
}

func createTestRig(t *testing.T, fetcher func(rig *testRig) Fetcher) *testRig {
	t.Helper()
	cfg := DefaultConfig()
	scaler, err := NewScalerFromConfig(cfg)
	require.NoError(t, err)
	plotter, err := NewPlotter(scaler)
	require.NoError(t, err)

	rig := &testRig{
		clock:   timeutil.NewManualClock(time.Date(2018, 1, 2, 3, 4, 5, 0, time.UTC)),
		view:    &recordingView{},
		plotter: plotter,
		scaler:  scaler,
	}
	rig.ctrl, err = NewController(cfg, fetcher(rig), scaler, plotter, rig.view, WithClock(rig.clock))
	require.NoError(t, err)
	return rig
}

func showAndWaitLoaded(t *testing.T, rig *testRig, total int) {
	t.Helper()
	require.NoError(t, rig.ctrl.Show(context.Background(), testQuery))
	require.Eventually(t, func() bool {
		s := rig.ctrl.Status()
		return s.Total == total || s.State != Running
	}, time.Second, time.Millisecond)
}

func pointSamples(points ...Point) []Sample {
	out := make([]Sample, len(points))
	for i, p := range points {
		out[i] = Sample{Time: "t" + formatValue(float64(i)), X: ptr(p.X), Y: ptr(p.Y)}
	}
	return out
}

func TestNewControllerValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 0
	scaler := createTestScaler(t)
	_, err := NewController(cfg, nil, scaler, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestControllerStepsMatchSequenceLength(t *testing.T) {
	samples := pointSamples(Point{0, 0}, Point{0.1, 0}, Point{0.2, 0.1}, Point{0.3, 0.1}, Point{0.4, 0.2})
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, samples, nil) })

	showAndWaitLoaded(t, rig, len(samples))
	assert.Equal(t, Running, rig.ctrl.State())
	assert.Equal(t, "0/5 points", rig.ctrl.Status().Display.Progress)
	assert.Equal(t, 0, rig.view.countPointNum("point : 5/5"))

	steps := 0
	for rig.ctrl.Step() {
		steps++
	}
	assert.Equal(t, len(samples), steps)
	assert.Equal(t, 1, rig.view.countPointNum("point : 5/5"), "M/M must be shown exactly once")

	status := rig.ctrl.Status()
	assert.Equal(t, Idle, status.State)
	assert.Equal(t, 5, status.Index)
	assert.Len(t, status.Points, 5)
	assert.Equal(t, Controls{ShowEnabled: true, IdleVisible: true}, rig.view.lastControls())
	assert.Equal(t, 0, rig.clock.Pending())
	assert.NoError(t, rig.ctrl.Wait(context.Background()))
}

func TestControllerTimerPacesSteps(t *testing.T) {
	samples := pointSamples(Point{0, 0}, Point{0.5, 0.5}, Point{1, 1})
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, samples, nil) })

	showAndWaitLoaded(t, rig, len(samples))

	for i := 1; i <= len(samples); i++ {
		rig.clock.Advance(100 * time.Millisecond)
		want := i
		require.Eventually(t, func() bool {
			return rig.ctrl.Status().Index == want
		}, time.Second, time.Millisecond, "step %d", i)
	}

	require.Eventually(t, func() bool { return rig.ctrl.State() == Idle }, time.Second, time.Millisecond)
	assert.Equal(t, 1, rig.view.countPointNum("point : 3/3"))
	assert.Equal(t, 3, rig.plotter.Stats().Markers)
}

func TestControllerDeduplicatesConsecutivePoints(t *testing.T) {
	samples := pointSamples(Point{1, 1}, Point{1, 1}, Point{2, 2})
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, samples, nil) })

	showAndWaitLoaded(t, rig, len(samples))
	for rig.ctrl.Step() {
	}

	want := []Point{{1, 1}, {2, 2}}
	if diff := cmp.Diff(want, rig.ctrl.Status().Points); diff != "" {
		t.Errorf("dataset mismatch (-want +got):\n%s", diff)
	}
	stats := rig.plotter.Stats()
	assert.Equal(t, 2, stats.Markers)
	assert.Equal(t, 1, stats.Segments)
	assert.Equal(t, 2.0, stats.Bound)
}

func TestControllerNullCoordinatesUpdateDisplayOnly(t *testing.T) {
	samples := []Sample{
		{Time: "2018-01-03T03:04:05+09:00", X: ptr(0.5), Y: ptr(0.25), Theta: ptr(0.3)},
		{Time: "2018-01-04T03:04:05+09:00", Y: ptr(0.75)},
		{Time: "2018-01-05T03:04:05+09:00"},
	}
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, samples, nil) })

	showAndWaitLoaded(t, rig, len(samples))

	require.True(t, rig.ctrl.Step())
	d := rig.ctrl.Status().Display
	assert.Equal(t, "point : 1/3", d.PointNum)
	assert.Equal(t, "x : 0.5", d.PosX)
	assert.Equal(t, "y : 0.25", d.PosY)
	assert.Equal(t, "θ : 0.3", d.PosTheta)

	require.True(t, rig.ctrl.Step())
	status := rig.ctrl.Status()
	assert.Equal(t, "point : 2/3", status.Display.PointNum)
	assert.Equal(t, "time : 2018-01-04T03:04:05+09:00", status.Display.Time)
	assert.Equal(t, "x : 0.5", status.Display.PosX, "absent x keeps the previous display")
	assert.Equal(t, "y : 0.75", status.Display.PosY)
	assert.Equal(t, []Point{{0.5, 0.25}}, status.Points)

	require.True(t, rig.ctrl.Step())
	status = rig.ctrl.Status()
	assert.Equal(t, "point : 3/3", status.Display.PointNum)
	assert.Equal(t, "time : 2018-01-05T03:04:05+09:00", status.Display.Time)
	assert.Len(t, status.Points, 1)
	assert.Equal(t, Idle, status.State)
}

func TestControllerComputesDomainOnce(t *testing.T) {
	samples := []Sample{
		{Time: "a", X: ptr(1.23), Y: ptr(0.1)},
		{Time: "b", X: ptr(-0.2), Y: ptr(-0.7)},
	}
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, samples, nil) })

	assert.Equal(t, 0.1, rig.scaler.Domain())
	showAndWaitLoaded(t, rig, len(samples))

	assert.InDelta(t, 1.3, rig.ctrl.Status().Bound, 1e-12)
	for rig.ctrl.Step() {
	}
	assert.InDelta(t, 1.3, rig.scaler.Domain(), 1e-12)
	assert.InDelta(t, 1.3, rig.plotter.Stats().Bound, 1e-12)
}

func TestControllerStopCancelsPendingSteps(t *testing.T) {
	var points []Point
	for i := 0; i < 10; i++ {
		points = append(points, Point{X: float64(i) / 10, Y: float64(i) / 20})
	}
	samples := pointSamples(points...)
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, samples, nil) })

	showAndWaitLoaded(t, rig, len(samples))
	for i := 0; i < 3; i++ {
		require.True(t, rig.ctrl.Step())
	}
	rig.ctrl.Stop()

	assert.Equal(t, Stopped, rig.ctrl.State())
	assert.Equal(t, 0, rig.clock.Pending())
	assert.Equal(t, Controls{ShowEnabled: true, IdleVisible: true}, rig.view.lastControls())

	rig.clock.Advance(10 * time.Second)
	assert.Never(t, func() bool { return rig.ctrl.Status().Index != 3 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.False(t, rig.ctrl.Step())

	status := rig.ctrl.Status()
	assert.Len(t, status.Points, 3)
	assert.Equal(t, 3, rig.plotter.Stats().Markers, "stop keeps the rendered dataset")
}

func TestControllerFetchFailure(t *testing.T) {
	rig := createTestRig(t, func(rig *testRig) Fetcher {
		return staticFetcher(rig, nil, errors.New("connection refused"))
	})

	require.NoError(t, rig.ctrl.Show(context.Background(), testQuery))
	require.Eventually(t, func() bool { return rig.ctrl.State() == Idle }, time.Second, time.Millisecond)

	controls := rig.view.lastControls()
	assert.True(t, controls.ShowEnabled)
	assert.False(t, controls.StopEnabled)
	assert.Empty(t, rig.ctrl.Status().Points)
	assert.Empty(t, rig.ctrl.Status().Display.Progress)
	assert.Equal(t, int32(1), rig.fetches.Load(), "no retries")
	assert.Equal(t, 0, rig.clock.Pending())
}

func TestControllerEmptyResult(t *testing.T) {
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, []Sample{}, nil) })

	require.NoError(t, rig.ctrl.Show(context.Background(), testQuery))
	require.Eventually(t, func() bool { return rig.ctrl.State() == Idle }, time.Second, time.Millisecond)

	status := rig.ctrl.Status()
	assert.Equal(t, "0/0 points", status.Display.Progress)
	assert.Empty(t, status.Display.PointNum)
	assert.Equal(t, 0.1, status.Bound)
	assert.True(t, rig.view.lastControls().ShowEnabled)
}

func TestControllerShowWhileRunningIsNoop(t *testing.T) {
	samples := pointSamples(Point{0, 0}, Point{1, 1})
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, samples, nil) })

	showAndWaitLoaded(t, rig, len(samples))
	require.True(t, rig.ctrl.Step())

	err := rig.ctrl.Show(context.Background(), testQuery)
	assert.ErrorIs(t, err, ErrReplayRunning)
	assert.Equal(t, int32(1), rig.fetches.Load())
	assert.Equal(t, 1, rig.ctrl.Status().Index)
}

func TestControllerClearIsIdempotent(t *testing.T) {
	samples := pointSamples(Point{0.4, 0.4}, Point{0.8, -0.8}, Point{0, 0})
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, samples, nil) })

	showAndWaitLoaded(t, rig, len(samples))
	require.True(t, rig.ctrl.Step())
	require.True(t, rig.ctrl.Step())

	for i := 0; i < 2; i++ {
		rig.ctrl.Clear()
		status := rig.ctrl.Status()
		assert.Equal(t, Idle, status.State)
		assert.Empty(t, status.Points)
		assert.Equal(t, 0, status.Index)
		assert.Equal(t, 0.1, status.Bound)
		assert.Equal(t, Display{}, status.Display)
		assert.Equal(t, 0, rig.plotter.Stats().Markers)
		assert.Equal(t, 0, rig.clock.Pending())
	}
	assert.False(t, rig.ctrl.Step())
	assert.NoError(t, rig.ctrl.Wait(context.Background()))
}

func TestControllerIgnoresStaleResponse(t *testing.T) {
	release := make(chan struct{})
	samples := pointSamples(Point{1, 1}, Point{2, 2})
	rig := createTestRig(t, func(rig *testRig) Fetcher {
		return FetcherFunc(func(ctx context.Context, q Query) ([]Sample, error) {
			rig.fetches.Add(1)
			<-release // ignores cancellation like a transport that cannot abort
			return samples, nil
		})
	})

	require.NoError(t, rig.ctrl.Show(context.Background(), testQuery))
	require.Eventually(t, func() bool { return rig.fetches.Load() == 1 }, time.Second, time.Millisecond)

	rig.ctrl.Stop()
	close(release)

	assert.Never(t, func() bool {
		s := rig.ctrl.Status()
		return s.Total != 0 || s.State != Stopped
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 0, rig.clock.Pending())
}

func TestControllerWaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	rig := createTestRig(t, func(rig *testRig) Fetcher {
		return FetcherFunc(func(ctx context.Context, q Query) ([]Sample, error) {
			<-block
			return nil, nil
		})
	})

	require.NoError(t, rig.ctrl.Show(context.Background(), testQuery))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rig.ctrl.Wait(ctx), context.DeadlineExceeded)

	rig.ctrl.Clear()
	assert.NoError(t, rig.ctrl.Wait(context.Background()))
}

func TestControllerRunIDPerShow(t *testing.T) {
	samples := pointSamples(Point{1, 1})
	rig := createTestRig(t, func(rig *testRig) Fetcher { return staticFetcher(rig, samples, nil) })

	showAndWaitLoaded(t, rig, 1)
	first := rig.ctrl.Status().RunID
	require.True(t, rig.ctrl.Step())

	showAndWaitLoaded(t, rig, 1)
	second := rig.ctrl.Status().RunID

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
	assert.False(t, strings.Contains(first, " "))
}
