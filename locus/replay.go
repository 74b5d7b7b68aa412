package locus

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Bucknalla/go-robot-locus/internal/timeutil"
)

// View receives the control and status updates of a Controller. Calls are
// made while the controller holds its lock, so a View must not call back
// into the controller.
type View interface {
	SetControls(c Controls)
	ShowStatus(s Status)
}

type nopView struct{}

func (nopView) SetControls(Controls) {}
func (nopView) ShowStatus(Status)    {}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock pacing the reveal steps.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithLogger sets the logger receiving replay diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// Controller fetches a sample sequence and reveals it point by point.
type Controller struct {
	mu       sync.Mutex
	config   Config
	fetcher  Fetcher
	scaler   *Scaler
	renderer Renderer
	view     View
	clock    timeutil.Clock
	log      zerolog.Logger

	state   State
	runID   string
	samples []Sample
	dataset []Point
	cursor  int
	display Display

	// generation is bumped by every Show, Stop and Clear. Fetch results
	// and timer firings carry the generation they were issued under and
	// are dropped when it no longer matches.
	generation  uint64
	timer       timeutil.Timer
	cancelStep  chan struct{}
	cancelFetch context.CancelFunc
	idle        chan struct{}
}

// NewController creates an idle replay controller.
func NewController(config Config, fetcher Fetcher, scaler *Scaler, renderer Renderer, view View, opts ...Option) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if view == nil {
		view = nopView{}
	}

	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		config:   config,
		fetcher:  fetcher,
		scaler:   scaler,
		renderer: renderer,
		view:     view,
		clock:    timeutil.RealClock{},
		log:      zerolog.Nop(),
		state:    Idle,
		idle:     idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Show starts a replay of q. It returns ErrReplayRunning without side
// effects while another replay runs. The fetch runs in the background;
// ctx bounds it.
func (c *Controller) Show(ctx context.Context, q Query) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running {
		return ErrReplayRunning
	}

	c.resetLocked()
	c.state = Running
	c.runID = uuid.NewString()
	c.idle = make(chan struct{})

	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancelFetch = cancel

	c.log.Info().
		Str("run", c.runID).
		Time("st", q.Start).
		Time("et", q.End).
		Msg("fetching robot positions")

	c.view.SetControls(Gate(true, true, Running))
	c.publishLocked()

	go c.fetch(fetchCtx, cancel, c.generation, q)
	return nil
}

// Stop cancels the pending reveal step and restores the idle controls.
// The revealed dataset stays on the surface.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.state != Running {
		c.view.SetControls(Gate(true, true, c.state))
		return
	}

	c.log.Info().
		Str("run", c.runID).
		Int("index", c.cursor).
		Int("total", len(c.samples)).
		Msg("replay stopped")
	c.finishLocked(Stopped)
}

// Clear cancels any pending step, empties the dataset, resets the domain
// to the default bound and blanks the status displays.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasRunning := c.state == Running
	c.resetLocked()
	c.state = Idle
	c.runID = ""

	c.view.SetControls(Gate(true, true, Idle))
	c.publishLocked()
	if wasRunning {
		c.signalIdleLocked()
	}
}

// Step performs the next reveal step immediately, replacing the pending
// timer. It returns false when no replay is running or nothing is left.
func (c *Controller) Step() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running || c.cursor >= len(c.samples) {
		return false
	}
	c.cancelTimerLocked()
	c.stepLocked()
	return true
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until the controller is not running or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, q Query) {
	defer cancel()
	samples, err := c.fetcher.Fetch(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.state != Running {
		c.log.Debug().Uint64("generation", gen).Msg("discarding stale positions response")
		return
	}
	c.cancelFetch = nil

	if err != nil {
		c.log.Error().Err(err).Str("run", c.runID).Msg("can't get the robot positions")
		c.finishLocked(Idle)
		return
	}
	c.loadLocked(samples)
}

func (c *Controller) loadLocked(samples []Sample) {
	c.samples = samples
	c.cursor = 0
	c.display.Progress = fmt.Sprintf("0/%d points", len(samples))

	c.log.Info().Str("run", c.runID).Int("total", len(samples)).Msg("robot positions received")

	if len(samples) == 0 {
		c.finishLocked(Idle)
		return
	}

	bound := DomainBound(samples, c.config.DefaultBound)
	if err := c.scaler.SetDomain(bound); err != nil {
		c.log.Warn().Err(err).Float64("bound", bound).Msg("keeping previous domain")
	}
	c.renderLocked()
	c.publishLocked()
	c.scheduleLocked()
}

// stepLocked reveals the sample under the cursor and schedules the next one.
func (c *Controller) stepLocked() {
	s := c.samples[c.cursor]
	if p, ok := s.Point(); ok && (len(c.dataset) == 0 || c.dataset[len(c.dataset)-1] != p) {
		c.dataset = append(c.dataset, p)
		c.renderLocked()
	}

	c.display.PointNum = fmt.Sprintf("point : %d/%d", c.cursor+1, len(c.samples))
	c.display.Time = "time : " + s.Time
	if s.X != nil {
		c.display.PosX = "x : " + formatValue(*s.X)
	}
	if s.Y != nil {
		c.display.PosY = "y : " + formatValue(*s.Y)
	}
	if s.Theta != nil {
		c.display.PosTheta = "θ : " + formatValue(*s.Theta)
	}

	c.cursor++
	if c.cursor < len(c.samples) {
		c.publishLocked()
		c.scheduleLocked()
		return
	}

	c.log.Info().Str("run", c.runID).Int("points", len(c.dataset)).Msg("replay completed")
	c.finishLocked(Idle)
}

func (c *Controller) scheduleLocked() {
	gen := c.generation
	timer := c.clock.NewTimer(c.config.Interval)
	cancel := make(chan struct{})
	c.timer = timer
	c.cancelStep = cancel

	go func() {
		select {
		case <-timer.C():
			c.fire(gen, timer)
		case <-cancel:
		}
	}()
}

func (c *Controller) fire(gen uint64, timer timeutil.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.timer != timer || c.state != Running {
		return
	}
	c.timer = nil
	c.cancelStep = nil
	c.stepLocked()
}

func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancelStep != nil {
		close(c.cancelStep)
		c.cancelStep = nil
	}
}

func (c *Controller) finishLocked(state State) {
	c.cancelTimerLocked()
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.state = state
	c.view.SetControls(Gate(true, true, state))
	c.publishLocked()
	c.signalIdleLocked()
}

func (c *Controller) resetLocked() {
	c.generation++
	c.cancelTimerLocked()
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}

	c.samples = nil
	c.dataset = nil
	c.cursor = 0
	c.display = Display{}
	if err := c.scaler.SetDomain(c.config.DefaultBound); err != nil {
		c.log.Warn().Err(err).Msg("failed to reset domain")
	}
	c.renderLocked()
}

func (c *Controller) renderLocked() {
	if c.renderer == nil {
		return
	}
	if err := c.renderer.Render(c.dataset); err != nil {
		c.log.Error().Err(err).Str("run", c.runID).Msg("failed to render plot")
	}
}

func (c *Controller) signalIdleLocked() {
	select {
	case <-c.idle:
	default:
		close(c.idle)
	}
}

func (c *Controller) publishLocked() {
	c.view.ShowStatus(c.statusLocked())
}

func (c *Controller) statusLocked() Status {
	points := make([]Point, len(c.dataset))
	copy(points, c.dataset)
	return Status{
		State:   c.state,
		RunID:   c.runID,
		Index:   c.cursor,
		Total:   len(c.samples),
		Bound:   c.scaler.Domain(),
		Points:  points,
		Display: c.display,
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
