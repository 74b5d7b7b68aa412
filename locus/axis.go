package locus

import (
	"math"
	"strconv"
	"sync"

	"gonum.org/v1/plot"
)

// Tick is one axis tick in domain units with its pixel position along the axis.
type Tick struct {
	Value float64
	Label string
	Pos   float64
}

// Scaler maps the symmetric domain [-bound, bound] onto a fixed canvas for
// both axes. Projections are computed on demand from the current bound.
type Scaler struct {
	mu     sync.RWMutex
	width  float64
	height float64
	margin float64
	ticks  int
	bound  float64
}

// NewScaler creates a scaler for a width x height canvas.
func NewScaler(width, height, margin, ticks int, bound float64) (*Scaler, error) {
	if width <= 2*margin || height <= 2*margin || margin < 0 {
		return nil, ErrInvalidCanvas
	}
	if ticks <= 0 {
		return nil, ErrInvalidTicks
	}
	if !validBound(bound) {
		return nil, ErrInvalidDomain
	}
	return &Scaler{
		width:  float64(width),
		height: float64(height),
		margin: float64(margin),
		ticks:  ticks,
		bound:  bound,
	}, nil
}

// NewScalerFromConfig creates a scaler from the canvas settings of a config.
func NewScalerFromConfig(cfg Config) (*Scaler, error) {
	return NewScaler(cfg.Width, cfg.Height, cfg.Margin, cfg.Ticks, cfg.DefaultBound)
}

func validBound(b float64) bool {
	return b > 0 && !math.IsInf(b, 0) && !math.IsNaN(b)
}

// SetDomain sets both axes to [-bound, bound].
func (s *Scaler) SetDomain(bound float64) error {
	if !validBound(bound) {
		return ErrInvalidDomain
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = bound
	return nil
}

// Domain returns the current bound.
func (s *Scaler) Domain() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bound
}

// Size returns the canvas size in pixels.
func (s *Scaler) Size() (width, height float64) {
	return s.width, s.height
}

// Project maps p to canvas pixels. X grows to the right, Y grows downwards.
func (s *Scaler) Project(p Point) (px, py float64) {
	s.mu.RLock()
	b := s.bound
	s.mu.RUnlock()

	px = s.margin + (p.X+b)/(2*b)*(s.width-2*s.margin)
	py = (s.height - s.margin) - (p.Y+b)/(2*b)*(s.height-2*s.margin)
	return px, py
}

// Ticks returns the major ticks of the current domain, positioned along
// the x axis. The y axis uses the same values mirrored, see YTicks.
// The label at zero is blank.
func (s *Scaler) Ticks() []Tick {
	return s.axisTicks(func(v float64) float64 {
		px, _ := s.Project(Point{X: v})
		return px
	})
}

// YTicks returns the ticks positioned along the y axis.
func (s *Scaler) YTicks() []Tick {
	return s.axisTicks(func(v float64) float64 {
		_, py := s.Project(Point{Y: v})
		return py
	})
}

func (s *Scaler) axisTicks(pos func(float64) float64) []Tick {
	b := s.Domain()

	var out []Tick
	for _, t := range (NiceTicks{N: s.ticks}).Ticks(-b, b) {
		label := t.Label
		if t.Value == 0 {
			label = ""
		}
		out = append(out, Tick{Value: t.Value, Label: label, Pos: pos(t.Value)})
	}
	return out
}

// NiceTicks is a plot.Ticker placing about N major ticks on multiples of
// a step of 1, 2 or 5 times a power of ten.
type NiceTicks struct {
	N int
}

var _ plot.Ticker = NiceTicks{}

// Ticks implements plot.Ticker.
func (t NiceTicks) Ticks(min, max float64) []plot.Tick {
	if t.N <= 0 || !(max > min) {
		return nil
	}
	step := niceStep(min, max, t.N)
	if step == 0 || math.IsInf(step, 0) || math.IsNaN(step) {
		return nil
	}

	// Dividing by the inverse of a fractional step keeps 0.2*6 at 1.2.
	value := func(i float64) float64 { return i * step }
	if step < 1 {
		inv := math.Round(1 / step)
		value = func(i float64) float64 { return i / inv }
	}

	prec := 0
	if step < 1 {
		prec = int(-math.Floor(math.Log10(step) + 1e-9))
	}

	lo := math.Ceil(min/step - 1e-9)
	hi := math.Floor(max/step + 1e-9)
	ticks := make([]plot.Tick, 0, int(hi-lo)+1)
	for i := lo; i <= hi; i++ {
		v := value(i)
		if i == 0 {
			v = 0
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', prec, 64)})
	}
	return ticks
}

// niceStep returns the tick step for about n ticks over [min, max].
func niceStep(min, max float64, n int) float64 {
	raw := (max - min) / float64(n)
	power := math.Pow(10, math.Floor(math.Log10(raw)))
	switch e := raw / power; {
	case e >= math.Sqrt(50):
		return power * 10
	case e >= math.Sqrt(10):
		return power * 5
	case e >= math.Sqrt2:
		return power * 2
	default:
		return power
	}
}

// DomainBound computes the shared axis bound for a fetch result:
// ceil(max(|x|, |y|) * 10) / 10. Missing or zero coordinates count as the
// smallest positive float so an axis without data does not widen the plot.
// An empty result yields fallback.
func DomainBound(samples []Sample, fallback float64) float64 {
	if len(samples) == 0 {
		return fallback
	}

	maxX := -math.MaxFloat64
	maxY := -math.MaxFloat64
	for _, s := range samples {
		maxX = math.Max(maxX, magnitude(s.X))
		maxY = math.Max(maxY, magnitude(s.Y))
	}

	return math.Max(math.Ceil(maxX*10)/10, math.Ceil(maxY*10)/10)
}

func magnitude(v *float64) float64 {
	if v == nil || *v == 0 {
		return math.SmallestNonzeroFloat64
	}
	return math.Abs(*v)
}
