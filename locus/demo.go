package locus

import (
	"context"
	"math"
	"time"
)

const (
	demoRadius     = 0.8 // orbit radius
	demoCentreX    = 0.2 // orbit centre, offset from the origin
	demoCentreY    = -0.1
	demoPeriod     = 120 // samples per revolution
	demoGapEvery   = 17  // every n-th sample has no position fix
	demoPauseEvery = 25  // every n-th sample repeats the previous position
)

// MaxDemoSamples caps the length of a synthetic sequence. Longer ranges
// are sampled with a wider step.
const MaxDemoSamples = 600

// DemoSamples synthesizes the poses of a robot orbiting an offset circle,
// one sample per step in [start, end). Some samples have no fix and some
// repeat the previous position, as a real robot parked at a waypoint would.
// The step is widened so that at most MaxDemoSamples are produced.
func DemoSamples(start, end time.Time, step time.Duration) []Sample {
	if step <= 0 || !start.Before(end) {
		return nil
	}
	if minStep := (end.Sub(start) + MaxDemoSamples - 1) / MaxDemoSamples; step < minStep {
		step = minStep
	}

	var samples []Sample
	var last Sample
	for i, t := 0, start; t.Before(end); i, t = i+1, t.Add(step) {
		s := Sample{Time: FormatISO8601(t)}
		switch {
		case i > 0 && i%demoGapEvery == 0:
			// lost fix, no coordinates
		case i > 0 && i%demoPauseEvery == 0 && last.HasFix():
			s.X, s.Y, s.Z, s.Theta = last.X, last.Y, last.Z, last.Theta
		default:
			phase := 2 * math.Pi * float64(i) / demoPeriod
			s.X = ptr(round(demoCentreX + demoRadius*math.Cos(phase)))
			s.Y = ptr(round(demoCentreY + demoRadius*math.Sin(phase)))
			s.Z = ptr(0)
			s.Theta = ptr(round(math.Remainder(phase+math.Pi/2, 2*math.Pi)))
		}
		samples = append(samples, s)
		if s.HasFix() {
			last = s
		}
	}
	return samples
}

// DemoFetcher serves DemoSamples for any query. Queries without bounds
// replay the minute before the clock's current time.
type DemoFetcher struct {
	Step time.Duration
	Now  func() time.Time
}

// NewDemoFetcher creates a demo fetcher producing one sample per step.
func NewDemoFetcher(step time.Duration) *DemoFetcher {
	return &DemoFetcher{Step: step, Now: time.Now}
}

// Fetch implements Fetcher.
func (f *DemoFetcher) Fetch(ctx context.Context, q Query) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, end := q.Start, q.End
	if start.IsZero() || end.IsZero() {
		end = f.Now()
		start = end.Add(-time.Minute)
	}
	return DemoSamples(start, end, f.Step), nil
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
