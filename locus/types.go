package locus

import "time"

// Sample is one reported robot pose. X and Y are nil when the robot had
// no position fix; Theta is nil when no heading was reported.
type Sample struct {
	Time  string   `json:"time"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Z     *float64 `json:"z,omitempty"`
	Theta *float64 `json:"theta,omitempty"`
}

// HasFix reports whether both plane coordinates are present.
func (s Sample) HasFix() bool {
	return s.X != nil && s.Y != nil
}

// Point returns the plottable point of a sample with a fix.
func (s Sample) Point() (Point, bool) {
	if !s.HasFix() {
		return Point{}, false
	}
	return Point{X: *s.X, Y: *s.Y}, true
}

// Point is a plottable position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Query selects the samples to replay.
type Query struct {
	Start  time.Time
	End    time.Time
	Bearer string // sent as "Authorization: Bearer <token>" when non-empty
	Path   string // endpoint path override, defaults to Config.Path
}

// State is the replay lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Display holds the status texts shown next to the plot.
type Display struct {
	Progress string `json:"progress"` // "0/M points" once the fetch completes
	PointNum string `json:"point_num"`
	Time     string `json:"time"`
	PosX     string `json:"pos_x"`
	PosY     string `json:"pos_y"`
	PosTheta string `json:"pos_theta"`
}

// Status is a snapshot of the replay controller.
type Status struct {
	State   State   `json:"state"`
	RunID   string  `json:"run_id,omitempty"`
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	Bound   float64 `json:"bound"`
	Points  []Point `json:"points"`
	Display Display `json:"display"`
}

func ptr(v float64) *float64 {
	return &v
}
