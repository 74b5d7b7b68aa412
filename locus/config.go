package locus

import (
	"math"
	"time"
)

// Config holds all configuration options for a replay
type Config struct {
	Endpoint     string        // base URL of the positions service
	Path         string        // positions path, e.g. /positions/
	Bearer       string        // default bearer token
	Interval     time.Duration // delay between reveal steps
	DefaultBound float64       // axis half-width before any data is fetched
	Width        int           // canvas width in pixels
	Height       int           // canvas height in pixels
	Margin       int           // canvas margin in pixels
	Ticks        int           // suggested tick count per axis
	RawTimes     bool          // send st/et as local strings instead of ISO 8601 instants
	Timeout      time.Duration // HTTP timeout for the fetch
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Path:         DefaultPath,
		Interval:     100 * time.Millisecond,
		DefaultBound: 0.1,
		Width:        700,
		Height:       700,
		Margin:       10,
		Ticks:        10,
		Timeout:      30 * time.Second,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.DefaultBound <= 0 || math.IsInf(c.DefaultBound, 0) || math.IsNaN(c.DefaultBound) {
		return ErrInvalidDomain
	}
	if c.Width <= 2*c.Margin || c.Height <= 2*c.Margin || c.Margin < 0 {
		return ErrInvalidCanvas
	}
	if c.Ticks <= 0 {
		return ErrInvalidTicks
	}
	return nil
}
