package locus

import "errors"

// Common errors returned by the replay components
var (
	ErrReplayRunning   = errors.New("replay is already running")
	ErrInvalidRange    = errors.New("start and end time must both be set to valid times")
	ErrInvalidDomain   = errors.New("domain bound must be positive and finite")
	ErrInvalidInterval = errors.New("reveal interval must be positive")
	ErrInvalidCanvas   = errors.New("canvas must be larger than twice its margin")
	ErrInvalidTicks    = errors.New("tick count must be positive")
	ErrFetchStatus     = errors.New("positions endpoint returned an error status")
	ErrInvalidPath     = errors.New("positions path must be an absolute path on the endpoint")
	ErrNoTrackPoints   = errors.New("no track points or route points found")
)
