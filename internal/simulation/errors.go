package simulation

import "errors"

var (
	// ErrNoZones is returned when a run is requested without zone ids.
	ErrNoZones = errors.New("no zones requested")

	// ErrInvalidZone is returned for a null (zero) or unknown zone id.
	ErrInvalidZone = errors.New("invalid zone")

	// ErrMalformedDuration is returned when a scheduled task carries only one of
	// its start and end times.
	ErrMalformedDuration = errors.New("malformed task duration")

	// ErrNoCompletions is returned when no task in any zone finished.
	ErrNoCompletions = errors.New("no task completed")

	// ErrInvalidRuns is returned for a Monte Carlo request with fewer than one run.
	ErrInvalidRuns = errors.New("monte carlo runs must be positive")
)
