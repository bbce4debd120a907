// Package geoloc abstracts the device position sensor. Providers
// mirror the browser geolocation contract: a one-shot fix and a
// continuous watch, both with accuracy, timeout, and cache-allowance
// options, and errors classified by the same numeric codes.
package geoloc

import (
	"context"
	"fmt"
	"time"
)

// Sensor error codes.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// SensorError is a position-acquisition failure with its sensor code.
type SensorError struct {
	Code   int
	Reason string
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("geolocation error %d: %s", e.Code, e.Reason)
}

// Code extracts the sensor code from err, or 0 when err is not a
// sensor error.
func Code(err error) int {
	if se, ok := err.(*SensorError); ok {
		return se.Code
	}
	return 0
}

// Position is a single location sample.
type Position struct {
	Latitude  float64
	Longitude float64
	At        time.Time
}

// Options tune a fix request.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// CancelFunc stops a running watch. Safe to call more than once.
type CancelFunc func()

// Provider is a position source.
type Provider interface {
	// Current obtains a one-shot fix.
	Current(ctx context.Context, opts Options) (Position, error)
	// Watch reports fixes to onPos and failures to onErr until the
	// returned CancelFunc is called. onErr may be nil.
	Watch(opts Options, onPos func(Position), onErr func(error)) CancelFunc
}
