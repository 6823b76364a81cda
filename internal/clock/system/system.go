// Package system provides a real clock implementation.
package system

import "time"

// Clock reads the wall clock, always in UTC so timestamps compare cleanly
// across the progress pipeline and the audit store.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
