package trackers

import (
	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/experiment/tracker"
)

// Multi passes all tracked scalars to a number of Trackers
type Multi []tracker.Tracker

// NewMulti returns a Tracker that tracks with each of ts
func NewMulti(ts ...tracker.Tracker) tracker.Tracker {
	return Multi(ts)
}

// Track tracks value with each Tracker
func (m Multi) Track(tag string, step int, value float64) {
	for _, t := range m {
		t.Track(tag, step, value)
	}
}

// Save saves each Tracker, returning the first error
func (m Multi) Save() error {
	var firstErr error
	for i, t := range m {
		if err := t.Save(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "could not save tracker %v", i)
		}
	}
	return firstErr
}
