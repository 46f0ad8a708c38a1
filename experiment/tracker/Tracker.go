// Package tracker defines Trackers, which track and save scalar data
// generated during an experiment
package tracker

// Tracker keeps track of scalars produced during an experiment and
// saves them after the experiment has finished. Each scalar is tagged
// with a name and the global step at which it was produced.
type Tracker interface {
	Track(tag string, step int, value float64)
	Save() error
}
