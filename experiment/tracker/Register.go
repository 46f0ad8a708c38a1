package tracker

// prefixed is a Tracker that tags all scalars it tracks with a prefix
// before passing them to the embedded Tracker.
//
// This is useful when the same data is tracked in different phases of
// an experiment. For example, the results of collecting experience
// are tracked under "train/" and the results of evaluation under
// "test/".
type prefixed struct {
	Tracker
	prefix string
}

// Register returns a Tracker that tracks data through t with tags
// prefixed by prefix. Saving the returned Tracker saves t.
func Register(t Tracker, prefix string) Tracker {
	return &prefixed{t, prefix}
}

// Track tracks value under the prefixed tag
func (p *prefixed) Track(tag string, step int, value float64) {
	p.Tracker.Track(p.prefix+tag, step, value)
}

// TrackAll tracks all values of scalars at step
func TrackAll(t Tracker, step int, scalars map[string]float64) {
	for tag, value := range scalars {
		t.Track(tag, step, value)
	}
}
