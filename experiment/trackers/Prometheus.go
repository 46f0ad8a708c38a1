package trackers

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samuelfneumann/simsac/experiment/tracker"
)

// Prometheus exports the latest value of each tag as a gauge
type Prometheus struct {
	scalars *prometheus.GaugeVec
	steps   *prometheus.GaugeVec
	total   prometheus.Counter
}

// NewPrometheus returns a new Prometheus Tracker whose metrics are
// registered with reg
func NewPrometheus(reg prometheus.Registerer) (tracker.Tracker, error) {
	p := &Prometheus{
		scalars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "simsac",
			Name:      "scalar",
			Help:      "Latest value of a tracked scalar.",
		}, []string{"tag"}),
		steps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "simsac",
			Name:      "scalar_step",
			Help:      "Global step of the latest value of a tracked scalar.",
		}, []string{"tag"}),
		total: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simsac",
			Name:      "track_total",
			Help:      "Number of scalars tracked.",
		}),
	}

	for _, c := range []prometheus.Collector{p.scalars, p.steps, p.total} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("newPrometheus: %v", err)
		}
	}
	return p, nil
}

// Track sets the gauge of tag to value
func (p *Prometheus) Track(tag string, step int, value float64) {
	p.scalars.WithLabelValues(tag).Set(value)
	p.steps.WithLabelValues(tag).Set(float64(step))
	p.total.Inc()
}

// Save does nothing, metrics are scraped while the experiment runs
func (p *Prometheus) Save() error {
	return nil
}
