package experiment

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// movAvgSize is the number of most recent values averaged
const movAvgSize = 100

// movAvg is a moving average over the most recent finite values added
type movAvg struct {
	values []float64
}

// add adds x and returns the current average
func (m *movAvg) add(x float64) float64 {
	if !math.IsNaN(x) && !math.IsInf(x, 0) {
		m.values = append(m.values, x)
		if len(m.values) > movAvgSize {
			m.values = m.values[1:]
		}
	}
	return m.get()
}

func (m *movAvg) get() float64 {
	if len(m.values) == 0 {
		return 0
	}
	return stat.Mean(m.values, nil)
}
