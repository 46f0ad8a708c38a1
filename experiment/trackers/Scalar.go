// Package trackers implements Trackers that store, log, and export the
// scalars of an experiment
package trackers

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/simsac/experiment/tracker"
)

// Point is a scalar tracked at a global step
type Point struct {
	Step  int
	Value float64
}

// Scalar tracks scalars in memory and saves them with encoding/gob to
// a single file, as a map from tag to the points tracked under that
// tag in the order they were tracked.
type Scalar struct {
	scalars  map[string][]Point
	filename string
}

// NewScalar returns a new Scalar Tracker that saves its data to
// filename
func NewScalar(filename string) tracker.Tracker {
	return &Scalar{
		scalars:  make(map[string][]Point),
		filename: filename,
	}
}

// Track tracks value under tag at step
func (s *Scalar) Track(tag string, step int, value float64) {
	s.scalars[tag] = append(s.scalars[tag], Point{step, value})
}

// Save saves the data tracked to disk
func (s *Scalar) Save() (err error) {
	file, err := os.Create(s.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("save: could not close save file: %v", closeErr)
		}
	}()

	enc := gob.NewEncoder(file)
	if err := enc.Encode(s.scalars); err != nil {
		return fmt.Errorf("save: could not encode scalars: %v", err)
	}
	return nil
}

// LoadScalars loads and returns the data saved by a Scalar Tracker
func LoadScalars(filename string) (map[string][]Point, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadScalars: could not open data file: %v",
			err)
	}
	defer file.Close()

	var data map[string][]Point
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loadScalars: could not decode data: %v", err)
	}
	return data, nil
}
