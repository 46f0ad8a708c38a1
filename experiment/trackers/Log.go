package trackers

import (
	"github.com/samuelfneumann/simsac/experiment/tracker"
	"github.com/sirupsen/logrus"
)

// Log logs each tracked scalar at the debug level
type Log struct {
	logger logrus.FieldLogger
}

// NewLog returns a new Log Tracker. If logger is nil, the standard
// logger is used.
func NewLog(logger logrus.FieldLogger) tracker.Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Log{logger}
}

// Track logs value under tag at step
func (l *Log) Track(tag string, step int, value float64) {
	l.logger.WithFields(logrus.Fields{
		"tag":   tag,
		"step":  step,
		"value": value,
	}).Debug("scalar")
}

// Save does nothing, Log does not store data
func (l *Log) Save() error {
	return nil
}
