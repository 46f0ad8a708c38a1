// Package experiment implements functionality for running an
// experiment: an agent learns off-policy from experience collected in
// training environments and is evaluated in test environments after
// each epoch.
package experiment

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/simsac/agent"
	"github.com/samuelfneumann/simsac/experiment/checkpointer"
	"github.com/samuelfneumann/simsac/experiment/tracker"
	"github.com/sirupsen/logrus"
)

// Config represents a configuration of an off-policy experiment
type Config struct {
	MaxEpoch       int
	StepPerEpoch   int // updates per epoch
	CollectPerStep int // steps collected per iteration
	EpisodePerTest int
	BatchSize      int

	// StopFn returns whether training should stop given a mean test
	// reward. If nil, training runs for all epochs.
	StopFn func(reward float64) bool

	// SaveFn saves the policy when the best test reward improves
	SaveFn func(agent.Policy) error

	// Checkpointer is called after each epoch
	Checkpointer checkpointer.Checkpointer

	// Tracker tracks collection results and losses, it may be nil
	Tracker tracker.Tracker

	// TestInTrain tests the policy whenever the training reward passes
	// StopFn, so that training can stop early
	TestInTrain bool

	Logger logrus.FieldLogger

	// Quiet disables the progress bar
	Quiet bool
}

// Validate returns an error describing an invalid Config
func (c Config) Validate() error {
	if c.MaxEpoch <= 0 || c.StepPerEpoch <= 0 || c.CollectPerStep <= 0 ||
		c.EpisodePerTest <= 0 || c.BatchSize <= 0 {
		return fmt.Errorf("validate: epochs, steps, episodes, and batch "+
			"size must be positive, have %+v", c)
	}
	return nil
}

// Result summarizes an experiment
type Result struct {
	TrainStep          int
	TrainEpisode       int
	TrainCollectorTime time.Duration
	ModelTime          time.Duration
	TrainSpeed         float64 // steps per second
	TestStep           int
	TestEpisode        int
	TestTime           time.Duration
	TestSpeed          float64 // steps per second
	BestReward         float64
	BestRewardStd      float64
	Duration           time.Duration
}

// Fields returns the result as log fields
func (r Result) Fields() logrus.Fields {
	seconds := func(d time.Duration) string {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	best := fmt.Sprintf("%.2f ± %.2f", r.BestReward, r.BestRewardStd)

	return logrus.Fields{
		"train_step":           r.TrainStep,
		"train_episode":        r.TrainEpisode,
		"train_time/collector": seconds(r.TrainCollectorTime),
		"train_time/model":     seconds(r.ModelTime),
		"train_speed":          fmt.Sprintf("%.2f step/s", r.TrainSpeed),
		"test_step":            r.TestStep,
		"test_episode":         r.TestEpisode,
		"test_time":            seconds(r.TestTime),
		"test_speed":           fmt.Sprintf("%.2f step/s", r.TestSpeed),
		"best_reward":          r.BestReward,
		"best_result":          best,
		"duration":             seconds(r.Duration),
	}
}
