package experiment

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/agent"
	"github.com/samuelfneumann/simsac/collector"
	"github.com/samuelfneumann/simsac/experiment/tracker"
	"github.com/samuelfneumann/simsac/utils/progressbar"
	"github.com/sirupsen/logrus"
)

// progressWidth is the width of the progress bar in characters
const progressWidth = 30

// nopTracker discards all scalars
type nopTracker struct{}

func (nopTracker) Track(string, int, float64) {}
func (nopTracker) Save() error                { return nil }

// OffPolicy trains an agent off-policy for c.MaxEpoch epochs of
// c.StepPerEpoch updates each. Each iteration, train collects
// c.CollectPerStep steps and the agent performs one update of
// c.BatchSize transitions per c.CollectPerStep steps collected. No
// updates are performed while the replay buffer of train holds fewer
// transitions than its minimum capacity. After each epoch, the agent
// is tested on c.EpisodePerTest episodes of test.
//
// Scalars are tracked against a global step that advances by
// c.CollectPerStep with every update.
func OffPolicy(a agent.Agent, train, test *collector.Collector,
	c Config) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	if train.Buffer() == nil {
		return Result{}, errors.New("training collector has no replay buffer")
	}
	logger := c.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	t := c.Tracker
	if t == nil {
		t = nopTracker{}
	}
	trainTracker := tracker.Register(t, "train/")
	testTracker := tracker.Register(t, "test/")

	var (
		globalStep    int
		bestEpoch     = -1
		bestReward    = -1.0
		bestRewardStd float64
		losses        = make(map[string]*movAvg)
	)
	start := time.Now()
	train.ResetStat()
	test.ResetStat()

	for epoch := 1; epoch <= c.MaxEpoch; epoch++ {
		a.Train()

		var bar *progressbar.ManualProgressBar
		if !c.Quiet {
			bar = progressbar.NewManualProgressBar(
				fmt.Sprintf("Epoch #%d", epoch), progressWidth, c.StepPerEpoch)
		}

		for progress := 0; progress < c.StepPerEpoch; {
			result, err := train.Collect(c.CollectPerStep, nil, 0)
			if err != nil {
				return Result{}, errors.Wrap(err, "could not collect")
			}

			if c.TestInTrain && c.StopFn != nil && result.Episodes > 0 &&
				c.StopFn(result.Reward) {
				testResult, err := testEpisode(a, test, c.EpisodePerTest,
					testTracker, globalStep)
				if err != nil {
					return Result{}, err
				}
				if c.StopFn(testResult.Reward) {
					if c.SaveFn != nil {
						if err := c.SaveFn(a); err != nil {
							return Result{}, errors.Wrap(err, "could not save")
						}
					}
					if bar != nil {
						bar.Close()
					}
					logger.WithField("epoch", epoch).Info("stopping early " +
						"after test in train")
					return gather(start, train, test, testResult.Reward,
						testResult.RewardStd), nil
				}
				a.Train()
			}

			// Warm up until the buffer can be sampled
			if buffer := train.Buffer(); buffer.Len() < buffer.MinCapacity() {
				continue
			}

			updates := result.Steps / c.CollectPerStep
			if remaining := c.StepPerEpoch - progress; updates > remaining {
				updates = remaining
			}
			scalars := result.Scalars()
			for i := 0; i < updates; i++ {
				globalStep += c.CollectPerStep
				l, err := a.Update(c.BatchSize, train.Buffer())
				if err != nil {
					return Result{}, errors.Wrapf(err, "could not update at "+
						"step %v", globalStep)
				}

				tracker.TrackAll(trainTracker, globalStep, scalars)
				for name, loss := range l {
					if losses[name] == nil {
						losses[name] = &movAvg{}
					}
					t.Track(name, globalStep, losses[name].add(loss))
				}

				progress++
				if bar != nil {
					bar.Increment()
					bar.SetPostfix(postfix(scalars, losses))
					bar.Display()
				}
			}
		}
		if bar != nil {
			bar.Close()
		}

		result, err := testEpisode(a, test, c.EpisodePerTest, testTracker,
			globalStep)
		if err != nil {
			return Result{}, err
		}
		if bestEpoch == -1 || bestReward < result.Reward {
			bestReward, bestRewardStd = result.Reward, result.RewardStd
			bestEpoch = epoch
			if c.SaveFn != nil {
				if err := c.SaveFn(a); err != nil {
					return Result{}, errors.Wrap(err, "could not save")
				}
			}
		}
		if c.Checkpointer != nil {
			if err := c.Checkpointer.Checkpoint(epoch); err != nil {
				return Result{}, errors.Wrap(err, "could not checkpoint")
			}
		}

		logger.Infof("Epoch #%d: test_reward: %.6f ± %.6f, best_reward: "+
			"%.6f ± %.6f in #%d", epoch, result.Reward, result.RewardStd,
			bestReward, bestRewardStd, bestEpoch)

		if c.StopFn != nil && c.StopFn(bestReward) {
			break
		}
	}

	return gather(start, train, test, bestReward, bestRewardStd), nil
}

// testEpisode evaluates the policy on n episodes of test
func testEpisode(a agent.Agent, test *collector.Collector, n int,
	t tracker.Tracker, step int) (collector.Result, error) {
	if err := test.ResetEnv(); err != nil {
		return collector.Result{}, err
	}
	test.ResetBuffer()
	a.Eval()

	result, err := test.CollectEpisodes(n, 0)
	if err != nil {
		return collector.Result{}, errors.Wrap(err, "could not test")
	}
	tracker.TrackAll(t, step, result.Scalars())
	return result, nil
}

// gather summarizes an experiment that started at start
func gather(start time.Time, train, test *collector.Collector,
	bestReward, bestRewardStd float64) Result {
	duration := time.Since(start)
	r := Result{
		TrainStep:          train.CollectStep(),
		TrainEpisode:       train.CollectEpisode(),
		TrainCollectorTime: train.CollectTime(),
		ModelTime:          duration - train.CollectTime() - test.CollectTime(),
		TestStep:           test.CollectStep(),
		TestEpisode:        test.CollectEpisode(),
		TestTime:           test.CollectTime(),
		BestReward:         bestReward,
		BestRewardStd:      bestRewardStd,
		Duration:           duration,
	}
	if trainTime := duration - test.CollectTime(); trainTime > 0 {
		r.TrainSpeed = float64(r.TrainStep) / trainTime.Seconds()
	}
	if r.TestTime > 0 {
		r.TestSpeed = float64(r.TestStep) / r.TestTime.Seconds()
	}
	return r
}

// postfix formats collection results and average losses for the
// progress bar
func postfix(scalars map[string]float64, losses map[string]*movAvg) string {
	parts := make([]string, 0, len(scalars)+len(losses))
	for name, value := range scalars {
		parts = append(parts, fmt.Sprintf("%v=%.2f", name, value))
	}
	for name, avg := range losses {
		parts = append(parts, fmt.Sprintf("%v=%.3f", name, avg.get()))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
