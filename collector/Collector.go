// Package collector implements the collection of experience from
// vectorized environments with a policy.
package collector

import (
	"time"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/agent"
	"github.com/samuelfneumann/simsac/environment/vector"
	"github.com/samuelfneumann/simsac/expreplay"
	ts "github.com/samuelfneumann/simsac/timestep"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Result summarizes a single call to Collect
type Result struct {
	Episodes     int     // n/ep
	Steps        int     // n/st
	StepSpeed    float64 // v/st, steps per second
	EpisodeSpeed float64 // v/ep, episodes per second
	Reward       float64 // rew, mean return of finished episodes
	RewardStd    float64 // rew_std
	Length       float64 // len, mean length of finished episodes
}

// Scalars returns the result by name
func (r Result) Scalars() map[string]float64 {
	return map[string]float64{
		"n/ep":    float64(r.Episodes),
		"n/st":    float64(r.Steps),
		"v/st":    r.StepSpeed,
		"v/ep":    r.EpisodeSpeed,
		"rew":     r.Reward,
		"rew_std": r.RewardStd,
		"len":     r.Length,
	}
}

// Collector steps a vectorized environment with a policy and stores
// the resulting transitions in a replay buffer.
//
// Transitions of each environment are cached until its episode ends,
// then the whole episode is added to the buffer. Steps are counted
// when they are added to the buffer.
type Collector struct {
	policy agent.Policy
	envs   vector.Env
	buffer *expreplay.Buffer

	current []ts.TimeStep
	caches  [][]ts.Transition
	returns []float64
	lengths []int

	// Totals over all calls to Collect
	collectStep    int
	collectEpisode int
	collectTime    time.Duration

	logger logrus.FieldLogger
}

// New returns a new Collector. If buffer is nil, collected transitions
// are discarded. The environments are reset.
func New(policy agent.Policy, envs vector.Env,
	buffer *expreplay.Buffer) (*Collector, error) {
	c := &Collector{
		policy: policy,
		envs:   envs,
		buffer: buffer,
		logger: logrus.StandardLogger(),
	}
	if err := c.ResetEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetLogger sets the logger of the Collector
func (c *Collector) SetLogger(l logrus.FieldLogger) {
	c.logger = l
}

// Buffer returns the replay buffer of the Collector
func (c *Collector) Buffer() *expreplay.Buffer {
	return c.buffer
}

// CollectStep returns the total number of steps collected
func (c *Collector) CollectStep() int {
	return c.collectStep
}

// CollectEpisode returns the total number of episodes collected
func (c *Collector) CollectEpisode() int {
	return c.collectEpisode
}

// CollectTime returns the total time spent collecting
func (c *Collector) CollectTime() time.Duration {
	return c.collectTime
}

// ResetEnv resets all environments and clears the episode caches
func (c *Collector) ResetEnv() error {
	steps, err := c.envs.Reset(nil)
	if err != nil {
		return errors.Wrap(err, "could not reset environments")
	}

	n := c.envs.Len()
	c.current = make([]ts.TimeStep, n)
	for i, step := range steps {
		c.current[i] = own(step)
	}
	c.caches = make([][]ts.Transition, n)
	c.returns = make([]float64, n)
	c.lengths = make([]int, n)
	return nil
}

// ResetBuffer empties the replay buffer
func (c *Collector) ResetBuffer() {
	if c.buffer != nil {
		c.buffer.Reset()
	}
}

// ResetStat resets the collection totals
func (c *Collector) ResetStat() {
	c.collectStep = 0
	c.collectEpisode = 0
	c.collectTime = 0
}

// Collect collects either at least nStep steps, if nStep > 0, or
// nEpisode[i] episodes from environment i. Environments that have
// finished their episodes are no longer stepped. If render > 0, the
// environments are rendered after each step, pausing render seconds.
func (c *Collector) Collect(nStep int, nEpisode []int,
	render float64) (Result, error) {
	if (nStep > 0) == (nEpisode != nil) {
		return Result{}, errors.New("exactly one of the number of steps " +
			"and the number of episodes must be given")
	}
	if nEpisode != nil && len(nEpisode) != c.envs.Len() {
		return Result{}, errors.Errorf("need one episode count per "+
			"environment \n\twant(%v) \n\thave(%v)", c.envs.Len(),
			len(nEpisode))
	}

	start := time.Now()
	episodes := make([]int, c.envs.Len())
	var (
		steps    int
		returns  []float64
		lengths  []float64
		finished = func() bool {
			if nStep > 0 {
				return steps >= nStep
			}
			for i := range episodes {
				if episodes[i] < nEpisode[i] {
					return false
				}
			}
			return true
		}
	)

	for !finished() {
		ready := make([]int, 0, c.envs.Len())
		for id := range c.current {
			if nStep > 0 || episodes[id] < nEpisode[id] {
				ready = append(ready, id)
			}
		}

		actions, err := c.act(ready)
		if err != nil {
			return Result{}, err
		}

		next, err := c.envs.Step(actions, ready)
		if err != nil {
			return Result{}, errors.Wrap(err, "could not step environments")
		}

		if render > 0 {
			if err := c.envs.Render(ready); err != nil {
				return Result{}, errors.Wrap(err, "could not render")
			}
			time.Sleep(time.Duration(render * float64(time.Second)))
		}

		for k, id := range ready {
			step := own(next[k])
			c.caches[id] = append(c.caches[id],
				ts.NewTransition(c.current[id], actions[k], step))
			c.returns[id] += step.Reward
			c.lengths[id]++
			c.current[id] = step

			if !step.Last() {
				continue
			}

			episodes[id]++
			returns = append(returns, c.returns[id])
			lengths = append(lengths, float64(c.lengths[id]))
			c.logger.WithFields(logrus.Fields{
				"env":    id,
				"reward": c.returns[id],
				"length": c.lengths[id],
			}).Debug("episode finished")

			n, err := c.flush(id)
			if err != nil {
				return Result{}, err
			}
			steps += n

			reset, err := c.envs.Reset([]int{id})
			if err != nil {
				return Result{}, errors.Wrapf(err, "could not reset "+
					"environment %v", id)
			}
			c.current[id] = own(reset[0])
			c.returns[id] = 0
			c.lengths[id] = 0
		}
	}

	duration := time.Since(start)
	nEpisodes := len(returns)
	c.collectStep += steps
	c.collectEpisode += nEpisodes
	c.collectTime += duration

	r := Result{
		Episodes:     nEpisodes,
		Steps:        steps,
		StepSpeed:    float64(steps) / duration.Seconds(),
		EpisodeSpeed: float64(nEpisodes) / duration.Seconds(),
	}
	if nEpisodes > 0 {
		r.Reward, r.RewardStd = stat.PopMeanStdDev(returns, nil)
		r.Length = stat.Mean(lengths, nil)
	}
	return r, nil
}

// CollectEpisodes collects n episodes spread evenly over the
// environments. When n is not a multiple of the number of environments,
// the first environments collect one episode more than the rest.
func (c *Collector) CollectEpisodes(n int, render float64) (Result, error) {
	if n <= 0 {
		return Result{}, errors.Errorf("number of episodes must be "+
			"positive, have %v", n)
	}
	envs := c.envs.Len()
	nEpisode := make([]int, envs)
	for i := range nEpisode {
		nEpisode[i] = n / envs
		if i < n%envs {
			nEpisode[i]++
		}
	}
	return c.Collect(0, nEpisode, render)
}

// act returns the policy's actions for the environments ids
func (c *Collector) act(ids []int) ([]*mat.VecDense, error) {
	obsDim := c.current[ids[0]].Observation.Len()
	obs := make([]float64, 0, len(ids)*obsDim)
	for _, id := range ids {
		o := c.current[id].Observation.(*mat.VecDense)
		obs = append(obs, o.RawVector().Data...)
	}

	act, err := c.policy.Act(obs, len(ids))
	if err != nil {
		return nil, errors.Wrap(err, "could not select actions")
	}
	if len(act)%len(ids) != 0 {
		return nil, errors.Errorf("policy returned %v values for %v "+
			"observations", len(act), len(ids))
	}

	actDim := len(act) / len(ids)
	actions := make([]*mat.VecDense, len(ids))
	for k := range ids {
		actions[k] = mat.NewVecDense(actDim, act[k*actDim:(k+1)*actDim])
	}
	return actions, nil
}

// flush adds the cached episode of environment id to the buffer and
// returns its length
func (c *Collector) flush(id int) (int, error) {
	n := len(c.caches[id])
	if c.buffer != nil {
		for _, t := range c.caches[id] {
			if err := c.buffer.Add(t); err != nil {
				return 0, errors.Wrap(err, "could not add transition")
			}
		}
	}
	c.caches[id] = c.caches[id][:0]
	return n, nil
}

// Close closes the environments
func (c *Collector) Close() error {
	return c.envs.Close()
}

// own returns a copy of step whose observation is a *mat.VecDense not
// shared with the environment
func own(step ts.TimeStep) ts.TimeStep {
	step.Observation = mat.VecDenseCopyOf(step.Observation)
	return step
}
