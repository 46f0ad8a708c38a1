// Package expreplay implements experience replay buffers.
package expreplay

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/simsac/timestep"
	"gonum.org/v1/gonum/stat"
)

// rewNormSamples is the number of rewards, counted from the start of
// the storage, whose statistics normalize rewards in NStepReturn
const rewNormSamples = 1000

// Config implements a specific configuration of a Buffer
type Config struct {
	MaxReplayCapacity int
	MinReplayCapacity int
}

// Create creates and returns the Buffer with the specified Config.
func (c Config) Create(obsSize, actionSize int, seed uint64) (*Buffer,
	error) {
	return New(NewUniformSelector(seed), c.MinReplayCapacity,
		c.MaxReplayCapacity, obsSize, actionSize)
}

// Batch is a batch of transitions stored row-major
type Batch struct {
	Obs     []float64
	Act     []float64
	Rew     []float64
	Done    []bool
	ObsNext []float64

	Size   int
	ObsDim int
	ActDim int
}

// ObsRow returns the observation of transition i
func (b Batch) ObsRow(i int) []float64 {
	return b.Obs[i*b.ObsDim : (i+1)*b.ObsDim]
}

// ActRow returns the action of transition i
func (b Batch) ActRow(i int) []float64 {
	return b.Act[i*b.ActDim : (i+1)*b.ActDim]
}

// ObsNextRow returns the next observation of transition i
func (b Batch) ObsNextRow(i int) []float64 {
	return b.ObsNext[i*b.ObsDim : (i+1)*b.ObsDim]
}

// Buffer implements a ring buffer of transitions. Once the buffer is
// full, each new transition overwrites the oldest one.
type Buffer struct {
	obs     []float64
	act     []float64
	rew     []float64
	done    []bool
	obsNext []float64

	// index is the index at which the next transition is stored
	index int
	size  int

	sampler Selector

	minCapacity int
	maxCapacity int
	obsSize     int
	actionSize  int
}

// New creates and returns a new Buffer. The sampler determines how data
// is sampled from the buffer. The obsSize and actionSize parameters
// define the size of the observation and action vectors.
//
// Pixel observations should be flattened before adding to the buffer.
func New(sampler Selector, minCapacity, maxCapacity, obsSize,
	actionSize int) (*Buffer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < minCapacity {
		return nil, fmt.Errorf("new: maxCapacity (%v) must be >= "+
			"minCapacity (%v)", maxCapacity, minCapacity)
	}
	if obsSize <= 0 || actionSize <= 0 {
		return nil, fmt.Errorf("new: observation and action sizes must "+
			"be > 0, have (%v, %v)", obsSize, actionSize)
	}

	return &Buffer{
		obs:         make([]float64, maxCapacity*obsSize),
		act:         make([]float64, maxCapacity*actionSize),
		rew:         make([]float64, maxCapacity),
		done:        make([]bool, maxCapacity),
		obsNext:     make([]float64, maxCapacity*obsSize),
		sampler:     sampler,
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		obsSize:     obsSize,
		actionSize:  actionSize,
	}, nil
}

// Add adds a transition to the buffer
func (b *Buffer) Add(t timestep.Transition) error {
	return b.AddRaw(t.State.RawVector().Data, t.Action.RawVector().Data,
		t.Reward, t.Done, t.NextState.RawVector().Data)
}

// AddRaw adds the transition (obs, act, rew, done, obsNext) to the
// buffer
func (b *Buffer) AddRaw(obs, act []float64, rew float64, done bool,
	obsNext []float64) error {
	if len(obs) != b.obsSize || len(obsNext) != b.obsSize {
		return &ExpReplayError{
			Op: "add",
			Err: fmt.Errorf("invalid observation size \n\twant(%v) "+
				"\n\thave(%v, %v)", b.obsSize, len(obs), len(obsNext)),
		}
	}
	if len(act) != b.actionSize {
		return &ExpReplayError{
			Op: "add",
			Err: fmt.Errorf("invalid action size \n\twant(%v) \n\thave(%v)",
				b.actionSize, len(act)),
		}
	}

	i := b.index
	copy(b.obs[i*b.obsSize:(i+1)*b.obsSize], obs)
	copy(b.act[i*b.actionSize:(i+1)*b.actionSize], act)
	copy(b.obsNext[i*b.obsSize:(i+1)*b.obsSize], obsNext)
	b.rew[i] = rew
	b.done[i] = done

	b.index = (b.index + 1) % b.maxCapacity
	if b.size < b.maxCapacity {
		b.size++
	}
	return nil
}

// Len returns the current number of transitions in the buffer
func (b *Buffer) Len() int {
	return b.size
}

// MinCapacity returns the number of samples required to be in the
// buffer before the buffer can be sampled
func (b *Buffer) MinCapacity() int {
	return b.minCapacity
}

// ObsSize returns the size of observations stored in the buffer
func (b *Buffer) ObsSize() int {
	return b.obsSize
}

// ActionSize returns the size of actions stored in the buffer
func (b *Buffer) ActionSize() int {
	return b.actionSize
}

// Reset removes all transitions from the buffer
func (b *Buffer) Reset() {
	b.index = 0
	b.size = 0
}

// SampleIndices returns n indices sampled from the buffer
func (b *Buffer) SampleIndices(n int) ([]int, error) {
	if b.size == 0 {
		return nil, &ExpReplayError{Op: "sample", Err: errEmptyBuffer}
	}
	if b.size < b.minCapacity {
		return nil, &ExpReplayError{Op: "sample", Err: errInsufficientSamples}
	}
	return b.sampler.choose(n, b.size), nil
}

// Batch returns the transitions stored at indices
func (b *Buffer) Batch(indices []int) Batch {
	batch := Batch{
		Obs:     make([]float64, 0, len(indices)*b.obsSize),
		Act:     make([]float64, 0, len(indices)*b.actionSize),
		Rew:     make([]float64, 0, len(indices)),
		Done:    make([]bool, 0, len(indices)),
		ObsNext: make([]float64, 0, len(indices)*b.obsSize),
		Size:    len(indices),
		ObsDim:  b.obsSize,
		ActDim:  b.actionSize,
	}

	for _, i := range indices {
		batch.Obs = append(batch.Obs, b.obs[i*b.obsSize:(i+1)*b.obsSize]...)
		batch.Act = append(batch.Act,
			b.act[i*b.actionSize:(i+1)*b.actionSize]...)
		batch.Rew = append(batch.Rew, b.rew[i])
		batch.Done = append(batch.Done, b.done[i])
		batch.ObsNext = append(batch.ObsNext,
			b.obsNext[i*b.obsSize:(i+1)*b.obsSize]...)
	}
	return batch
}

// Sample samples a batch of n transitions from the buffer and returns
// it together with the indices that were sampled
func (b *Buffer) Sample(n int) (Batch, []int, error) {
	indices, err := b.SampleIndices(n)
	if err != nil {
		return Batch{}, nil, err
	}
	return b.Batch(indices), indices, nil
}

// TargetFunc returns the bootstrapped value of the next observations
// stored at each of the given indices
type TargetFunc func(b *Buffer, indices []int) ([]float64, error)

// NStepReturn computes the n-step return targets for transitions at
// indices:
//
//	G = Σ_{k<n} γ^k r_{t+k} + γ^n Q(s_{t+n})
//
// Rewards are accumulated forward modulo the number of stored
// transitions. If a done flag is met within n steps, the return is
// truncated there and not bootstrapped. If ignoreDone is true, all
// done flags are treated as false. If rewNorm is true, rewards are
// standardized with the mean and standard deviation of the first
// (up to) 1000 stored rewards.
//
// The targetQ function is called once with the indices of the last
// transition of each n-step window.
func (b *Buffer) NStepReturn(indices []int, n int, gamma float64,
	rewNorm, ignoreDone bool, targetQ TargetFunc) ([]float64, error) {
	if b.size == 0 {
		return nil, &ExpReplayError{Op: "nStepReturn", Err: errEmptyBuffer}
	}
	if n < 1 {
		return nil, fmt.Errorf("nStepReturn: n must be >= 1, have %v", n)
	}

	mean, std := 0.0, 1.0
	if rewNorm {
		stored := b.rew[:int(math.Min(float64(b.size), rewNormSamples))]
		mean, std = stat.PopMeanStdDev(stored, nil)
		if std <= 1e-8 {
			mean, std = 0.0, 1.0
		}
	}

	terminal := make([]int, len(indices))
	for i, idx := range indices {
		terminal[i] = (idx + n - 1) % b.size
	}
	target, err := targetQ(b, terminal)
	if err != nil {
		return nil, fmt.Errorf("nStepReturn: could not compute targets: %v",
			err)
	}
	if len(target) != len(indices) {
		return nil, fmt.Errorf("nStepReturn: invalid number of targets "+
			"\n\twant(%v) \n\thave(%v)", len(indices), len(target))
	}

	returns := make([]float64, len(indices))
	for i, idx := range indices {
		steps := n
		ret := 0.0
		for k := n - 1; k >= 0; k-- {
			now := (idx + k) % b.size
			if b.done[now] && !ignoreDone {
				steps = k
				ret = 0
			}
			ret = (b.rew[now]-mean)/std + gamma*ret
		}

		bootstrap := 0.0
		if steps == n {
			bootstrap = target[i]
		}
		returns[i] = bootstrap*math.Pow(gamma, float64(steps)) + ret
	}

	return returns, nil
}
