// Package envconfig creates the environments that can be trained on by
// name, with default physical parameters and tasks.
package envconfig

import (
	"fmt"
	"sync"

	"github.com/samuelfneumann/simsac/environment"
	"github.com/samuelfneumann/simsac/environment/box2d/carracing"
	"github.com/samuelfneumann/simsac/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/simsac/environment/vector"
)

// Tasks implemented natively in Go. Any other task name is created
// through the registered Backend.
const (
	CarRacing = "CarRacing-v0"
	Pendulum  = "Pendulum-v0"
)

// Backend creates environments for tasks that are not implemented
// natively, such as the OpenAI Gym suite
type Backend func(task string, discount float64,
	seed uint64) (environment.Environment, error)

var (
	backendMu sync.RWMutex
	backend   Backend
)

// RegisterBackend sets the Backend used for tasks not implemented
// natively and for Options.Gym. Package gym registers itself when
// imported, so that binaries not importing it need no Python.
func RegisterBackend(b Backend) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backend = b
}

// makeBackend creates task through the registered Backend
func makeBackend(task string, seed uint64, opts Options) (
	environment.Environment, error) {
	backendMu.RLock()
	b := backend
	backendMu.RUnlock()

	if b == nil {
		return nil, fmt.Errorf("no backend registered for task %v, build "+
			"with -tags gym to enable OpenAI Gym", task)
	}
	return b(task, opts.Discount, seed)
}

// Options configures the environments created by Make
type Options struct {
	Discount float64

	// Gym forces the GoGym backend even for natively implemented tasks
	Gym bool

	// RenderDir is the directory rendered frames are saved to, if the
	// environment renders to files
	RenderDir string
}

// Make creates the environment called task, seeded with seed
func Make(task string, seed uint64, opts Options) (environment.Environment,
	error) {
	if opts.Gym {
		env, err := makeBackend(task, seed, opts)
		if err != nil {
			return nil, fmt.Errorf("make: %v", err)
		}
		return env, nil
	}

	switch task {
	case CarRacing:
		env, _, err := carracing.NewDefault(opts.Discount, seed)
		if err != nil {
			return nil, fmt.Errorf("make: %v", err)
		}
		if opts.RenderDir != "" {
			env.SetRenderDir(opts.RenderDir)
		}
		return env, nil

	case Pendulum:
		task := pendulum.NewDefaultSwingUp(seed)
		env, _, err := pendulum.New(task, opts.Discount)
		if err != nil {
			return nil, fmt.Errorf("make: %v", err)
		}
		return env, nil

	default:
		env, err := makeBackend(task, seed, opts)
		if err != nil {
			return nil, fmt.Errorf("make: no such task %v: %v", task, err)
		}
		return env, nil
	}
}

// RewardThreshold returns the test reward at which the task is
// considered solved
func RewardThreshold(task string) (float64, bool) {
	switch task {
	case CarRacing:
		return carracing.RewardThreshold, true
	case Pendulum:
		return pendulum.RewardThreshold, true
	}
	return 0, false
}

// Factories returns n factories for task. Factory i creates an
// environment seeded with seed+i.
func Factories(task string, n int, seed uint64,
	opts Options) []vector.Factory {
	factories := make([]vector.Factory, n)
	for i := range factories {
		envSeed := seed + uint64(i)
		factories[i] = func() (environment.Environment, error) {
			return Make(task, envSeed, opts)
		}
	}
	return factories
}
