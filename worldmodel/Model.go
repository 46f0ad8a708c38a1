// Package worldmodel implements learned models of environment dynamics.
// A world model predicts the next observation and reward of a
// transition from its observation and action, so that simulated
// transitions can augment policy training.
package worldmodel

import (
	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/environment"
	"github.com/samuelfneumann/simsac/expreplay"
	"github.com/samuelfneumann/simsac/initwfn"
	"github.com/samuelfneumann/simsac/solver"
	"github.com/sirupsen/logrus"
)

// Names of the available world models
const (
	ODENet   = "ODENet"
	ODEGBM   = "ODEGBM"
	PriorGBM = "PriorGBM"
	NODAE    = "NODAE"
)

// Names returns the names of all available world models
func Names() []string {
	return []string{ODEGBM, PriorGBM, NODAE, ODENet}
}

// Model is a learned world model
type Model interface {
	// Train performs a single training step on a batch of real
	// transitions of Config.TrainBatch rows. The losses of the step are
	// returned by name.
	Train(batch expreplay.Batch) (map[string]float64, error)

	// Predict returns the predicted next observations and rewards for
	// Config.PredictBatch observation-action pairs, stored row-major.
	Predict(obs, act []float64) ([]float64, []float64, error)

	// Name returns the name of the model
	Name() string

	Close() error
}

// Config configures a world model
type Config struct {
	ObsDim int
	ActDim int

	LatentDim int // size of the NODAE latent state
	HiddenDim int // units per hidden layer

	LR   float64 // learning rate of the base model
	ILLR float64 // learning rate of boosted residual stages

	TrainBatch   int
	PredictBatch int

	LossWeightTrans float64
	LossWeightAE    float64
	LossWeightRew   float64

	// Standard deviations of Gaussian noise added to training targets
	NoiseObs float64
	NoiseRew float64

	BoostStages int

	// WhiteBox uses the true dynamics of the environment as the prior
	// of PriorGBM. Simulator must be set if WhiteBox is true.
	WhiteBox  bool
	Simulator environment.Simulator

	Init   *initwfn.InitWFn
	Solver solver.Type
	Seed   uint64

	Logger logrus.FieldLogger
}

// Validate returns an error describing an invalid Config
func (c Config) Validate() error {
	if c.ObsDim <= 0 || c.ActDim <= 0 {
		return errors.Errorf("observation and action dimensions must be "+
			"positive, have (%v, %v)", c.ObsDim, c.ActDim)
	}
	if c.LatentDim <= 0 || c.HiddenDim <= 0 {
		return errors.Errorf("latent and hidden dimensions must be "+
			"positive, have (%v, %v)", c.LatentDim, c.HiddenDim)
	}
	if c.TrainBatch <= 0 || c.PredictBatch <= 0 {
		return errors.Errorf("batch sizes must be positive, have "+
			"(%v, %v)", c.TrainBatch, c.PredictBatch)
	}
	if c.LR <= 0 || c.ILLR <= 0 {
		return errors.Errorf("learning rates must be positive, have "+
			"(%v, %v)", c.LR, c.ILLR)
	}
	if c.NoiseObs < 0 || c.NoiseRew < 0 {
		return errors.New("noise must be non-negative")
	}
	if c.Init == nil {
		return errors.New("no weight initializer")
	}
	return nil
}

func (c Config) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}

// New returns the world model called name
func New(name string, c Config) (Model, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid world model config")
	}
	if c.Solver == "" {
		c.Solver = solver.Adam
	}
	if c.WhiteBox && name != PriorGBM {
		c.logger().WithField("model", name).Warn("white-box dynamics are " +
			"only used by PriorGBM, ignoring")
	}

	var (
		m   Model
		err error
	)
	switch name {
	case ODENet:
		m, err = newODENet(c)
	case NODAE:
		m, err = newNODAE(c)
	case PriorGBM:
		m, err = newPriorGBM(c)
	case ODEGBM:
		m, err = newODEGBM(c)
	default:
		return nil, errors.Errorf("no such world model %v", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not create %v", name)
	}
	return m, nil
}
