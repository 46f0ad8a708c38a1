package worldmodel

import (
	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/expreplay"
	"github.com/samuelfneumann/simsac/solver"
	"github.com/sirupsen/logrus"
)

// netModel is a world model made only of neural networks. Training and
// prediction run on separate graphs with batch sizes TrainBatch and
// PredictBatch, the prediction graph copies the trained weights before
// it is next run.
type netModel struct {
	name    string
	config  Config
	train   *graph
	predict *graph
	stale   bool
	noise   *targetNoise
	logger  logrus.FieldLogger
}

func newNetModel(name string, c Config, build builder) (*netModel, error) {
	s, err := solver.New(c.Solver, c.LR, c.TrainBatch)
	if err != nil {
		return nil, errors.Wrap(err, "could not create solver")
	}

	train, err := newGraph(c, c.TrainBatch, build, s)
	if err != nil {
		return nil, errors.Wrap(err, "could not build training graph")
	}
	predict, err := newGraph(c, c.PredictBatch, build, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build prediction graph")
	}

	m := &netModel{
		name:    name,
		config:  c,
		train:   train,
		predict: predict,
		stale:   true,
		noise:   newTargetNoise(c),
		logger:  c.logger().WithField("model", name),
	}
	return m, nil
}

// Name implements the Model interface
func (m *netModel) Name() string {
	return m.name
}

// Train implements the Model interface
func (m *netModel) Train(b expreplay.Batch) (map[string]float64, error) {
	obsNext, rew := m.noise.targets(b)
	r, err := m.step(b, obsNext, rew)
	if err != nil {
		return nil, err
	}
	return r.losses, nil
}

// step trains the model on the observations and actions of b with the
// given targets. The predictions made on b before training are
// returned together with the losses.
func (m *netModel) step(b expreplay.Batch, obsNext, rew []float64) (result,
	error) {
	if b.Size != m.config.TrainBatch {
		return result{}, errors.Errorf("%v: invalid training batch size "+
			"\n\twant(%v) \n\thave(%v)", m.name, m.config.TrainBatch, b.Size)
	}

	r, err := m.train.run(b.Obs, b.Act, obsNext, rew)
	if err != nil {
		return result{}, errors.Wrapf(err, "%v: could not train", m.name)
	}
	m.stale = true

	m.logger.WithField("loss", r.losses["total"]).Trace("trained")
	return r, nil
}

// Predict implements the Model interface
func (m *netModel) Predict(obs, act []float64) ([]float64, []float64,
	error) {
	if m.stale {
		if err := m.predict.setFrom(m.train); err != nil {
			return nil, nil, errors.Wrapf(err, "%v: could not sync weights",
				m.name)
		}
		m.stale = false
	}

	r, err := m.predict.run(obs, act, nil, nil)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%v: could not predict", m.name)
	}
	return r.obs, r.rew, nil
}

// Close implements the Model interface
func (m *netModel) Close() error {
	if err := m.train.vm.Close(); err != nil {
		return err
	}
	return m.predict.vm.Close()
}
