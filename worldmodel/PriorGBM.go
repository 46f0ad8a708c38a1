package worldmodel

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/expreplay"
	"github.com/samuelfneumann/simsac/utils/floatutils"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// priorGBM corrects a prior model of the dynamics with boosted
// residual stages. The prior is either the true dynamics of the
// environment or a ridge regression fit to all training data.
type priorGBM struct {
	config Config
	prior  prior
	boost  *booster
	noise  *targetNoise
	logger logrus.FieldLogger
}

func newPriorGBM(c Config) (Model, error) {
	var p prior
	if c.WhiteBox {
		if c.Simulator == nil {
			return nil, errors.New("white-box dynamics requested but the " +
				"environment cannot simulate transitions")
		}
		p = &whiteBoxPrior{sim: c.Simulator, obsDim: c.ObsDim,
			actDim: c.ActDim}
	} else {
		p = newRidgePrior(c.ObsDim, c.ActDim)
	}

	boost, err := newBooster(c)
	if err != nil {
		return nil, err
	}

	return &priorGBM{
		config: c,
		prior:  p,
		boost:  boost,
		noise:  newTargetNoise(c),
		logger: c.logger().WithField("model", PriorGBM),
	}, nil
}

// Name implements the Model interface
func (p *priorGBM) Name() string {
	return PriorGBM
}

// Train implements the Model interface
func (p *priorGBM) Train(b expreplay.Batch) (map[string]float64, error) {
	if b.Size != p.config.TrainBatch {
		return nil, errors.Errorf("%v: invalid training batch size "+
			"\n\twant(%v) \n\thave(%v)", PriorGBM, p.config.TrainBatch, b.Size)
	}
	obsDim, actDim := p.config.ObsDim, p.config.ActDim

	obsNext, rew := p.noise.targets(b)
	targets := floatutils.ConcatRows(obsNext, obsDim, rew, 1, b.Size)
	if err := p.prior.fit(b.Obs, b.Act, targets, b.Size); err != nil {
		return nil, errors.Wrap(err, "could not fit prior")
	}
	pred, err := p.prior.predict(b.Obs, b.Act, b.Size)
	if err != nil {
		return nil, errors.Wrap(err, "could not predict with prior")
	}

	res := make([]float64, len(targets))
	floats.SubTo(res, targets, pred)
	losses := map[string]float64{"prior": meanSquare(res)}

	input := floatutils.ConcatRows(b.Obs, obsDim, b.Act, actDim, b.Size)
	stageLosses, err := p.boost.train(input, res)
	if err != nil {
		return nil, err
	}
	for i, loss := range stageLosses {
		losses[fmt.Sprintf("stage%d", i)] = loss
	}
	losses["total"] = meanSquare(res)

	p.logger.WithField("loss", losses["total"]).Trace("trained")
	return losses, nil
}

// Predict implements the Model interface
func (p *priorGBM) Predict(obs, act []float64) ([]float64, []float64,
	error) {
	n := len(act) / p.config.ActDim
	pred, err := p.prior.predict(obs, act, n)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not predict with prior")
	}

	input := floatutils.ConcatRows(obs, p.config.ObsDim, act,
		p.config.ActDim, n)
	correction, err := p.boost.predict(input, n)
	if err != nil {
		return nil, nil, err
	}
	floats.Add(pred, correction)

	obsNext, rew := splitTargets(pred, p.config.ObsDim)
	return obsNext, rew, nil
}

// Close implements the Model interface
func (p *priorGBM) Close() error {
	return p.boost.close()
}

// meanSquare returns the mean of the squares of x
func meanSquare(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Dot(x, x) / float64(len(x))
}
