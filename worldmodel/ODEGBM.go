package worldmodel

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/expreplay"
	"github.com/samuelfneumann/simsac/utils/floatutils"
	"gonum.org/v1/gonum/floats"
)

// odeGBM is an ODENet whose predictions are corrected by boosted
// residual stages
type odeGBM struct {
	base  *netModel
	boost *booster
}

func newODEGBM(c Config) (Model, error) {
	base, err := newNetModel(ODEGBM, c, buildODENet)
	if err != nil {
		return nil, err
	}
	boost, err := newBooster(c)
	if err != nil {
		return nil, err
	}
	return &odeGBM{base: base, boost: boost}, nil
}

// Name implements the Model interface
func (o *odeGBM) Name() string {
	return ODEGBM
}

// Train implements the Model interface. The stages regress the
// residuals of the ODENet predictions made before its update.
func (o *odeGBM) Train(b expreplay.Batch) (map[string]float64, error) {
	obsDim, actDim := o.base.config.ObsDim, o.base.config.ActDim

	obsNext, rew := o.base.noise.targets(b)
	r, err := o.base.step(b, obsNext, rew)
	if err != nil {
		return nil, err
	}

	targets := floatutils.ConcatRows(obsNext, obsDim, rew, 1, b.Size)
	pred := floatutils.ConcatRows(r.obs, obsDim, r.rew, 1, b.Size)
	res := make([]float64, len(targets))
	floats.SubTo(res, targets, pred)

	input := floatutils.ConcatRows(b.Obs, obsDim, b.Act, actDim, b.Size)
	stageLosses, err := o.boost.train(input, res)
	if err != nil {
		return nil, err
	}

	losses := r.losses
	for i, loss := range stageLosses {
		losses[fmt.Sprintf("stage%d", i)] = loss
	}
	losses["boosted"] = meanSquare(res)
	return losses, nil
}

// Predict implements the Model interface
func (o *odeGBM) Predict(obs, act []float64) ([]float64, []float64,
	error) {
	obsNext, rew, err := o.base.Predict(obs, act)
	if err != nil {
		return nil, nil, err
	}

	c := o.base.config
	n := len(rew)
	input := floatutils.ConcatRows(obs, c.ObsDim, act, c.ActDim, n)
	correction, err := o.boost.predict(input, n)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not correct ODENet")
	}

	pred := floatutils.ConcatRows(obsNext, c.ObsDim, rew, 1, n)
	floats.Add(pred, correction)
	obsNext, rew = splitTargets(pred, c.ObsDim)
	return obsNext, rew, nil
}

// Close implements the Model interface
func (o *odeGBM) Close() error {
	if err := o.base.Close(); err != nil {
		return err
	}
	return o.boost.close()
}
