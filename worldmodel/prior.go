package worldmodel

import (
	"fmt"

	"github.com/samuelfneumann/simsac/environment"
	"gonum.org/v1/gonum/mat"
)

// ridgeLambda is the L2 penalty of the ridge prior
const ridgeLambda = 1e-3

// prior is a model of the dynamics that is not trained by gradient
// descent. Targets and predictions are rows [obs', r].
type prior interface {
	fit(obs, act, targets []float64, n int) error
	predict(obs, act []float64, n int) ([]float64, error)
}

// ridgePrior is a linear model [obs', r] = [obs, act, 1] W fit by ridge
// regression on all data it has seen. The sufficient statistics XᵀX
// and XᵀY are accumulated so that each fit solves for W in
//
//	(XᵀX + λI) W = XᵀY
type ridgePrior struct {
	obsDim, actDim int

	xtx *mat.SymDense
	xty *mat.Dense
	w   *mat.Dense
}

func newRidgePrior(obsDim, actDim int) *ridgePrior {
	d := obsDim + actDim + 1
	return &ridgePrior{
		obsDim: obsDim,
		actDim: actDim,
		xtx:    mat.NewSymDense(d, nil),
		xty:    mat.NewDense(d, obsDim+1, nil),
		w:      mat.NewDense(d, obsDim+1, nil),
	}
}

// design returns the design matrix with rows [obs, act, 1]
func (r *ridgePrior) design(obs, act []float64, n int) (*mat.Dense, error) {
	if len(obs) != n*r.obsDim || len(act) != n*r.actDim {
		return nil, fmt.Errorf("design: invalid input sizes (%v, %v) for "+
			"%v rows", len(obs), len(act), n)
	}

	d := r.obsDim + r.actDim + 1
	x := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		copy(row, obs[i*r.obsDim:(i+1)*r.obsDim])
		copy(row[r.obsDim:], act[i*r.actDim:(i+1)*r.actDim])
		row[d-1] = 1
	}
	return x, nil
}

func (r *ridgePrior) fit(obs, act, targets []float64, n int) error {
	x, err := r.design(obs, act, n)
	if err != nil {
		return fmt.Errorf("fit: %v", err)
	}
	y := mat.NewDense(n, r.obsDim+1, targets)

	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	r.xtx.AddSym(r.xtx, &xtx)

	var xty mat.Dense
	xty.Mul(x.T(), y)
	r.xty.Add(r.xty, &xty)

	d, _ := r.xtx.Dims()
	a := mat.NewSymDense(d, nil)
	a.CopySym(r.xtx)
	for i := 0; i < d; i++ {
		a.SetSym(i, i, a.At(i, i)+ridgeLambda)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return fmt.Errorf("fit: normal equations are not positive definite")
	}
	if err := chol.SolveTo(r.w, r.xty); err != nil {
		return fmt.Errorf("fit: %v", err)
	}
	return nil
}

func (r *ridgePrior) predict(obs, act []float64, n int) ([]float64, error) {
	x, err := r.design(obs, act, n)
	if err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}

	y := mat.NewDense(n, r.obsDim+1, nil)
	y.Mul(x, r.w)
	return y.RawMatrix().Data, nil
}

// whiteBoxPrior predicts with the true dynamics of an environment
type whiteBoxPrior struct {
	sim            environment.Simulator
	obsDim, actDim int
}

func (w *whiteBoxPrior) fit([]float64, []float64, []float64, int) error {
	return nil
}

func (w *whiteBoxPrior) predict(obs, act []float64, n int) ([]float64,
	error) {
	if len(obs) != n*w.obsDim || len(act) != n*w.actDim {
		return nil, fmt.Errorf("predict: invalid input sizes (%v, %v) for "+
			"%v rows", len(obs), len(act), n)
	}

	out := make([]float64, 0, n*(w.obsDim+1))
	for i := 0; i < n; i++ {
		next, rew := w.sim.Simulate(obs[i*w.obsDim:(i+1)*w.obsDim],
			act[i*w.actDim:(i+1)*w.actDim])
		out = append(out, next...)
		out = append(out, rew)
	}
	return out, nil
}
