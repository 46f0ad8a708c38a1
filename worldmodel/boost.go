package worldmodel

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/network"
	"github.com/samuelfneumann/simsac/solver"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// shrinkage scales the contribution of each boosted stage
const shrinkage = 0.5

// stage is a single boosted stage, an MLP regressing the residual of
// the model it corrects
type stage struct {
	net    *network.MLP
	target *G.Node
	loss   G.Value
	vm     G.VM
	solver *solver.Solver
	pred   *network.Predictor
}

func newStage(name string, c Config, features, outputs int) (*stage,
	error) {
	sizes, acts := hidden(c, 1)
	g := G.NewGraph()
	net, err := network.NewMLP(name, features, c.TrainBatch, outputs, g,
		sizes, c.Init.InitWFn(), acts)
	if err != nil {
		return nil, fmt.Errorf("newStage: %v", err)
	}

	target := G.NewMatrix(g, tensor.Float64,
		G.WithShape(c.TrainBatch, outputs), G.WithName(name+"Target"),
		G.WithInit(G.Zeroes()))
	loss, err := mse(net.Prediction(), target, 1)
	if err != nil {
		return nil, fmt.Errorf("newStage: %v", err)
	}

	s, err := solver.New(c.Solver, c.ILLR, c.TrainBatch)
	if err != nil {
		return nil, fmt.Errorf("newStage: %v", err)
	}

	st := &stage{
		net:    net,
		target: target,
		solver: s,
		pred:   network.NewPredictor(net),
	}
	G.Read(loss, &st.loss)

	if _, err := G.Grad(loss, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newStage: could not compute gradient: %v",
			err)
	}
	st.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))
	return st, nil
}

// step trains the stage on a batch and returns its predictions before
// the update together with the loss
func (s *stage) step(input, target []float64) ([]float64, float64,
	error) {
	if err := s.net.SetInput(input); err != nil {
		return nil, 0, fmt.Errorf("step: %v", err)
	}
	if err := let(s.target, target, s.target.Shape()...); err != nil {
		return nil, 0, fmt.Errorf("step: %v", err)
	}

	if err := s.vm.RunAll(); err != nil {
		return nil, 0, fmt.Errorf("step: %v", err)
	}
	defer s.vm.Reset()

	pred := copyValue(s.net.Output())
	loss := s.loss.Data().(float64)
	if err := s.solver.Step(s.net.Model()); err != nil {
		return nil, 0, fmt.Errorf("step: %v", err)
	}
	s.pred.Sync()
	return pred, loss, nil
}

// booster corrects a base model by a sum of stages fit stagewise: stage
// k regresses what the base model and stages before k leave unexplained.
type booster struct {
	stages  []*stage
	inputs  int
	outputs int
}

// newBooster returns a booster of c.BoostStages stages on inputs of
// [obs, act] that predict corrections to [obs', r]
func newBooster(c Config) (*booster, error) {
	b := &booster{
		inputs:  c.ObsDim + c.ActDim,
		outputs: c.ObsDim + 1,
	}
	for i := 0; i < c.BoostStages; i++ {
		s, err := newStage(fmt.Sprintf("stage%d", i), c, b.inputs, b.outputs)
		if err != nil {
			return nil, errors.Wrapf(err, "could not create stage %v", i)
		}
		b.stages = append(b.stages, s)
	}
	return b, nil
}

// train performs one step on each stage. The residual is modified in
// place, the returned losses are indexed by stage.
func (b *booster) train(input, residual []float64) ([]float64, error) {
	losses := make([]float64, len(b.stages))
	for i, s := range b.stages {
		pred, loss, err := s.step(input, residual)
		if err != nil {
			return nil, errors.Wrapf(err, "could not train stage %v", i)
		}
		losses[i] = loss

		floats.AddScaled(residual, -shrinkage, pred)
	}
	return losses, nil
}

// predict returns the correction of all stages for batch inputs
func (b *booster) predict(input []float64, batch int) ([]float64, error) {
	out := make([]float64, batch*b.outputs)
	for i, s := range b.stages {
		pred, err := s.pred.Predict(input, batch)
		if err != nil {
			return nil, errors.Wrapf(err, "could not predict with stage %v",
				i)
		}
		floats.AddScaled(out, shrinkage, pred)
	}
	return out, nil
}

func (b *booster) close() error {
	for _, s := range b.stages {
		if err := s.vm.Close(); err != nil {
			return err
		}
		if err := s.pred.Close(); err != nil {
			return err
		}
	}
	return nil
}

// splitTargets splits rows [obs', r] into observations and rewards
func splitTargets(targets []float64, obsDim int) ([]float64, []float64) {
	n := len(targets) / (obsDim + 1)
	obsNext := make([]float64, 0, n*obsDim)
	rew := make([]float64, n)
	for i := 0; i < n; i++ {
		row := targets[i*(obsDim+1) : (i+1)*(obsDim+1)]
		obsNext = append(obsNext, row[:obsDim]...)
		rew[i] = row[obsDim]
	}
	return obsNext, rew
}
