// Package sac implements Soft Actor-Critic with a state-independent
// Gaussian policy squashed by tanh, twin critics, and a fixed entropy
// temperature. Optionally, the agent trains a world model on the real
// transitions it learns from and, after a number of updates, mixes
// transitions simulated by the world model into its training batches.
package sac

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/expreplay"
	"github.com/samuelfneumann/simsac/network"
	"github.com/samuelfneumann/simsac/solver"
	"github.com/samuelfneumann/simsac/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// SSAC implements Soft Actor-Critic, optionally augmented by a world
// model
type SSAC struct {
	config Config

	actor     *actorGraph
	actorPred *network.Predictor

	critics      [2]*criticGraph
	targets      [2]*network.MLP
	targetsPreds [2]*network.Predictor

	modelBuffer *expreplay.Buffer
	updates     int

	normal distmv.Rander
	eval   bool
}

// New creates and returns a new SSAC agent
func New(c Config) (*SSAC, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid SAC config")
	}
	if c.Solver == "" {
		c.Solver = solver.Adam
	}

	s := &SSAC{config: c}

	criticOpt, err := solver.New(c.Solver, c.CriticLR, c.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not create critic solver")
	}
	for i := range s.critics {
		// Critics share hyperparameters but not solver state
		opt := criticOpt
		if i > 0 {
			opt = criticOpt.Clone()
		}
		s.critics[i], err = newCriticGraph(fmt.Sprintf("critic%d", i+1), c,
			opt)
		if err != nil {
			return nil, err
		}

		s.targets[i], err = s.critics[i].net.CloneWithBatch(c.BatchSize)
		if err != nil {
			return nil, errors.Wrap(err, "could not create target critic")
		}
		s.targetsPreds[i] = network.NewPredictor(s.targets[i])
	}

	opt, err := solver.New(c.Solver, c.ActorLR, c.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not create actor solver")
	}
	s.actor, err = newActorGraph(c, s.criticNets(), opt)
	if err != nil {
		return nil, err
	}
	s.actorPred = network.NewPredictor(s.actor.net)

	if c.Model != nil {
		s.modelBuffer, err = expreplay.Config{
			MinReplayCapacity: 1,
			MaxReplayCapacity: c.ModelBufferSize,
		}.Create(c.ObsDim, c.ActDim, c.Seed+1)
		if err != nil {
			return nil, errors.Wrap(err, "could not create model buffer")
		}
	}

	means := make([]float64, c.ActDim)
	stds := mat.NewDiagDense(c.ActDim, floatutils.Ones(c.ActDim))
	normal, ok := distmv.NewNormal(means, stds, rand.NewSource(c.Seed))
	if !ok {
		return nil, errors.New("could not create standard normal for " +
			"action selection")
	}
	s.normal = normal

	return s, nil
}

func (s *SSAC) criticNets() [2]*network.MLP {
	return [2]*network.MLP{s.critics[0].net, s.critics[1].net}
}

// Eval sets the policy to evaluation mode, in which actions are
// selected deterministically
func (s *SSAC) Eval() {
	s.eval = true
}

// Train sets the policy to training mode
func (s *SSAC) Train() {
	s.eval = false
}

// IsEval indicates if the policy is in evaluation mode
func (s *SSAC) IsEval() bool {
	return s.eval
}

// Updates returns the number of updates performed
func (s *SSAC) Updates() int {
	return s.updates
}

// ModelBuffer returns the buffer of simulated transitions, nil if the
// agent has no world model
func (s *SSAC) ModelBuffer() *expreplay.Buffer {
	return s.modelBuffer
}

// Act returns actions for batch observations
func (s *SSAC) Act(obs []float64, batch int) ([]float64, error) {
	act, _, err := s.sample(obs, batch, s.eval)
	return act, err
}

// sample returns actions for batch observations together with their log
// densities. If deterministic, the mean action is returned.
func (s *SSAC) sample(obs []float64, batch int,
	deterministic bool) ([]float64, []float64, error) {
	mu, err := s.actorPred.Predict(obs, batch)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not predict mean action")
	}

	actDim := s.config.ActDim
	scale, bias := s.config.scale()
	logStd := s.actor.logStd.Value().Data().([]float64)

	act := make([]float64, len(mu))
	logp := make([]float64, batch)
	eps := make([]float64, actDim)
	for i := 0; i < batch; i++ {
		if !deterministic {
			s.normal.Rand(eps)
		}
		for j := 0; j < actDim; j++ {
			k := i*actDim + j
			u := mu[k] + math.Exp(logStd[j])*eps[j]
			y := math.Tanh(u)
			act[k] = scale*y + bias
			logp[i] += -0.5*eps[j]*eps[j] - halfLog2Pi - logStd[j] -
				math.Log(scale*(1-y*y)+1e-6)
		}
	}
	return act, logp, nil
}

// target returns the soft state values of batch next observations
// under the target critics:
//
//	V(s') = min(Q1'(s', a'), Q2'(s', a')) - α log π(a'|s'),  a' ~ π(s')
func (s *SSAC) target(obsNext []float64, batch int) ([]float64, error) {
	act, logp, err := s.sample(obsNext, batch, false)
	if err != nil {
		return nil, err
	}

	input := floatutils.ConcatRows(obsNext, s.config.ObsDim, act,
		s.config.ActDim, batch)
	var qs [2][]float64
	for i, pred := range s.targetsPreds {
		if qs[i], err = pred.Predict(input, batch); err != nil {
			return nil, errors.Wrapf(err, "could not predict target %v", i)
		}
	}

	v := make([]float64, batch)
	for i := range v {
		v[i] = math.Min(qs[0][i], qs[1][i]) - s.config.Alpha*logp[i]
	}
	return v, nil
}

// nStepTarget bootstraps the n-step return of the real buffer
func (s *SSAC) nStepTarget(b *expreplay.Buffer, indices []int) ([]float64,
	error) {
	obsNext := b.Batch(indices).ObsNext
	return s.target(obsNext, len(indices))
}

// Update performs one update of the critics, the actor, and the target
// critics, in that order. If the agent has a world model, the model is
// trained first and simulated transitions are generated.
func (s *SSAC) Update(batchSize int, buffer *expreplay.Buffer) (
	map[string]float64, error) {
	if batchSize != s.config.BatchSize {
		return nil, errors.Errorf("batch size %v does not match configured "+
			"batch size %v", batchSize, s.config.BatchSize)
	}
	if buffer.ObsSize() != s.config.ObsDim ||
		buffer.ActionSize() != s.config.ActDim {
		return nil, errors.Errorf("buffer stores observations of size %v "+
			"and actions of size %v, want %v and %v", buffer.ObsSize(),
			buffer.ActionSize(), s.config.ObsDim, s.config.ActDim)
	}
	losses := make(map[string]float64)

	simulate := false
	if s.config.Model != nil {
		if err := s.trainModel(buffer, losses); err != nil {
			return nil, err
		}

		if s.updates >= s.config.MaxUpdateStep {
			if err := s.simulate(buffer); err != nil {
				return nil, err
			}
			simulate = s.modelBuffer.Len() > 0
		}
	}
	s.updates++

	simN := 0
	if simulate {
		simN = int(float64(batchSize) * s.config.ModelRatio)
	}
	realN := batchSize - simN

	obs, act, y, err := s.realBatch(buffer, realN)
	if err != nil {
		return nil, err
	}
	if simN > 0 {
		simObs, simAct, simY, err := s.simulatedBatch(simN)
		if err != nil {
			return nil, err
		}
		obs = append(obs, simObs...)
		act = append(act, simAct...)
		y = append(y, simY...)
	}

	for i, critic := range s.critics {
		loss, err := critic.step(obs, act, y)
		if err != nil {
			return nil, errors.Wrapf(err, "could not update critic %v", i+1)
		}
		losses[fmt.Sprintf("loss/critic%d", i+1)] = loss
	}

	eps := make([]float64, 0, batchSize*s.config.ActDim)
	for i := 0; i < batchSize; i++ {
		eps = append(eps, s.normal.Rand(nil)...)
	}
	loss, err := s.actor.step(obs, eps, s.criticNets())
	if err != nil {
		return nil, errors.Wrap(err, "could not update actor")
	}
	losses["loss/actor"] = loss
	s.actorPred.Sync()

	for i := range s.targets {
		if err := s.targets[i].Polyak(s.critics[i].net, s.config.Tau); err != nil {
			return nil, errors.Wrapf(err, "could not update target %v", i+1)
		}
		s.targetsPreds[i].Sync()
	}

	return losses, nil
}

// realBatch samples n transitions from the real buffer with n-step
// return targets
func (s *SSAC) realBatch(buffer *expreplay.Buffer, n int) ([]float64,
	[]float64, []float64, error) {
	indices, err := buffer.SampleIndices(n)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not sample buffer")
	}
	batch := buffer.Batch(indices)

	y, err := buffer.NStepReturn(indices, s.config.NStep, s.config.Gamma,
		s.config.RewNorm, s.config.IgnoreDone, s.nStepTarget)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not compute returns")
	}
	return batch.Obs, batch.Act, y, nil
}

// simulatedBatch samples n transitions from the model buffer with
// one-step targets
func (s *SSAC) simulatedBatch(n int) ([]float64, []float64, []float64,
	error) {
	batch, _, err := s.modelBuffer.Sample(n)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not sample model buffer")
	}

	v, err := s.target(batch.ObsNext, n)
	if err != nil {
		return nil, nil, nil, err
	}
	y := make([]float64, n)
	for i := range y {
		y[i] = batch.Rew[i]
		if !batch.Done[i] {
			y[i] += s.config.Gamma * v[i]
		}
	}
	return batch.Obs, batch.Act, y, nil
}

// trainModel trains the world model on real transitions
func (s *SSAC) trainModel(buffer *expreplay.Buffer,
	losses map[string]float64) error {
	for i := 0; i < s.config.TrainSimulatorStep; i++ {
		batch, _, err := buffer.Sample(s.config.SimulatorBatchSize)
		if err != nil {
			return errors.Wrap(err, "could not sample world model batch")
		}

		modelLosses, err := s.config.Model.Train(batch)
		if err != nil {
			return errors.Wrap(err, "could not train world model")
		}
		for name, loss := range modelLosses {
			losses["loss/model/"+name] = loss
		}
	}
	return nil
}

// simulate adds one-step transitions predicted by the world model to
// the model buffer. Start observations are drawn from the real buffer
// and actions from the current policy.
func (s *SSAC) simulate(buffer *expreplay.Buffer) error {
	n := s.config.NSimulatorStep
	start, _, err := buffer.Sample(n)
	if err != nil {
		return errors.Wrap(err, "could not sample start states")
	}

	act, _, err := s.sample(start.Obs, n, false)
	if err != nil {
		return err
	}
	obsNext, rew, err := s.config.Model.Predict(start.Obs, act)
	if err != nil {
		return errors.Wrap(err, "could not simulate transitions")
	}

	obsDim, actDim := s.config.ObsDim, s.config.ActDim
	for i := 0; i < n; i++ {
		err := s.modelBuffer.AddRaw(
			start.Obs[i*obsDim:(i+1)*obsDim],
			act[i*actDim:(i+1)*actDim],
			rew[i],
			false,
			obsNext[i*obsDim:(i+1)*obsDim],
		)
		if err != nil {
			return errors.Wrap(err, "could not store simulated transition")
		}
	}
	return nil
}

// Close releases the resources held by the agent's VMs
func (s *SSAC) Close() error {
	if err := s.actor.vm.Close(); err != nil {
		return err
	}
	if err := s.actorPred.Close(); err != nil {
		return err
	}
	for i := range s.critics {
		if err := s.critics[i].vm.Close(); err != nil {
			return err
		}
		if err := s.targetsPreds[i].Close(); err != nil {
			return err
		}
	}
	if s.config.Model != nil {
		return s.config.Model.Close()
	}
	return nil
}

// weights holds the learnable weights of an SSAC agent
type weights struct {
	Actor   [][]float64
	LogStd  []float64
	Critics [2][][]float64
	Targets [2][][]float64
	Updates int
}

// GobEncode implements the gob.GobEncoder interface. Only weights are
// encoded, a decoded agent must be constructed with the same Config.
func (s *SSAC) GobEncode() ([]byte, error) {
	w := weights{
		Actor:   s.actor.net.Weights(),
		LogStd:  append([]float64(nil), s.logStd()...),
		Updates: s.updates,
	}
	for i := range s.critics {
		w.Critics[i] = s.critics[i].net.Weights()
		w.Targets[i] = s.targets[i].Weights()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, errors.Wrap(err, "could not encode weights")
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The agent must
// have been created with New.
func (s *SSAC) GobDecode(in []byte) error {
	if s.actor == nil {
		return errors.New("cannot decode into an agent not created with New")
	}

	var w weights
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&w); err != nil {
		return errors.Wrap(err, "could not decode weights")
	}

	if err := s.actor.net.SetWeights(w.Actor); err != nil {
		return errors.Wrap(err, "could not set actor weights")
	}
	if len(w.LogStd) != s.config.ActDim {
		return errors.Errorf("invalid log std size %v", len(w.LogStd))
	}
	logStd := tensor.New(tensor.WithBacking(w.LogStd),
		tensor.WithShape(1, s.config.ActDim))
	if err := G.Let(s.actor.logStd, logStd); err != nil {
		return errors.Wrap(err, "could not set log std")
	}

	for i := range s.critics {
		if err := s.critics[i].net.SetWeights(w.Critics[i]); err != nil {
			return errors.Wrapf(err, "could not set critic %v weights", i+1)
		}
		if err := s.targets[i].SetWeights(w.Targets[i]); err != nil {
			return errors.Wrapf(err, "could not set target %v weights", i+1)
		}
		s.targetsPreds[i].Sync()
	}
	s.actorPred.Sync()
	s.updates = w.Updates

	return nil
}

// logStd returns the backing data of the log standard deviation
func (s *SSAC) logStd() []float64 {
	return s.actor.logStd.Value().Data().([]float64)
}
