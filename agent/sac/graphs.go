package sac

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/network"
	"github.com/samuelfneumann/simsac/solver"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// logStdName is the name of the learnable log standard deviation node
const logStdName = "logStd"

// halfLog2Pi is 0.5 log(2π), the normalizer of a standard normal log
// density
var halfLog2Pi = 0.5 * math.Log(2*math.Pi)

// criticGraph trains a single critic by regression on bootstrapped
// targets:
//
//	L = mean((Q(s, a) - y)²)
type criticGraph struct {
	net     *network.MLP
	state   *G.Node
	action  *G.Node
	target  *G.Node
	loss    G.Value
	vm      G.VM
	solver  *solver.Solver
	batch   int
	obsDim  int
	actDims int
}

func newCriticGraph(name string, c Config, s *solver.Solver) (*criticGraph,
	error) {
	g := G.NewGraph()
	state := G.NewMatrix(g, tensor.Float64, G.WithShape(c.BatchSize, c.ObsDim),
		G.WithName("state"), G.WithInit(G.Zeroes()))
	action := G.NewMatrix(g, tensor.Float64,
		G.WithShape(c.BatchSize, c.ActDim), G.WithName("action"),
		G.WithInit(G.Zeroes()))
	target := G.NewVector(g, tensor.Float64, G.WithShape(c.BatchSize),
		G.WithName("target"), G.WithInit(G.Zeroes()))

	net, err := network.NewMLPFromInput(name, []*G.Node{state, action}, 1,
		c.Hidden, c.Init.InitWFn(), network.Repeat(network.ReLU,
			len(c.Hidden)))
	if err != nil {
		return nil, errors.Wrap(err, "could not create critic")
	}

	q := G.Must(G.Ravel(net.Prediction()))
	loss := G.Must(G.Mean(G.Must(G.Square(G.Must(G.Sub(q, target))))))

	cg := &criticGraph{
		net:     net,
		state:   state,
		action:  action,
		target:  target,
		solver:  s,
		batch:   c.BatchSize,
		obsDim:  c.ObsDim,
		actDims: c.ActDim,
	}
	G.Read(loss, &cg.loss)

	if _, err := G.Grad(loss, net.Learnables()...); err != nil {
		return nil, errors.Wrap(err, "could not compute critic gradient")
	}
	cg.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	return cg, nil
}

// step performs one gradient step and returns the loss
func (c *criticGraph) step(obs, act, target []float64) (float64, error) {
	if err := letMatrix(c.state, obs, c.batch, c.obsDim); err != nil {
		return 0, err
	}
	if err := letMatrix(c.action, act, c.batch, c.actDims); err != nil {
		return 0, err
	}
	if err := G.Let(c.target, tensor.New(tensor.WithBacking(target),
		tensor.WithShape(c.batch))); err != nil {
		return 0, err
	}

	if err := c.vm.RunAll(); err != nil {
		return 0, errors.Wrap(err, "could not run critic")
	}
	defer c.vm.Reset()

	if err := c.solver.Step(c.net.Model()); err != nil {
		return 0, errors.Wrap(err, "could not step critic solver")
	}
	return c.loss.Data().(float64), nil
}

// actorGraph trains the actor through the reparameterization trick:
//
//	u = μ(s) + σ ε,  a = scale tanh(u) + bias
//	L = mean(α log π(a|s) - min(Q1(s, a), Q2(s, a)))
//
// The critics in the graph are copies of the trained critics, their
// weights are set before each step and are not adapted.
type actorGraph struct {
	net     *network.MLP
	logStd  *G.Node
	critics [2]*network.MLP

	state     *G.Node
	epsilon   *G.Node
	logpConst *G.Node // Σ -ε²/2 - A log(2π)/2, which has no gradient

	loss   G.Value
	vm     G.VM
	solver *solver.Solver
	model  []G.ValueGrad

	batch  int
	obsDim int
	actDim int
}

func newActorGraph(c Config, critics [2]*network.MLP,
	s *solver.Solver) (*actorGraph, error) {
	g := G.NewGraph()
	state := G.NewMatrix(g, tensor.Float64, G.WithShape(c.BatchSize, c.ObsDim),
		G.WithName("state"), G.WithInit(G.Zeroes()))
	epsilon := G.NewMatrix(g, tensor.Float64,
		G.WithShape(c.BatchSize, c.ActDim), G.WithName("epsilon"),
		G.WithInit(G.Zeroes()))
	logpConst := G.NewVector(g, tensor.Float64, G.WithShape(c.BatchSize),
		G.WithName("logpConst"), G.WithInit(G.Zeroes()))
	logStd := G.NewMatrix(g, tensor.Float64, G.WithShape(1, c.ActDim),
		G.WithName(logStdName), G.WithInit(G.Zeroes()))

	net, err := network.NewMLPFromInput("actor", []*G.Node{state}, c.ActDim,
		c.Hidden, c.Init.InitWFn(), network.Repeat(network.ReLU,
			len(c.Hidden)))
	if err != nil {
		return nil, errors.Wrap(err, "could not create actor")
	}

	scaleVal, biasVal := c.scale()
	scale := G.NewConstant(scaleVal)
	bias := G.NewConstant(biasVal)

	// Reparameterized sample
	std := G.Must(G.Exp(logStd))
	noise := G.Must(G.BroadcastHadamardProd(epsilon, std, nil, []byte{0}))
	u := G.Must(G.Add(net.Prediction(), noise))
	y := G.Must(G.Tanh(u))
	action := G.Must(G.Add(G.Must(G.HadamardProd(scale, y)), bias))

	// Log density with the tanh correction
	oneMinusSq := G.Must(G.Sub(G.NewConstant(1.0), G.Must(G.Square(y))))
	jacobian := G.Must(G.Add(G.Must(G.HadamardProd(scale, oneMinusSq)),
		G.NewConstant(1e-6)))
	logJacobian := G.Must(G.Sum(G.Must(G.Log(jacobian)), 1))
	logp := G.Must(G.Sub(logpConst, G.Must(G.Sum(logStd))))
	logp = G.Must(G.Sub(logp, logJacobian))

	// Clipped double Q
	var copies [2]*network.MLP
	var qs [2]*G.Node
	for i, critic := range critics {
		copies[i], err = critic.CloneTo(g, state, action)
		if err != nil {
			return nil, errors.Wrapf(err, "could not copy critic %v", i)
		}
		qs[i] = G.Must(G.Ravel(copies[i].Prediction()))
	}
	half := G.NewConstant(0.5)
	mean := G.Must(G.HadamardProd(half, G.Must(G.Add(qs[0], qs[1]))))
	spread := G.Must(G.HadamardProd(half,
		G.Must(G.Abs(G.Must(G.Sub(qs[0], qs[1]))))))
	minQ := G.Must(G.Sub(mean, spread))

	alpha := G.NewConstant(c.Alpha)
	loss := G.Must(G.Mean(G.Must(G.Sub(G.Must(G.HadamardProd(alpha, logp)),
		minQ))))

	ag := &actorGraph{
		net:       net,
		logStd:    logStd,
		critics:   copies,
		state:     state,
		epsilon:   epsilon,
		logpConst: logpConst,
		solver:    s,
		batch:     c.BatchSize,
		obsDim:    c.ObsDim,
		actDim:    c.ActDim,
	}
	G.Read(loss, &ag.loss)

	learnables := append(G.Nodes{}, net.Learnables()...)
	learnables = append(learnables, logStd)
	if _, err := G.Grad(loss, learnables...); err != nil {
		return nil, errors.Wrap(err, "could not compute actor gradient")
	}
	ag.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))

	ag.model = append([]G.ValueGrad{}, net.Model()...)
	ag.model = append(ag.model, logStd)

	return ag, nil
}

// step performs one gradient step with the critics set to critics and
// returns the loss
func (a *actorGraph) step(obs, eps []float64,
	critics [2]*network.MLP) (float64, error) {
	for i := range critics {
		if err := a.critics[i].Set(critics[i]); err != nil {
			return 0, errors.Wrapf(err, "could not set critic %v", i)
		}
	}

	logpConst := make([]float64, a.batch)
	for i := range logpConst {
		for j := 0; j < a.actDim; j++ {
			e := eps[i*a.actDim+j]
			logpConst[i] -= 0.5*e*e + halfLog2Pi
		}
	}

	if err := letMatrix(a.state, obs, a.batch, a.obsDim); err != nil {
		return 0, err
	}
	if err := letMatrix(a.epsilon, eps, a.batch, a.actDim); err != nil {
		return 0, err
	}
	if err := G.Let(a.logpConst, tensor.New(tensor.WithBacking(logpConst),
		tensor.WithShape(a.batch))); err != nil {
		return 0, err
	}

	if err := a.vm.RunAll(); err != nil {
		return 0, errors.Wrap(err, "could not run actor")
	}
	defer a.vm.Reset()

	if err := a.solver.Step(a.model); err != nil {
		return 0, errors.Wrap(err, "could not step actor solver")
	}
	return a.loss.Data().(float64), nil
}

// letMatrix sets the value of the (rows, cols) input node n
func letMatrix(n *G.Node, data []float64, rows, cols int) error {
	if len(data) != rows*cols {
		return fmt.Errorf("letMatrix: invalid size for %v \n\twant(%v) "+
			"\n\thave(%v)", n.Name(), rows*cols, len(data))
	}
	return G.Let(n, tensor.New(tensor.WithBacking(data),
		tensor.WithShape(rows, cols)))
}
