package worldmodel

import (
	"fmt"
	"sort"

	"github.com/samuelfneumann/simsac/network"
	"github.com/samuelfneumann/simsac/solver"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// inputs holds the input nodes of a world model graph. Targets are nil
// in graphs used only for prediction.
type inputs struct {
	obs, act *G.Node

	obsNext, rew *G.Node
}

func (in inputs) training() bool {
	return in.obsNext != nil
}

// outputs holds the nodes a world model adds to a graph
type outputs struct {
	obs  *G.Node // (batch, obs) predicted next observations
	rew  *G.Node // (batch) predicted rewards
	nets []*network.MLP

	// Weighted loss terms by name, only set when training
	losses map[string]*G.Node
}

// builder adds a world model to the graph of its inputs
type builder func(c Config, in inputs) (outputs, error)

// graph is a world model built on its own computational graph with a
// fixed batch size
type graph struct {
	in     inputs
	nets   []*network.MLP
	batch  int
	obsDim int
	actDim int

	obsVal, rewVal G.Value

	lossNames []string
	lossVals  []G.Value
	totalVal  G.Value

	vm     G.VM
	solver *solver.Solver
	model  []G.ValueGrad
}

// result holds copies of the values computed by a run of a graph
type result struct {
	obs, rew []float64
	losses   map[string]float64
}

// newGraph builds a world model on a new graph. If s is not nil, the
// graph is built for training with s, otherwise only for prediction.
func newGraph(c Config, batch int, build builder,
	s *solver.Solver) (*graph, error) {
	g := G.NewGraph()
	in := inputs{
		obs: G.NewMatrix(g, tensor.Float64, G.WithShape(batch, c.ObsDim),
			G.WithName("obs"), G.WithInit(G.Zeroes())),
		act: G.NewMatrix(g, tensor.Float64, G.WithShape(batch, c.ActDim),
			G.WithName("act"), G.WithInit(G.Zeroes())),
	}
	if s != nil {
		in.obsNext = G.NewMatrix(g, tensor.Float64,
			G.WithShape(batch, c.ObsDim), G.WithName("obsNext"),
			G.WithInit(G.Zeroes()))
		in.rew = G.NewVector(g, tensor.Float64, G.WithShape(batch),
			G.WithName("rew"), G.WithInit(G.Zeroes()))
	}

	out, err := build(c, in)
	if err != nil {
		return nil, fmt.Errorf("newGraph: %v", err)
	}

	gr := &graph{
		in:     in,
		nets:   out.nets,
		batch:  batch,
		obsDim: c.ObsDim,
		actDim: c.ActDim,
		solver: s,
	}
	G.Read(out.obs, &gr.obsVal)
	G.Read(out.rew, &gr.rewVal)

	if s == nil {
		gr.vm = G.NewTapeMachine(g)
		return gr, nil
	}

	// Sum the loss terms in a fixed order
	for name := range out.losses {
		gr.lossNames = append(gr.lossNames, name)
	}
	sort.Strings(gr.lossNames)
	gr.lossVals = make([]G.Value, len(gr.lossNames))

	var total *G.Node
	for i, name := range gr.lossNames {
		loss := out.losses[name]
		G.Read(loss, &gr.lossVals[i])
		if total == nil {
			total = loss
		} else if total, err = G.Add(total, loss); err != nil {
			return nil, fmt.Errorf("newGraph: %v", err)
		}
	}
	if total == nil {
		return nil, fmt.Errorf("newGraph: no loss to train")
	}
	G.Read(total, &gr.totalVal)

	var learnables G.Nodes
	for _, net := range out.nets {
		learnables = append(learnables, net.Learnables()...)
		gr.model = append(gr.model, net.Model()...)
	}
	if _, err := G.Grad(total, learnables...); err != nil {
		return nil, fmt.Errorf("newGraph: could not compute gradient: %v",
			err)
	}
	gr.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))

	return gr, nil
}

// run sets the inputs of the graph and runs it. If the graph is built
// for training, the solver is stepped after the forward pass, and the
// returned predictions are those made before the step.
func (gr *graph) run(obs, act, obsNext, rew []float64) (result, error) {
	if err := let(gr.in.obs, obs, gr.batch, gr.obsDim); err != nil {
		return result{}, err
	}
	if err := let(gr.in.act, act, gr.batch, gr.actDim); err != nil {
		return result{}, err
	}
	if gr.in.training() {
		if err := let(gr.in.obsNext, obsNext, gr.batch, gr.obsDim); err != nil {
			return result{}, err
		}
		if err := let(gr.in.rew, rew, gr.batch); err != nil {
			return result{}, err
		}
	}

	if err := gr.vm.RunAll(); err != nil {
		return result{}, fmt.Errorf("run: %v", err)
	}
	defer gr.vm.Reset()

	r := result{
		obs: copyValue(gr.obsVal),
		rew: copyValue(gr.rewVal),
	}
	if !gr.in.training() {
		return r, nil
	}

	r.losses = make(map[string]float64, len(gr.lossNames)+1)
	for i, name := range gr.lossNames {
		r.losses[name] = gr.lossVals[i].Data().(float64)
	}
	r.losses["total"] = gr.totalVal.Data().(float64)

	if err := gr.solver.Step(gr.model); err != nil {
		return result{}, fmt.Errorf("run: could not step solver: %v", err)
	}
	return r, nil
}

// setFrom copies the weights of the networks of src
func (gr *graph) setFrom(src *graph) error {
	for i := range gr.nets {
		if err := gr.nets[i].Set(src.nets[i]); err != nil {
			return fmt.Errorf("setFrom: %v", err)
		}
	}
	return nil
}

func let(n *G.Node, data []float64, shape ...int) error {
	size := 1
	for _, s := range shape {
		size *= s
	}
	if len(data) != size {
		return fmt.Errorf("let: invalid number of values for %v "+
			"\n\twant(%v) \n\thave(%v)", n.Name(), size, len(data))
	}
	return G.Let(n, tensor.New(tensor.WithBacking(data),
		tensor.WithShape(shape...)))
}

func copyValue(v G.Value) []float64 {
	return append([]float64(nil), v.Data().([]float64)...)
}

// mse adds the weighted mean squared error between a and b to the graph
func mse(a, b *G.Node, weight float64) (*G.Node, error) {
	diff, err := G.Sub(a, b)
	if err != nil {
		return nil, fmt.Errorf("mse: %v", err)
	}
	sq, err := G.Square(diff)
	if err != nil {
		return nil, fmt.Errorf("mse: %v", err)
	}
	mean, err := G.Mean(sq)
	if err != nil {
		return nil, fmt.Errorf("mse: %v", err)
	}
	return G.Mul(G.NewConstant(weight), mean)
}

// hidden returns the hidden layer sizes and activations of the networks
// of a world model with n hidden layers
func hidden(c Config, n int) ([]int, []*network.Activation) {
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = c.HiddenDim
	}
	return sizes, network.Repeat(network.TanH, n)
}

// concat concatenates nodes along the feature dimension
func concat(nodes ...*G.Node) (*G.Node, error) {
	return G.Concat(1, nodes...)
}
