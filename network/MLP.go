// Package network implements feed forward neural networks on
// Gorgonia computational graphs.
package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MLP implements a multi-layered perceptron. The MLP has
// len(hiddenSizes) hidden layers followed by a linear output layer of
// size outputs.
//
// Learnable nodes are named with the name of the MLP as a prefix.
// Since Gorgonia merges input nodes of the same name and shape, two
// MLPs on the same graph must have different names.
type MLP struct {
	name     string
	g        *G.ExprGraph
	layers   []*fcLayer
	input    *G.Node
	settable bool // whether input is an input node that can be Let

	features int
	outputs  int
	batch    int

	// Data needed for gobbing
	hiddenSizes []int
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new MLP on the graph g. The MLP takes
// inputs of shape (batch, features) through its own input node and
// predicts outputs values per sample.
//
// For index i, hiddenSizes[i] is the number of units in hidden layer i
// and activations[i] is its activation function. The parameter init
// determines the weight initialization scheme, biases are initialized
// to zero.
func NewMLP(name string, features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, init G.InitWFn, activations []*Activation) (*MLP,
	error) {
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName(name+"Input"), G.WithInit(G.Zeroes()))

	net, err := NewMLPFromInput(name, []*G.Node{input}, outputs,
		hiddenSizes, init, activations)
	if err != nil {
		return nil, fmt.Errorf("newMLP: %v", err)
	}
	net.settable = true

	return net, nil
}

// NewMLPFromInput returns a new MLP that has specific nodes as its
// input. If multiple input nodes are given, they are first
// concatenated along the feature (column) dimension.
func NewMLPFromInput(name string, inputs []*G.Node, outputs int,
	hiddenSizes []int, init G.InitWFn, activations []*Activation) (*MLP,
	error) {
	// Ensure we have one activation per layer
	if len(hiddenSizes) != len(activations) {
		msg := "newMLPFromInput: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}

	net := &MLP{}
	if err := net.build(name, inputs, outputs, hiddenSizes, init,
		activations); err != nil {
		return nil, fmt.Errorf("newMLPFromInput: %v", err)
	}
	return net, nil
}

// build constructs the layers and forward pass of m in place. The
// prediction is read into m itself, so m must not be copied by value
// afterwards.
func (m *MLP) build(name string, inputs []*G.Node, outputs int,
	hiddenSizes []int, init G.InitWFn, activations []*Activation) error {
	input, err := concat(inputs)
	if err != nil {
		return err
	}

	g := input.Graph()
	features := input.Shape()[1]
	sizes := append(append([]int{}, hiddenSizes...), outputs)
	acts := append(append([]*Activation{}, activations...), Identity())

	*m = MLP{
		name:        name,
		g:           g,
		layers:      newfcLayers(g, name, features, sizes, acts, init),
		input:       input,
		features:    features,
		outputs:     outputs,
		batch:       input.Shape()[0],
		hiddenSizes: hiddenSizes,
		activations: activations,
	}

	if err := m.fwd(input); err != nil {
		return fmt.Errorf("could not compute forward pass: %v", err)
	}
	return nil
}

// concat concatenates the input nodes along the feature dimension
func concat(inputs []*G.Node) (*G.Node, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("concat: no input nodes")
	}

	for _, input := range inputs {
		if !input.IsMatrix() {
			return nil, fmt.Errorf("concat: inputs must be matrices")
		}
		if input.Graph() != inputs[0].Graph() {
			return nil, fmt.Errorf("concat: not all inputs have the same " +
				"graph")
		}
	}

	if len(inputs) == 1 {
		return inputs[0], nil
	}
	return G.Concat(1, inputs...)
}

// CloneTo clones the MLP to the graph g. The clone holds a copy of the
// current weights of the MLP. If no inputs are given, the clone gets
// its own input node with the batch size of the MLP, otherwise the
// inputs are concatenated along the feature dimension.
func (m *MLP) CloneTo(g *G.ExprGraph, inputs ...*G.Node) (*MLP, error) {
	settable := false
	if len(inputs) == 0 {
		inputs = []*G.Node{G.NewMatrix(g, tensor.Float64,
			G.WithShape(m.batch, m.features), G.WithName(m.name+"Input"),
			G.WithInit(G.Zeroes()))}
		settable = true
	}

	input, err := concat(inputs)
	if err != nil {
		return nil, fmt.Errorf("cloneTo: %v", err)
	}
	if input.Graph() != g {
		return nil, fmt.Errorf("cloneTo: inputs are not in the target graph")
	}
	if input.Shape()[1] != m.features {
		return nil, fmt.Errorf("cloneTo: invalid number of input features "+
			"\n\twant(%v) \n\thave(%v)", m.features, input.Shape()[1])
	}

	layers := make([]*fcLayer, len(m.layers))
	for i := range m.layers {
		layers[i] = m.layers[i].cloneTo(g)
	}

	net := &MLP{
		name:        m.name,
		g:           g,
		layers:      layers,
		input:       input,
		settable:    settable,
		features:    m.features,
		outputs:     m.outputs,
		batch:       input.Shape()[0],
		hiddenSizes: m.hiddenSizes,
		activations: m.activations,
	}
	if err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("cloneTo: could not compute forward pass: %v",
			err)
	}
	return net, nil
}

// CloneWithBatch clones the MLP to a new graph with its own input node
// of the given batch size
func (m *MLP) CloneWithBatch(batch int) (*MLP, error) {
	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, m.features),
		G.WithName(m.name+"Input"), G.WithInit(G.Zeroes()))

	net, err := m.CloneTo(g, input)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	net.settable = true
	return net, nil
}

// Name returns the name of the MLP
func (m *MLP) Name() string {
	return m.name
}

// Graph returns the computational graph of the MLP
func (m *MLP) Graph() *G.ExprGraph {
	return m.g
}

// BatchSize returns the batch size of inputs to the MLP
func (m *MLP) BatchSize() int {
	return m.batch
}

// Features returns the number of features in a single input to the MLP
func (m *MLP) Features() int {
	return m.features
}

// Outputs returns the number of outputs predicted per sample
func (m *MLP) Outputs() int {
	return m.outputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (m *MLP) SetInput(input []float64) error {
	if !m.settable {
		return fmt.Errorf("setInput: MLP input is computed from other " +
			"nodes and cannot be set")
	}
	if len(input) != m.features*m.batch {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", m.features*m.batch, len(input))
	}

	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(m.input.Shape()...),
	)
	return G.Let(m.input, inputTensor)
}

// Set sets the weights of the MLP to a copy of the weights of another
// MLP with the same architecture
func (m *MLP) Set(source *MLP) error {
	sourceNodes := source.Learnables()
	nodes := m.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: incompatible architectures")
	}

	for i := range nodes {
		weights := sourceNodes[i].Value().(*tensor.Dense).Clone()
		if err := G.Let(nodes[i], weights); err != nil {
			return fmt.Errorf("set: %v", err)
		}
	}
	return nil
}

// Polyak sets the weights of the MLP to a polyak average between its
// existing weights and the weights of another MLP:
//
//	θ ← (1 - τ) θ + τ θ_source
func (m *MLP) Polyak(source *MLP, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := m.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("polyak: incompatible architectures")
	}

	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}

		newWeights, err := weights.Add(sourceWeights)
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}

		if err := G.Let(nodes[i], newWeights); err != nil {
			return fmt.Errorf("polyak: %v", err)
		}
	}
	return nil
}

// Learnables returns the learnable nodes in the MLP
func (m *MLP) Learnables() G.Nodes {
	// Lazy instantiation
	if m.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(m.layers))
		for _, l := range m.layers {
			learnables = append(learnables, l.weights, l.bias)
		}
		m.learnables = G.Nodes(learnables)
	}
	return m.learnables
}

// Model returns the learnables nodes with their gradients
func (m *MLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if m.model == nil {
		m.model = make([]G.ValueGrad, 0, 2*len(m.layers))
		for _, node := range m.Learnables() {
			m.model = append(m.model, node)
		}
	}
	return m.model
}

// Fwd adds a forward pass of the MLP on the node x to the graph of the
// MLP. The forward pass shares weights with the MLP. The prediction of
// the MLP is not changed.
func (m *MLP) Fwd(x *G.Node) (*G.Node, error) {
	if x.Graph() != m.g {
		return nil, fmt.Errorf("fwd: input is not in the graph of the MLP")
	}
	if !x.IsMatrix() || x.Shape()[1] != m.features {
		return nil, fmt.Errorf("fwd: invalid shape for input to MLP: "+
			"\n\twant(?, %v) \n\thave(%v)", m.features, x.Shape())
	}

	pred := x
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			return nil, fmt.Errorf("fwd: could not compute forward pass "+
				"of layer %v: %v", i, err)
		}
	}
	return pred, nil
}

// fwd performs the forward pass of the MLP on the input node and sets
// the prediction of the MLP
func (m *MLP) fwd(input *G.Node) error {
	pred, err := m.Fwd(input)
	if err != nil {
		return err
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)

	return nil
}

// Output returns the output of the MLP after the graph has been run
func (m *MLP) Output() G.Value {
	return m.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the MLP
func (m *MLP) Prediction() *G.Node {
	return m.prediction
}

// Weights returns a copy of the learnable weights of the MLP
func (m *MLP) Weights() [][]float64 {
	nodes := m.Learnables()
	weights := make([][]float64, len(nodes))
	for i, node := range nodes {
		data := node.Value().Data().([]float64)
		weights[i] = append([]float64(nil), data...)
	}
	return weights
}

// SetWeights sets the learnable weights of the MLP
func (m *MLP) SetWeights(weights [][]float64) error {
	nodes := m.Learnables()
	if len(weights) != len(nodes) {
		return fmt.Errorf("setWeights: invalid number of weights "+
			"\n\twant(%v) \n\thave(%v)", len(nodes), len(weights))
	}

	for i, node := range nodes {
		if len(weights[i]) != node.Shape().TotalSize() {
			return fmt.Errorf("setWeights: invalid size of weights %v "+
				"\n\twant(%v) \n\thave(%v)", i, node.Shape().TotalSize(),
				len(weights[i]))
		}
		t := tensor.New(
			tensor.WithBacking(append([]float64(nil), weights[i]...)),
			tensor.WithShape(node.Shape()...),
		)
		if err := G.Let(node, t); err != nil {
			return fmt.Errorf("setWeights: %v", err)
		}
	}
	return nil
}

// GobEncode implements the gob.GobEncoder interface
func (m *MLP) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	for _, field := range []interface{}{
		m.name, m.features, m.batch, m.outputs, m.hiddenSizes,
		m.activations, m.Weights(),
	} {
		if err := enc.Encode(field); err != nil {
			return nil, fmt.Errorf("gobEncode: could not encode %T: %v",
				field, err)
		}
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded MLP is
// created on a new graph.
func (m *MLP) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var (
		name                     string
		features, batch, outputs int
		hiddenSizes              []int
		activations              []*Activation
		weights                  [][]float64
	)
	for _, field := range []interface{}{
		&name, &features, &batch, &outputs, &hiddenSizes, &activations,
		&weights,
	} {
		if err := dec.Decode(field); err != nil {
			return fmt.Errorf("gobDecode: could not decode %T: %v", field,
				err)
		}
	}

	if len(hiddenSizes) != len(activations) {
		return fmt.Errorf("gobDecode: invalid number of activations "+
			"\n\twant(%d)\n\thave(%d)", len(hiddenSizes), len(activations))
	}

	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName(name+"Input"), G.WithInit(G.Zeroes()))
	if err := m.build(name, []*G.Node{input}, outputs, hiddenSizes,
		G.Zeroes(), activations); err != nil {
		return fmt.Errorf("gobDecode: could not construct MLP: %v", err)
	}
	m.settable = true

	if err := m.SetWeights(weights); err != nil {
		return fmt.Errorf("gobDecode: %v", err)
	}
	return nil
}
