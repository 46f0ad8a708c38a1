package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node // (1, out), broadcast over the batch
	act     *Activation
}

// newfcLayers adds fully connected layers to the graph g. Layer i has
// sizes[i] units and activation acts[i].
func newfcLayers(g *G.ExprGraph, name string, features int, sizes []int,
	acts []*Activation, init G.InitWFn) []*fcLayer {
	layers := make([]*fcLayer, len(sizes))

	in := features
	for i, out := range sizes {
		weights := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(in, out),
			G.WithName(fmt.Sprintf("%sW%d", name, i)),
			G.WithInit(init),
		)
		bias := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(1, out),
			G.WithName(fmt.Sprintf("%sB%d", name, i)),
			G.WithInit(G.Zeroes()),
		)

		layers[i] = &fcLayer{weights: weights, bias: bias, act: acts[i]}
		in = out
	}
	return layers
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not multiply weights: %v", err)
	}

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("fwd: could not add bias: %v", err)
	}

	return f.act.fwd(x)
}

// cloneTo clones an fcLayer to a new computational graph. The weights
// of the clone hold a copy of the current weights of f.
func (f *fcLayer) cloneTo(g *G.ExprGraph) *fcLayer {
	return &fcLayer{
		weights: cloneNode(g, f.weights),
		bias:    cloneNode(g, f.bias),
		act:     f.act,
	}
}

// cloneNode creates a new matrix node in g with the name, shape, and a
// copy of the value of n
func cloneNode(g *G.ExprGraph, n *G.Node) *G.Node {
	value := n.Value().(*tensor.Dense).Clone().(*tensor.Dense)
	return G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(n.Shape()...),
		G.WithName(n.Name()),
		G.WithValue(value),
	)
}
