package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// predictor holds a clone of an MLP on its own graph together with the
// VM that runs it
type predictor struct {
	net   *MLP
	vm    G.VM
	stale bool
}

// Predictor runs forward passes of a source MLP on inputs of any batch
// size. For each batch size seen, the source MLP is cloned to its own
// graph. Clones copy the weights of the source lazily, after Sync is
// called.
type Predictor struct {
	source *MLP
	nets   map[int]*predictor
}

// NewPredictor returns a new Predictor for the source MLP
func NewPredictor(source *MLP) *Predictor {
	return &Predictor{
		source: source,
		nets:   make(map[int]*predictor),
	}
}

// Sync marks the weights of all clones as stale, so that they are
// copied from the source MLP before the next prediction. Sync should
// be called whenever the weights of the source MLP change.
func (p *Predictor) Sync() {
	for _, net := range p.nets {
		net.stale = true
	}
}

// Predict returns the predictions of the source MLP on batch inputs,
// stored row-major in input
func (p *Predictor) Predict(input []float64, batch int) ([]float64, error) {
	net, ok := p.nets[batch]
	if !ok {
		clone, err := p.source.CloneWithBatch(batch)
		if err != nil {
			return nil, fmt.Errorf("predict: %v", err)
		}
		net = &predictor{net: clone, vm: G.NewTapeMachine(clone.Graph())}
		p.nets[batch] = net
	} else if net.stale {
		if err := net.net.Set(p.source); err != nil {
			return nil, fmt.Errorf("predict: %v", err)
		}
	}
	net.stale = false

	if err := net.net.SetInput(input); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}
	if err := net.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}
	defer net.vm.Reset()

	out := net.net.Output().Data().([]float64)
	return append([]float64(nil), out...), nil
}

// Close releases the resources held by the VMs of the Predictor
func (p *Predictor) Close() error {
	for batch, net := range p.nets {
		if err := net.vm.Close(); err != nil {
			return fmt.Errorf("close: %v", err)
		}
		delete(p.nets, batch)
	}
	return nil
}
