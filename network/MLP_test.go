package network

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func newTestMLP(t *testing.T, name string, g *G.ExprGraph) *MLP {
	t.Helper()
	net, err := NewMLP(name, 3, 4, 2, g, []int{5, 5}, G.GlorotU(1.0),
		Repeat(ReLU, 2))
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func run(t *testing.T, net *MLP, input []float64) []float64 {
	t.Helper()
	if err := net.SetInput(input); err != nil {
		t.Fatal(err)
	}
	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}
	return append([]float64(nil), net.Output().Data().([]float64)...)
}

func equal(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

var testInput = []float64{
	0.1, -0.2, 0.3,
	1.0, 0.5, -1.0,
	-0.3, 0.8, 0.0,
	0.0, 0.0, 2.0,
}

func TestMLPShapes(t *testing.T) {
	net := newTestMLP(t, "net", G.NewGraph())

	if net.Features() != 3 || net.BatchSize() != 4 || net.Outputs() != 2 {
		t.Errorf("invalid MLP dimensions: features %v, batch %v, outputs %v",
			net.Features(), net.BatchSize(), net.Outputs())
	}
	if len(net.Learnables()) != 6 {
		t.Errorf("learnables \n\twant(6) \n\thave(%v)", len(net.Learnables()))
	}
	if len(net.Model()) != len(net.Learnables()) {
		t.Errorf("model and learnables should have equal lengths")
	}

	out := run(t, net, testInput)
	if len(out) != 8 {
		t.Errorf("outputs \n\twant(8) \n\thave(%v)", len(out))
	}

	if err := net.SetInput(testInput[:3]); err == nil {
		t.Errorf("setInput should fail with too few inputs")
	}
}

func TestMLPActivationMismatch(t *testing.T) {
	_, err := NewMLP("net", 3, 1, 1, G.NewGraph(), []int{4, 4}, G.Zeroes(),
		Repeat(ReLU, 1))
	if err == nil {
		t.Errorf("mismatched activations should return an error")
	}
}

func TestCloneAndSet(t *testing.T) {
	net := newTestMLP(t, "net", G.NewGraph())
	want := run(t, net, testInput)

	clone, err := net.CloneWithBatch(4)
	if err != nil {
		t.Fatal(err)
	}
	if have := run(t, clone, testInput); !equal(want, have, 1e-12) {
		t.Errorf("clone output \n\twant(%v) \n\thave(%v)", want, have)
	}

	other := newTestMLP(t, "net", G.NewGraph())
	if err := other.Set(net); err != nil {
		t.Fatal(err)
	}
	if have := run(t, other, testInput); !equal(want, have, 1e-12) {
		t.Errorf("set output \n\twant(%v) \n\thave(%v)", want, have)
	}
}

func TestPolyak(t *testing.T) {
	net := newTestMLP(t, "net", G.NewGraph())
	target := newTestMLP(t, "net", G.NewGraph())

	before := target.Weights()
	source := net.Weights()
	if err := target.Polyak(net, 0.25); err != nil {
		t.Fatal(err)
	}
	after := target.Weights()

	for i := range after {
		for j := range after[i] {
			want := 0.75*before[i][j] + 0.25*source[i][j]
			if math.Abs(after[i][j]-want) > 1e-12 {
				t.Fatalf("weight %v, %v \n\twant(%v) \n\thave(%v)", i, j, want,
					after[i][j])
			}
		}
	}
}

func TestFwdSharesWeights(t *testing.T) {
	g := G.NewGraph()
	net := newTestMLP(t, "net", g)

	x := G.NewMatrix(g, tensor.Float64, G.WithShape(4, 3), G.WithName("x"),
		G.WithInit(G.Zeroes()))
	pred, err := net.Fwd(x)
	if err != nil {
		t.Fatal(err)
	}
	var predVal G.Value
	G.Read(pred, &predVal)

	if err := net.SetInput(testInput); err != nil {
		t.Fatal(err)
	}
	xVal := tensor.New(tensor.WithBacking(append([]float64(nil),
		testInput...)), tensor.WithShape(4, 3))
	if err := G.Let(x, xVal); err != nil {
		t.Fatal(err)
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	want := net.Output().Data().([]float64)
	have := predVal.Data().([]float64)
	if !equal(want, have, 1e-12) {
		t.Errorf("fwd output \n\twant(%v) \n\thave(%v)", want, have)
	}

	wrong := G.NewMatrix(g, tensor.Float64, G.WithShape(4, 2),
		G.WithName("wrong"), G.WithInit(G.Zeroes()))
	if _, err := net.Fwd(wrong); err == nil {
		t.Errorf("fwd with wrong features should return an error")
	}
}

func TestGob(t *testing.T) {
	net := newTestMLP(t, "net", G.NewGraph())
	want := run(t, net, testInput)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(net); err != nil {
		t.Fatal(err)
	}

	decoded := &MLP{}
	if err := gob.NewDecoder(&buf).Decode(decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Name() != "net" {
		t.Errorf("name \n\twant(net) \n\thave(%v)", decoded.Name())
	}

	// The decoded MLP must read its prediction into its own output
	if err := decoded.SetInput(testInput); err != nil {
		t.Fatal(err)
	}
	vm := G.NewTapeMachine(decoded.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}
	if decoded.Output() == nil {
		t.Fatalf("decoded output should not be nil after running the graph")
	}
	have := decoded.Output().Data().([]float64)
	if !equal(want, have, 1e-12) {
		t.Errorf("decoded output \n\twant(%v) \n\thave(%v)", want, have)
	}

	// Predictions through a clone of the decoded MLP
	p := NewPredictor(decoded)
	defer p.Close()
	row, err := p.Predict(testInput[:3], 1)
	if err != nil {
		t.Fatal(err)
	}
	if !equal(want[:2], row, 1e-12) {
		t.Errorf("decoded row \n\twant(%v) \n\thave(%v)", want[:2], row)
	}
}

func TestPredictor(t *testing.T) {
	net := newTestMLP(t, "net", G.NewGraph())
	want := run(t, net, testInput)

	p := NewPredictor(net)
	defer p.Close()

	have, err := p.Predict(testInput, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !equal(want, have, 1e-12) {
		t.Errorf("prediction \n\twant(%v) \n\thave(%v)", want, have)
	}

	// Single rows through a clone with a different batch size
	for i := 0; i < 4; i++ {
		row, err := p.Predict(testInput[3*i:3*i+3], 1)
		if err != nil {
			t.Fatal(err)
		}
		if !equal(want[2*i:2*i+2], row, 1e-12) {
			t.Errorf("row %v \n\twant(%v) \n\thave(%v)", i, want[2*i:2*i+2],
				row)
		}
	}

	// Changed source weights are seen only after Sync
	zero := newTestMLP(t, "zero", G.NewGraph())
	weights := zero.Weights()
	for i := range weights {
		for j := range weights[i] {
			weights[i][j] = 0
		}
	}
	if err := net.SetWeights(weights); err != nil {
		t.Fatal(err)
	}
	stale, _ := p.Predict(testInput, 4)
	if !equal(want, stale, 1e-12) {
		t.Errorf("predictor should not see new weights before Sync")
	}
	p.Sync()
	synced, _ := p.Predict(testInput, 4)
	if !equal(make([]float64, 8), synced, 1e-12) {
		t.Errorf("zero weights should predict zero, have %v", synced)
	}
}
