package expreplay

import (
	"math"
	"testing"

	"github.com/samuelfneumann/simsac/timestep"
	"gonum.org/v1/gonum/mat"
)

func newBuffer(t *testing.T, capacity int) *Buffer {
	t.Helper()
	b, err := Config{MinReplayCapacity: 1, MaxReplayCapacity: capacity}.Create(
		2, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// fill adds transitions with reward i and observation [i, i] for i in
// [0, n). Transitions at indices in done are terminal.
func fill(t *testing.T, b *Buffer, n int, done map[int]bool) {
	t.Helper()
	for i := 0; i < n; i++ {
		x := float64(i)
		err := b.AddRaw([]float64{x, x}, []float64{-x}, x, done[i],
			[]float64{x + 1, x + 1})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func zeroTarget(_ *Buffer, indices []int) ([]float64, error) {
	return make([]float64, len(indices)), nil
}

func TestAddAndWrap(t *testing.T) {
	b := newBuffer(t, 3)
	if _, _, err := b.Sample(1); !IsEmptyBuffer(err) {
		t.Errorf("sampling an empty buffer should return an empty buffer "+
			"error, have %v", err)
	}

	fill(t, b, 5, nil)
	if b.Len() != 3 {
		t.Errorf("len \n\twant(3) \n\thave(%v)", b.Len())
	}

	// Transitions 3 and 4 overwrote transitions 0 and 1
	batch := b.Batch([]int{0, 1, 2})
	wantRew := []float64{3, 4, 2}
	for i, want := range wantRew {
		if batch.Rew[i] != want {
			t.Errorf("reward %v \n\twant(%v) \n\thave(%v)", i, want,
				batch.Rew[i])
		}
		if batch.ObsRow(i)[0] != want || batch.ActRow(i)[0] != -want ||
			batch.ObsNextRow(i)[0] != want+1 {
			t.Errorf("transition %v stored incorrectly", i)
		}
	}

	b.Reset()
	if b.Len() != 0 {
		t.Errorf("len after reset \n\twant(0) \n\thave(%v)", b.Len())
	}
}

func TestAddTransition(t *testing.T) {
	b := newBuffer(t, 2)
	step := timestep.New(timestep.First, 0, 0.99,
		mat.NewVecDense(2, []float64{1, 2}), 0)
	next := timestep.New(timestep.Mid, 1.5, 0.99,
		mat.NewVecDense(2, []float64{3, 4}), 1)
	next.End(timestep.Terminal)

	tr := timestep.NewTransition(step, mat.NewVecDense(1, []float64{0.5}), next)
	if err := b.Add(tr); err != nil {
		t.Fatal(err)
	}

	batch := b.Batch([]int{0})
	if batch.Rew[0] != 1.5 || !batch.Done[0] || batch.ObsNext[1] != 4 {
		t.Errorf("transition stored incorrectly: %+v", batch)
	}

	if err := b.AddRaw([]float64{1}, []float64{1}, 0, false,
		[]float64{1, 1}); err == nil {
		t.Errorf("wrong observation size should return an error")
	}
}

func TestInsufficientSamples(t *testing.T) {
	b, err := New(NewUniformSelector(1), 5, 10, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	fill(t, b, 3, nil)
	if _, err := b.SampleIndices(2); !IsInsufficientSamples(err) {
		t.Errorf("should have insufficient samples, have %v", err)
	}

	fill(t, b, 2, nil)
	indices, err := b.SampleIndices(100)
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range indices {
		if i < 0 || i >= b.Len() {
			t.Errorf("index %v out of range [0, %v)", i, b.Len())
		}
	}
}

func TestNStepReturn(t *testing.T) {
	const gamma = 0.5

	tests := []struct {
		name       string
		done       map[int]bool
		ignoreDone bool
		indices    []int
		want       []float64
	}{
		{
			// 1 + 0.5*2 + 0.25*3 + 0.125*Q(3), Q = 10*index
			name:    "bootstrap",
			indices: []int{1},
			want:    []float64{1 + 1 + 0.75 + 0.125*30},
		},
		{
			// The episode ends at index 2, no bootstrap
			name:    "done",
			done:    map[int]bool{2: true},
			indices: []int{1},
			want:    []float64{1 + 1},
		},
		{
			name:       "ignore done",
			done:       map[int]bool{2: true},
			ignoreDone: true,
			indices:    []int{1},
			want:       []float64{1 + 1 + 0.75 + 0.125*30},
		},
		{
			// Wraps around the 5 stored transitions: 4, 0, 1
			name:    "wrap",
			indices: []int{4},
			want:    []float64{4 + 0 + 0.25*1 + 0.125*10},
		},
	}

	for _, test := range tests {
		b := newBuffer(t, 10)
		fill(t, b, 5, test.done)

		var terminal []int
		q := func(_ *Buffer, indices []int) ([]float64, error) {
			terminal = indices
			out := make([]float64, len(indices))
			for i, idx := range indices {
				out[i] = 10 * float64(idx)
			}
			return out, nil
		}

		have, err := b.NStepReturn(test.indices, 3, gamma, false,
			test.ignoreDone, q)
		if err != nil {
			t.Fatalf("%v: %v", test.name, err)
		}
		for i := range have {
			if math.Abs(have[i]-test.want[i]) > 1e-9 {
				t.Errorf("%v: return \n\twant(%v) \n\thave(%v)", test.name,
					test.want[i], have[i])
			}
			if terminal[i] != (test.indices[i]+2)%5 {
				t.Errorf("%v: terminal index \n\twant(%v) \n\thave(%v)",
					test.name, (test.indices[i]+2)%5, terminal[i])
			}
		}
	}
}

func TestNStepReturnRewNorm(t *testing.T) {
	b := newBuffer(t, 10)
	fill(t, b, 5, nil)

	// Rewards 0..4 have mean 2 and population std √2
	have, err := b.NStepReturn([]int{3}, 1, 0.9, true, false, zeroTarget)
	if err != nil {
		t.Fatal(err)
	}
	want := (3 - 2) / math.Sqrt(2)
	if math.Abs(have[0]-want) > 1e-9 {
		t.Errorf("normalized return \n\twant(%v) \n\thave(%v)", want, have[0])
	}

	// Constant rewards are not normalized
	c := newBuffer(t, 10)
	for i := 0; i < 3; i++ {
		c.AddRaw([]float64{0, 0}, []float64{0}, 2, false, []float64{0, 0})
	}
	have, err = c.NStepReturn([]int{0}, 1, 0.9, true, false, zeroTarget)
	if err != nil {
		t.Fatal(err)
	}
	if have[0] != 2 {
		t.Errorf("constant reward return \n\twant(2) \n\thave(%v)", have[0])
	}
}
