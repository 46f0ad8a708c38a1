package carracing

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ByteArena/box2d"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestTrackIsClosedLoop(t *testing.T) {
	for seed := uint64(0); seed < 10; seed++ {
		tr := newTrack(rand.New(rand.NewSource(seed)))
		if tr.Len() < Checkpoints {
			t.Fatalf("seed %v: too few tiles: %v", seed, tr.Len())
		}

		for i := 0; i < tr.Len(); i++ {
			next := (i + 1) % tr.Len()
			length := math.Hypot(tr.x[next]-tr.x[i], tr.y[next]-tr.y[i])
			if length > TileLength+1e-9 {
				t.Errorf("seed %v: tile %v too long: %v", seed, i, length)
			}
		}
	}
}

func TestNearestOnTrack(t *testing.T) {
	tr := newTrack(rand.New(rand.NewSource(3)))

	for i := 0; i < tr.Len(); i += 7 {
		dx, dy := tr.direction(i)

		// Halfway along tile i, one unit to the left
		next := (i + 1) % tr.Len()
		px := (tr.x[i]+tr.x[next])/2 - dy
		py := (tr.y[i]+tr.y[next])/2 + dx

		_, dist, offset := tr.nearest(px, py)
		if dist > 1+1e-6 {
			t.Errorf("tile %v: distance \n\twant(<= 1) \n\thave(%v)", i, dist)
		}
		if offset <= 0 {
			t.Errorf("tile %v: offset to the left should be positive, "+
				"have %v", i, offset)
		}
	}
}

func TestDrivingVisitsTiles(t *testing.T) {
	env, step, err := NewDefault(0.99, 11)
	if err != nil {
		t.Fatal(err)
	}
	if !step.First() {
		t.Fatalf("first step should have StepType First")
	}
	if step.Observation.Len() != ObservationDims {
		t.Fatalf("observation dims: \n\twant(%v) \n\thave(%v)", ObservationDims,
			step.Observation.Len())
	}

	gas := mat.NewVecDense(ActionDims, []float64{0, 0.5, 0})
	total := 0.0
	for i := 0; i < 100; i++ {
		step, last, err := env.Step(gas)
		if err != nil {
			t.Fatal(err)
		}
		total += step.Reward
		if last {
			break
		}
	}

	visited, _ := env.TilesVisited()
	if visited == 0 {
		t.Errorf("driving forward should visit tiles")
	}
	if total <= -StepPenalty*100 {
		t.Errorf("return should exceed the step penalty, have %v", total)
	}
}

func TestEpisodeTimeout(t *testing.T) {
	env, _, err := NewDefault(0.99, 2)
	if err != nil {
		t.Fatal(err)
	}

	idle := mat.NewVecDense(ActionDims, nil)
	for i := 1; i <= MaxEpisodeSteps; i++ {
		step, last, err := env.Step(idle)
		if err != nil {
			t.Fatal(err)
		}
		if last != (i == MaxEpisodeSteps) {
			t.Fatalf("step %v: last \n\twant(%v) \n\thave(%v)", i,
				i == MaxEpisodeSteps, last)
		}
		if last && !step.TimeOut() {
			t.Errorf("idle car should time out")
		}
	}
}

func TestEpisodeEnds(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*CarRacing)
		action []float64
		reward func(*CarRacing) float64
	}{
		{
			name:   "full gas leaves the playfield",
			action: []float64{0, 1, 0},
			reward: func(*CarRacing) float64 { return OffFieldPenalty },
		},
		{
			name: "placed off the playfield",
			setup: func(c *CarRacing) {
				c.car.SetTransform(box2d.MakeB2Vec2(PlayField+1, 0), 0)
			},
			action: []float64{0, 0, 0},
			reward: func(*CarRacing) float64 { return OffFieldPenalty },
		},
		{
			name: "every tile visited",
			setup: func(c *CarRacing) {
				pos := c.car.GetPosition()
				current, _, _ := c.track.nearest(pos.X, pos.Y)
				for i := 0; i < c.track.Len(); i++ {
					if i != current {
						c.track.visit(i)
					}
				}
			},
			action: []float64{0, 0, 0},
			reward: func(c *CarRacing) float64 {
				return -StepPenalty + TrackReward/float64(c.track.Len())
			},
		},
	}

	for _, test := range tests {
		env, _, err := NewDefault(0.99, 0)
		if err != nil {
			t.Fatal(err)
		}
		if test.setup != nil {
			test.setup(env)
		}

		action := mat.NewVecDense(ActionDims, test.action)
		for i := 1; i <= MaxEpisodeSteps; i++ {
			step, last, err := env.Step(action)
			if err != nil {
				t.Fatal(err)
			}
			if !last {
				continue
			}

			if !step.Terminal() || step.TimeOut() {
				t.Errorf("%v: episode should end in a terminal state at "+
					"step %v", test.name, i)
			}
			if want := test.reward(env); math.Abs(step.Reward-want) > 1e-9 {
				t.Errorf("%v: last reward \n\twant(%v) \n\thave(%v)",
					test.name, want, step.Reward)
			}
			break
		}
		if last := env.CurrentTimeStep(); !last.Last() {
			t.Errorf("%v: episode should have ended", test.name)
		}
	}
}

func TestResetIsDeterministic(t *testing.T) {
	env1, step1, err := NewDefault(0.99, 5)
	if err != nil {
		t.Fatal(err)
	}
	env2, step2, err := NewDefault(0.99, 5)
	if err != nil {
		t.Fatal(err)
	}

	if !mat.Equal(step1.Observation, step2.Observation) {
		t.Errorf("environments with equal seeds should start equally")
	}
	if env1.track.Len() != env2.track.Len() {
		t.Errorf("environments with equal seeds should have equal tracks")
	}
}

func TestRender(t *testing.T) {
	env, _, err := NewDefault(0.99, 1)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	env.SetRenderDir(dir)

	if err := env.Render(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "carracing-000000.png")); err != nil {
		t.Errorf("render should save a frame: %v", err)
	}
}
