package experiment

import (
	"testing"

	"github.com/samuelfneumann/simsac/agent"
	"github.com/samuelfneumann/simsac/collector"
	"github.com/samuelfneumann/simsac/environment/envconfig"
	"github.com/samuelfneumann/simsac/environment/vector"
	"github.com/samuelfneumann/simsac/expreplay"
)

// fakeAgent acts with zero torque and counts its updates
type fakeAgent struct {
	updates int
	eval    bool
}

func (f *fakeAgent) Act(obs []float64, batch int) ([]float64, error) {
	return make([]float64, batch), nil
}

func (f *fakeAgent) Update(batchSize int, buffer *expreplay.Buffer) (
	map[string]float64, error) {
	if _, _, err := buffer.Sample(batchSize); err != nil {
		return nil, err
	}
	f.updates++
	return map[string]float64{"loss/actor": float64(f.updates)}, nil
}

func (f *fakeAgent) Eval()        { f.eval = true }
func (f *fakeAgent) Train()       { f.eval = false }
func (f *fakeAgent) IsEval() bool { return f.eval }

// memTracker records the tags tracked
type memTracker map[string]int

func (m memTracker) Track(tag string, _ int, _ float64) { m[tag]++ }
func (m memTracker) Save() error                        { return nil }

func newCollector(t *testing.T, a agent.Policy, n int,
	buffer *expreplay.Buffer) *collector.Collector {
	t.Helper()
	envs, err := vector.NewDummy(envconfig.Factories(envconfig.Pendulum, n, 0,
		envconfig.Options{Discount: 0.99}))
	if err != nil {
		t.Fatal(err)
	}
	c, err := collector.New(a, envs, buffer)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func newCollectors(t *testing.T, a agent.Policy) (*collector.Collector,
	*collector.Collector) {
	buffer, err := expreplay.Config{MinReplayCapacity: 1,
		MaxReplayCapacity: 2000}.Create(3, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	return newCollector(t, a, 2, buffer), newCollector(t, a, 2, nil)
}

func TestOffPolicy(t *testing.T) {
	a := &fakeAgent{}
	train, test := newCollectors(t, a)
	defer train.Close()
	defer test.Close()

	tr := memTracker{}
	saves := 0
	result, err := OffPolicy(a, train, test, Config{
		MaxEpoch:       2,
		StepPerEpoch:   3,
		CollectPerStep: 100,
		EpisodePerTest: 3,
		BatchSize:      16,
		Tracker:        tr,
		SaveFn: func(agent.Policy) error {
			saves++
			return nil
		},
		Quiet: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Each collection finishes one episode per environment, 400 steps,
	// enough for all 3 updates of an epoch
	if a.updates != 6 {
		t.Errorf("updates \n\twant(6) \n\thave(%v)", a.updates)
	}
	if result.TrainStep != 800 || result.TrainEpisode != 4 {
		t.Errorf("train (steps, episodes) \n\twant(800, 4) \n\thave(%v, %v)",
			result.TrainStep, result.TrainEpisode)
	}
	if result.TestEpisode != 6 {
		t.Errorf("test episodes \n\twant(6) \n\thave(%v)", result.TestEpisode)
	}
	if saves < 1 {
		t.Errorf("the first epoch should always save the policy")
	}
	for _, tag := range []string{"train/rew", "test/rew", "loss/actor"} {
		if tr[tag] == 0 {
			t.Errorf("tag %v was not tracked", tag)
		}
	}
	if tr["loss/actor"] != 6 {
		t.Errorf("loss tracked \n\twant(6) \n\thave(%v)", tr["loss/actor"])
	}
	if _, ok := result.Fields()["best_result"]; !ok {
		t.Errorf("missing best_result field")
	}
}

func TestOffPolicyStop(t *testing.T) {
	a := &fakeAgent{}
	train, test := newCollectors(t, a)
	defer train.Close()
	defer test.Close()

	saved := false
	_, err := OffPolicy(a, train, test, Config{
		MaxEpoch:       5,
		StepPerEpoch:   3,
		CollectPerStep: 100,
		EpisodePerTest: 2,
		BatchSize:      16,
		StopFn:         func(float64) bool { return true },
		SaveFn: func(agent.Policy) error {
			saved = true
			return nil
		},
		TestInTrain: true,
		Quiet:       true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.updates != 0 {
		t.Errorf("training should stop before any update, have %v updates",
			a.updates)
	}
	if !saved {
		t.Errorf("policy should be saved when stopping")
	}

	if _, err := OffPolicy(a, train, test, Config{}); err == nil {
		t.Errorf("invalid config should return an error")
	}
	_, err = OffPolicy(a, test, test, Config{MaxEpoch: 1, StepPerEpoch: 1,
		CollectPerStep: 1, EpisodePerTest: 1, BatchSize: 1, Quiet: true})
	if err == nil {
		t.Errorf("training without a replay buffer should return an error")
	}
}

// stepTracker records the steps at which each tag is tracked
type stepTracker map[string][]int

func (s stepTracker) Track(tag string, step int, _ float64) {
	s[tag] = append(s[tag], step)
}
func (s stepTracker) Save() error { return nil }

func TestOffPolicySteps(t *testing.T) {
	tests := []struct {
		name        string
		minCapacity int
		wantUpdates int
		wantSteps   int
	}{
		{"no warm up", 1, 6, 800},
		{"warm up", 500, 6, 1200},
	}

	for _, test := range tests {
		a := &fakeAgent{}
		buffer, err := expreplay.Config{MinReplayCapacity: test.minCapacity,
			MaxReplayCapacity: 2000}.Create(3, 1, 0)
		if err != nil {
			t.Fatal(err)
		}
		train := newCollector(t, a, 2, buffer)
		tester := newCollector(t, a, 1, nil)

		tr := stepTracker{}
		result, err := OffPolicy(a, train, tester, Config{
			MaxEpoch:       2,
			StepPerEpoch:   3,
			CollectPerStep: 100,
			EpisodePerTest: 1,
			BatchSize:      16,
			Tracker:        tr,
			Quiet:          true,
		})
		train.Close()
		tester.Close()
		if err != nil {
			t.Fatalf("%v: %v", test.name, err)
		}

		if a.updates != test.wantUpdates {
			t.Errorf("%v: updates \n\twant(%v) \n\thave(%v)", test.name,
				test.wantUpdates, a.updates)
		}
		if result.TrainStep != test.wantSteps {
			t.Errorf("%v: train steps \n\twant(%v) \n\thave(%v)", test.name,
				test.wantSteps, result.TrainStep)
		}

		// The global step advances by the steps collected per update
		steps := tr["loss/actor"]
		for i, step := range steps {
			if want := 100 * (i + 1); step != want {
				t.Errorf("%v: step of update %v \n\twant(%v) \n\thave(%v)",
					test.name, i, want, step)
			}
		}
		if last := tr["test/rew"]; len(last) != 2 || last[1] != 600 {
			t.Errorf("%v: test steps \n\twant([300 600]) \n\thave(%v)",
				test.name, last)
		}
	}
}

func TestMovAvg(t *testing.T) {
	var m movAvg
	for i := 0; i < movAvgSize+10; i++ {
		m.add(float64(i))
	}
	want := float64(10+movAvgSize+9) / 2
	if m.get() != want {
		t.Errorf("average \n\twant(%v) \n\thave(%v)", want, m.get())
	}
}
