package collector

import (
	"testing"

	"github.com/samuelfneumann/simsac/environment/envconfig"
	"github.com/samuelfneumann/simsac/environment/vector"
	"github.com/samuelfneumann/simsac/expreplay"
)

// constant is a policy that always takes the same action
type constant struct {
	action float64
	eval   bool
}

func (c *constant) Act(obs []float64, batch int) ([]float64, error) {
	act := make([]float64, batch)
	for i := range act {
		act[i] = c.action
	}
	return act, nil
}

func (c *constant) Eval()        { c.eval = true }
func (c *constant) Train()       { c.eval = false }
func (c *constant) IsEval() bool { return c.eval }

func newPendulums(t *testing.T, n int) vector.Env {
	t.Helper()
	envs, err := vector.NewDummy(envconfig.Factories(envconfig.Pendulum, n, 0,
		envconfig.Options{Discount: 0.99}))
	if err != nil {
		t.Fatal(err)
	}
	return envs
}

func TestCollectSteps(t *testing.T) {
	buffer, err := expreplay.Config{MinReplayCapacity: 1,
		MaxReplayCapacity: 1000}.Create(3, 1, 0)
	if err != nil {
		t.Fatal(err)
	}

	c, err := New(&constant{action: 1}, newPendulums(t, 2), buffer)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// Pendulum episodes last 200 steps, both environments finish
	// together and their episodes are only stored once finished
	r, err := c.Collect(10, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Steps != 400 || r.Episodes != 2 {
		t.Errorf("collected (steps, episodes) \n\twant(400, 2) "+
			"\n\thave(%v, %v)", r.Steps, r.Episodes)
	}
	if buffer.Len() != 400 {
		t.Errorf("buffer length \n\twant(400) \n\thave(%v)", buffer.Len())
	}
	if r.Length != 200 {
		t.Errorf("episode length \n\twant(200) \n\thave(%v)", r.Length)
	}
	if r.Reward >= 0 {
		t.Errorf("pendulum returns should be negative, have %v", r.Reward)
	}

	last := buffer.Batch([]int{199})
	if !last.Done[0] {
		t.Errorf("last transition of an episode should be done")
	}

	if c.CollectStep() != 400 || c.CollectEpisode() != 2 {
		t.Errorf("totals \n\twant(400, 2) \n\thave(%v, %v)", c.CollectStep(),
			c.CollectEpisode())
	}
	c.ResetStat()
	c.ResetBuffer()
	if c.CollectStep() != 0 || buffer.Len() != 0 {
		t.Errorf("reset did not clear the totals or the buffer")
	}
}

func TestCollectEpisodes(t *testing.T) {
	c, err := New(&constant{action: -1}, newPendulums(t, 2), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	r, err := c.CollectEpisodes(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Episodes != 3 || r.Steps != 600 {
		t.Errorf("collected (steps, episodes) \n\twant(600, 3) "+
			"\n\thave(%v, %v)", r.Steps, r.Episodes)
	}
	scalars := r.Scalars()
	for _, key := range []string{"n/ep", "n/st", "v/st", "v/ep", "rew",
		"rew_std", "len"} {
		if _, ok := scalars[key]; !ok {
			t.Errorf("missing result %v", key)
		}
	}

	if _, err := c.Collect(0, []int{1}, 0); err == nil {
		t.Errorf("episode counts must match the number of environments")
	}
	if _, err := c.Collect(5, []int{1, 1}, 0); err == nil {
		t.Errorf("steps and episodes cannot both be given")
	}
	if _, err := c.CollectEpisodes(0, 0); err == nil {
		t.Errorf("zero episodes should return an error")
	}
}
