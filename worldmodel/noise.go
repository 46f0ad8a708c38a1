package worldmodel

import (
	"github.com/samuelfneumann/simsac/expreplay"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// targetNoise perturbs training targets with zero-mean Gaussian noise
type targetNoise struct {
	obs, rew *distuv.Normal
}

func newTargetNoise(c Config) *targetNoise {
	n := &targetNoise{}
	if c.NoiseObs > 0 {
		n.obs = &distuv.Normal{Sigma: c.NoiseObs,
			Src: rand.NewSource(c.Seed)}
	}
	if c.NoiseRew > 0 {
		n.rew = &distuv.Normal{Sigma: c.NoiseRew,
			Src: rand.NewSource(c.Seed + 1)}
	}
	return n
}

// targets returns copies of the next observations and rewards of b
// with noise added
func (n *targetNoise) targets(b expreplay.Batch) ([]float64, []float64) {
	obsNext := append([]float64(nil), b.ObsNext...)
	rew := append([]float64(nil), b.Rew...)

	perturb(obsNext, n.obs)
	perturb(rew, n.rew)
	return obsNext, rew
}

func perturb(x []float64, dist *distuv.Normal) {
	if dist == nil {
		return
	}
	for i := range x {
		x[i] += dist.Rand()
	}
}
