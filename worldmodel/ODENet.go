package worldmodel

import (
	"fmt"

	"github.com/samuelfneumann/simsac/network"
	G "gorgonia.org/gorgonia"
)

func newODENet(c Config) (Model, error) {
	return newNetModel(ODENet, c, buildODENet)
}

// buildODENet builds a neural ODE on the observation space:
//
//	dx/dt = f([x, a]),  r = R([x, a])
//
// The next observation is the solution of the ODE after one unit of
// time.
func buildODENet(c Config, in inputs) (outputs, error) {
	sizes, acts := hidden(c, 2)
	dynamics, err := network.NewMLPFromInput("dynamics",
		[]*G.Node{in.obs, in.act}, c.ObsDim, sizes, c.Init.InitWFn(), acts)
	if err != nil {
		return outputs{}, fmt.Errorf("buildODENet: %v", err)
	}

	f := func(x *G.Node) (*G.Node, error) {
		xa, err := concat(x, in.act)
		if err != nil {
			return nil, err
		}
		return dynamics.Fwd(xa)
	}
	obs, err := rk4(f, in.obs, dynamics.Prediction(), rk4Steps)
	if err != nil {
		return outputs{}, fmt.Errorf("buildODENet: %v", err)
	}

	sizes, acts = hidden(c, 1)
	reward, err := network.NewMLPFromInput("reward",
		[]*G.Node{in.obs, in.act}, 1, sizes, c.Init.InitWFn(), acts)
	if err != nil {
		return outputs{}, fmt.Errorf("buildODENet: %v", err)
	}
	rew, err := G.Ravel(reward.Prediction())
	if err != nil {
		return outputs{}, fmt.Errorf("buildODENet: %v", err)
	}

	out := outputs{
		obs:  obs,
		rew:  rew,
		nets: []*network.MLP{dynamics, reward},
	}
	if !in.training() {
		return out, nil
	}

	out.losses = make(map[string]*G.Node)
	if out.losses["trans"], err = mse(obs, in.obsNext,
		c.LossWeightTrans); err != nil {
		return outputs{}, fmt.Errorf("buildODENet: %v", err)
	}
	if out.losses["rew"], err = mse(rew, in.rew, c.LossWeightRew); err != nil {
		return outputs{}, fmt.Errorf("buildODENet: %v", err)
	}
	return out, nil
}
