package worldmodel

import (
	"fmt"

	"github.com/samuelfneumann/simsac/network"
	G "gorgonia.org/gorgonia"
)

func newNODAE(c Config) (Model, error) {
	return newNetModel(NODAE, c, buildNODAE)
}

// buildNODAE builds a neural ODE autoencoder. Observations are encoded
// to a latent state z = E(x) which evolves by
//
//	dz/dt = f([z, a])
//
// and is decoded to the next observation x' = D(z'). Rewards are
// predicted from the latent state as r = R([z, a]).
//
// The transition loss compares decoded predictions to the next
// observations and predicted latent states to encoded next
// observations. The autoencoder loss is the reconstruction error of
// D(E(x)).
func buildNODAE(c Config, in inputs) (outputs, error) {
	sizes, acts := hidden(c, 1)
	encoder, err := network.NewMLPFromInput("encoder", []*G.Node{in.obs},
		c.LatentDim, sizes, c.Init.InitWFn(), acts)
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}
	z := encoder.Prediction()

	sizes, acts = hidden(c, 2)
	dynamics, err := network.NewMLPFromInput("dynamics",
		[]*G.Node{z, in.act}, c.LatentDim, sizes, c.Init.InitWFn(), acts)
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}
	f := func(z *G.Node) (*G.Node, error) {
		za, err := concat(z, in.act)
		if err != nil {
			return nil, err
		}
		return dynamics.Fwd(za)
	}
	zNext, err := rk4(f, z, dynamics.Prediction(), rk4Steps)
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}

	sizes, acts = hidden(c, 1)
	decoder, err := network.NewMLPFromInput("decoder", []*G.Node{zNext},
		c.ObsDim, sizes, c.Init.InitWFn(), acts)
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}

	reward, err := network.NewMLPFromInput("reward", []*G.Node{z, in.act}, 1,
		sizes, c.Init.InitWFn(), acts)
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}
	rew, err := G.Ravel(reward.Prediction())
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}

	out := outputs{
		obs:  decoder.Prediction(),
		rew:  rew,
		nets: []*network.MLP{encoder, dynamics, decoder, reward},
	}
	if !in.training() {
		return out, nil
	}

	zTarget, err := encoder.Fwd(in.obsNext)
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}
	recon, err := decoder.Fwd(z)
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}

	decoded, err := mse(out.obs, in.obsNext, c.LossWeightTrans)
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}
	latent, err := mse(zNext, zTarget, c.LossWeightTrans)
	if err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}

	out.losses = make(map[string]*G.Node)
	if out.losses["trans"], err = G.Add(decoded, latent); err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}
	if out.losses["ae"], err = mse(recon, in.obs, c.LossWeightAE); err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}
	if out.losses["rew"], err = mse(rew, in.rew, c.LossWeightRew); err != nil {
		return outputs{}, fmt.Errorf("buildNODAE: %v", err)
	}
	return out, nil
}
