package worldmodel

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// rk4Steps is the number of Runge-Kutta steps per environment step
const rk4Steps = 2

// derivative computes dx/dt at x
type derivative func(x *G.Node) (*G.Node, error)

// rk4 adds to the graph of x the classic fourth order Runge-Kutta
// solution of dx/dt = f(x) over the unit interval, using steps
// equally sized steps. If k1 is not nil, it is used as f(x) in the
// first step.
func rk4(f derivative, x, k1 *G.Node, steps int) (*G.Node, error) {
	if steps < 1 {
		return nil, fmt.Errorf("rk4: steps must be positive, have %v", steps)
	}
	h := 1 / float64(steps)
	half := G.NewConstant(h / 2)
	full := G.NewConstant(h)
	sixth := G.NewConstant(h / 6)
	two := G.NewConstant(2.0)

	// x + c*k
	euler := func(c, k *G.Node) (*G.Node, error) {
		step, err := G.HadamardProd(c, k)
		if err != nil {
			return nil, err
		}
		return G.Add(x, step)
	}

	var err error
	for i := 0; i < steps; i++ {
		if i > 0 || k1 == nil {
			if k1, err = f(x); err != nil {
				return nil, fmt.Errorf("rk4: k1: %v", err)
			}
		}

		var k2, k3, k4, in *G.Node
		if in, err = euler(half, k1); err != nil {
			return nil, fmt.Errorf("rk4: %v", err)
		}
		if k2, err = f(in); err != nil {
			return nil, fmt.Errorf("rk4: k2: %v", err)
		}
		if in, err = euler(half, k2); err != nil {
			return nil, fmt.Errorf("rk4: %v", err)
		}
		if k3, err = f(in); err != nil {
			return nil, fmt.Errorf("rk4: k3: %v", err)
		}
		if in, err = euler(full, k3); err != nil {
			return nil, fmt.Errorf("rk4: %v", err)
		}
		if k4, err = f(in); err != nil {
			return nil, fmt.Errorf("rk4: k4: %v", err)
		}

		// k1 + 2k2 + 2k3 + k4
		mid := G.Must(G.Add(k2, k3))
		sum := G.Must(G.Add(G.Must(G.Add(k1, k4)),
			G.Must(G.HadamardProd(two, mid))))
		if x, err = euler(sixth, sum); err != nil {
			return nil, fmt.Errorf("rk4: %v", err)
		}
	}
	return x, nil
}
