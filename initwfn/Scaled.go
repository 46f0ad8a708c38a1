package initwfn

import G "gorgonia.org/gorgonia"

// ScaledConfig configures the Glorot and He initializers, which draw
// weights with a variance scaled by the fan in and fan out of a layer.
type ScaledConfig struct {
	Kind Type
	Gain float64
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (s ScaledConfig) Type() Type {
	return s.Kind
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (s ScaledConfig) Create() G.InitWFn {
	switch s.Kind {
	case GlorotN:
		return G.GlorotN(s.Gain)
	case HeU:
		return G.HeU(s.Gain)
	case HeN:
		return G.HeN(s.Gain)
	default:
		return G.GlorotU(s.Gain)
	}
}
