package initwfn

import G "gorgonia.org/gorgonia"

// ConstantConfig configures initializers that set all weights to a
// constant value
type ConstantConfig struct {
	Kind  Type
	Value float64
}

// Type returns the type of the weight initializer created using this
// config
func (c ConstantConfig) Type() Type {
	return c.Kind
}

// Create creates the Gorgonia weight initializer from this
// initializer config
func (c ConstantConfig) Create() G.InitWFn {
	switch c.Value {
	case 0:
		return G.Zeroes()
	case 1:
		return G.Ones()
	}
	return G.ValuesOf(c.Value)
}
