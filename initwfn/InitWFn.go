// Package initwfn wraps Gorgonia weight initializers so that they can be
// created by name.
package initwfn

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of InitWFn that are available.
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Zeroes   Type = "Zeroes"
	Ones     Type = "Ones"
	Constant Type = "Constant"
)

// InitWFn wraps a Gorgonia InitWFn together with the configuration
// that created it
type InitWFn struct {
	initWFn G.InitWFn
	Type
	Config
}

// New returns a new InitWFn of type t. The gain is used by the scaled
// initializers and is the value of Constant initializers.
func New(t Type, gain float64) (*InitWFn, error) {
	config, err := newConfig(t, gain)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	return newInitWFn(config), nil
}

// newConfig returns the Config for type t
func newConfig(t Type, gain float64) (Config, error) {
	switch t {
	case GlorotU, GlorotN, HeU, HeN:
		return ScaledConfig{Kind: t, Gain: gain}, nil
	case Zeroes:
		return ConstantConfig{Kind: t, Value: 0}, nil
	case Ones:
		return ConstantConfig{Kind: t, Value: 1}, nil
	case Constant:
		return ConstantConfig{Kind: t, Value: gain}, nil
	}
	return nil, fmt.Errorf("newConfig: no such initializer type %v", t)
}

// newInitWFn returns a new InitWFn
func newInitWFn(c Config) *InitWFn {
	return &InitWFn{initWFn: c.Create(), Type: c.Type(), Config: c}
}

// InitWFn returns the wrapped Gorgonia InitWFn
func (i *InitWFn) InitWFn() G.InitWFn {
	return i.initWFn
}

// String implements the fmt.Stringer interface
func (i *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", i.Type, i.Config)
}

// Config implements a Gorgonia InitWFn configuration and can be used to
// create the described Gorgonia InitWFn's.
type Config interface {
	// Create returns the Gorgonia InitWFn that the Config describes
	Create() G.InitWFn

	// Type returns the type of Gorgonia InitWFn that is returned
	Type() Type
}
