package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector chooses the indices at which data is sampled from an
// experience replay buffer
type Selector interface {
	// choose selects n indices in [0, size)
	choose(n, size int) []int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly, with replacement
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(seed uint64) Selector {
	return &uniformSelector{rng: rand.New(rand.NewSource(seed))}
}

// choose selects a number of indices at which to draw data from the
// buffer
func (u *uniformSelector) choose(n, size int) []int {
	selected := make([]int, n)
	for i := range selected {
		selected[i] = u.rng.Intn(size)
	}
	return selected
}
