// Package agent defines the interface of off-policy agents
package agent

import (
	"github.com/samuelfneumann/simsac/expreplay"
)

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. In training mode a
// policy may explore, in evaluation mode it acts greedily.
type Policy interface {
	// Act returns batch actions for batch observations. Observations
	// and actions are stored row-major.
	Act(obs []float64, batch int) ([]float64, error)

	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Learner implements a learning algorithm that defines how weights are
// updated from an experience replay buffer.
type Learner interface {
	// Update performs a single update using a batch of batchSize
	// transitions sampled from buffer. The losses of the update are
	// returned by name.
	Update(batchSize int, buffer *expreplay.Buffer) (map[string]float64,
		error)
}

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}
