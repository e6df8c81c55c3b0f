package sabotage

import (
	"math/rand"
	"time"
)

// Assignment binds one participant to one sabotage strategy for the
// lifetime of a session. It is immutable after creation.
type Assignment struct {
	Adversary  string    `json:"adversary"`
	Strategy   Strategy  `json:"strategy"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Assign picks one participant and one strategy uniformly at random.
// Returns nil when fewer than two participants are given: a solo
// session has nobody to deceive, so all adversary features stay inert.
func (c *Catalog) Assign(rng *rand.Rand, participants []string) *Assignment {
	if len(participants) < 2 {
		return nil
	}

	strategies := c.Strategies()
	if len(strategies) == 0 {
		return nil
	}

	return &Assignment{
		Adversary:  participants[rng.Intn(len(participants))],
		Strategy:   strategies[rng.Intn(len(strategies))],
		AssignedAt: time.Now(),
	}
}

// InstructionsFor returns the private instruction text when agent is
// the adversary, otherwise "". Repeated calls return the same text;
// once-only injection is the turn runner's responsibility.
func (a *Assignment) InstructionsFor(agent string) string {
	if a == nil || agent != a.Adversary {
		return ""
	}
	return a.Strategy.Instructions
}
