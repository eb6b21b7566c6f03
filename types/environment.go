package types

import "context"

// Environment the agent interacts with, one episode at a time
type Environment interface {
	// Reset called at the start of each episode
	Reset(ctx context.Context) (State, error)
	// Step applies the action and returns the resulting state
	Step(Action) (State, error)
}

// State of the system that RL policies observe
type State interface {
	// Indexed by the Hash
	// Should be deterministic
	Hash() string
	// Actions possible from the state
	Actions() []Action
	// Reward received on reaching the state
	Reward() float64
	// Terminal is true once the episode is over
	Terminal() bool
}

// And Action that RL policy can take
type Action interface {
	// Index of the action
	// Should be deterministic
	Hash() string
}
