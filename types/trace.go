package types

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Trace of an episode as triplets (state, action, nextState)
type Trace struct {
	states     []State
	actions    []Action
	nextStates []State
	rewards    []float64
}

func NewTrace() *Trace {
	return &Trace{
		states:     make([]State, 0),
		actions:    make([]Action, 0),
		nextStates: make([]State, 0),
		rewards:    make([]float64, 0),
	}
}

func (t *Trace) Slice(from, to int) *Trace {
	slicedTrace := NewTrace()
	for i := from; i < to; i++ {
		slicedTrace.Append(i-from, t.states[i], t.actions[i], t.nextStates[i])
	}
	return slicedTrace
}

func (t *Trace) Append(step int, state State, action Action, nextState State) {
	t.states = append(t.states, state)
	t.actions = append(t.actions, action)
	t.nextStates = append(t.nextStates, nextState)
	t.rewards = append(t.rewards, nextState.Reward())
}

func (t *Trace) Len() int {
	return len(t.states)
}

func (t *Trace) Get(i int) (State, Action, State, bool) {
	if i < 0 || i >= len(t.states) {
		return nil, nil, nil, false
	}
	return t.states[i], t.actions[i], t.nextStates[i], true
}

func (t *Trace) Last() (State, Action, State, bool) {
	if len(t.states) < 1 {
		return nil, nil, nil, false
	}
	lastIndex := len(t.states) - 1
	return t.states[lastIndex], t.actions[lastIndex], t.nextStates[lastIndex], true
}

func (t *Trace) GetPrefix(i int) (*Trace, bool) {
	if i > len(t.states) {
		return nil, false
	}
	return &Trace{
		states:     t.states[0:i],
		actions:    t.actions[0:i],
		nextStates: t.nextStates[0:i],
		rewards:    t.rewards[0:i],
	}, true
}

// Rewards received after every step
func (t *Trace) Rewards() []float64 {
	return t.rewards
}

func (t *Trace) TotalReward() float64 {
	return floats.Sum(t.rewards)
}

// RewardStats returns the mean and standard deviation of the step rewards,
// zero for an empty trace
func (t *Trace) RewardStats() (float64, float64) {
	switch len(t.rewards) {
	case 0:
		return 0, 0
	case 1:
		return t.rewards[0], 0
	}
	return stat.MeanStdDev(t.rewards, nil)
}

// Terminal is true when the episode ended in a terminal state
func (t *Trace) Terminal() bool {
	_, _, last, ok := t.Last()
	return ok && last.Terminal()
}

// ActionHashes lists the hash of every action taken
func (t *Trace) ActionHashes() []string {
	out := make([]string, len(t.actions))
	for i, a := range t.actions {
		out[i] = a.Hash()
	}
	return out
}
