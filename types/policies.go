package types

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

type Policy interface {
	UpdateIteration(int, *Trace)
	NextAction(int, State, []Action) (Action, bool)
	Update(int, State, Action, State)
	Reset()
}

// QLearningPolicy is a tabular epsilon greedy Q-learning policy
type QLearningPolicy struct {
	QTable  map[string]map[string]float64
	alpha   float64
	gamma   float64
	epsilon float64
	src     rand.Source
}

var _ Policy = &QLearningPolicy{}

func NewQLearningPolicy(alpha, gamma, epsilon float64, seed uint64) *QLearningPolicy {
	return &QLearningPolicy{
		QTable:  make(map[string]map[string]float64),
		alpha:   alpha,
		gamma:   gamma,
		epsilon: epsilon,
		src:     rand.NewSource(seed),
	}
}

func (q *QLearningPolicy) Reset() {
	q.QTable = make(map[string]map[string]float64)
}

// SetEpsilon changes the exploration rate, 0 makes the policy greedy
func (q *QLearningPolicy) SetEpsilon(epsilon float64) {
	q.epsilon = epsilon
}

func (q *QLearningPolicy) UpdateIteration(_ int, _ *Trace) {

}

func (q *QLearningPolicy) NextAction(step int, state State, actions []Action) (Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	stateHash := state.Hash()
	if _, ok := q.QTable[stateHash]; !ok {
		q.QTable[stateHash] = make(map[string]float64)
	}
	for _, a := range actions {
		aName := a.Hash()
		if _, ok := q.QTable[stateHash][aName]; !ok {
			q.QTable[stateHash][aName] = 0
		}
	}

	weights := make([]float64, len(actions))
	if rand.New(q.src).Float64() < q.epsilon {
		for i := range weights {
			weights[i] = 1
		}
	} else {
		// uniform over the best actions
		best := math.Inf(-1)
		for _, a := range actions {
			if v := q.QTable[stateHash][a.Hash()]; v > best {
				best = v
			}
		}
		for i, a := range actions {
			if q.QTable[stateHash][a.Hash()] == best {
				weights[i] = 1
			}
		}
	}
	i, ok := sampleuv.NewWeighted(weights, q.src).Take()
	if !ok {
		return nil, false
	}
	return actions[i], true
}

func (q *QLearningPolicy) Update(step int, state State, action Action, nextState State) {
	stateHash := state.Hash()
	actionKey := action.Hash()
	if _, ok := q.QTable[stateHash]; !ok {
		return
	}
	curVal, ok := q.QTable[stateHash][actionKey]
	if !ok {
		return
	}
	max := float64(0)
	if next, ok := q.QTable[nextState.Hash()]; ok && !nextState.Terminal() {
		max = math.Inf(-1)
		for _, val := range next {
			if val > max {
				max = val
			}
		}
		if math.IsInf(max, -1) {
			max = 0
		}
	}
	nextVal := (1-q.alpha)*curVal + q.alpha*(nextState.Reward()+q.gamma*max)
	q.QTable[stateHash][actionKey] = nextVal
}

// Value of the action in the state, 0 when never visited
func (q *QLearningPolicy) Value(state State, action Action) float64 {
	return q.QTable[state.Hash()][action.Hash()]
}

type RandomPolicy struct {
	rand *rand.Rand
}

var _ Policy = &RandomPolicy{}

// NewRandomPolicy seeds from the clock when seed is 0
func NewRandomPolicy(seed uint64) *RandomPolicy {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomPolicy{
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomPolicy) Reset() {

}

func (r *RandomPolicy) UpdateIteration(_ int, _ *Trace) {

}

func (r *RandomPolicy) NextAction(step int, state State, actions []Action) (Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	i := r.rand.Intn(len(actions))
	return actions[i], true
}

func (r *RandomPolicy) Update(_ int, _ State, _ Action, _ State) {}

// ConstantPolicy always picks the action with the configured hash, the
// first available action otherwise
type ConstantPolicy struct {
	ActionHash string
}

var _ Policy = &ConstantPolicy{}

func NewConstantPolicy(actionHash string) *ConstantPolicy {
	return &ConstantPolicy{ActionHash: actionHash}
}

func (c *ConstantPolicy) Reset() {}

func (c *ConstantPolicy) UpdateIteration(_ int, _ *Trace) {}

func (c *ConstantPolicy) NextAction(_ int, _ State, actions []Action) (Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	for _, a := range actions {
		if a.Hash() == c.ActionHash {
			return a, true
		}
	}
	return actions[0], true
}

func (c *ConstantPolicy) Update(_ int, _ State, _ Action, _ State) {}
