package env

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/zeu5/sumo-rl-test/types"
)

// GymState is the observation of a step seen through the experiment harness
type GymState struct {
	Observation Observation
	reward      float64
	done        bool
	actions     []types.Action
	bucket      int
}

var _ types.State = &GymState{}

// Hash caps every lane count at the bucket size so that the tabular
// policies see a bounded state space
func (s *GymState) Hash() string {
	parts := lo.Map(s.Observation, func(v float64, _ int) string {
		n := int(v)
		if s.bucket > 0 && n > s.bucket {
			n = s.bucket
		}
		return strconv.Itoa(n)
	})
	return strings.Join(parts, ",")
}

func (s *GymState) Actions() []types.Action {
	if s.done {
		return []types.Action{}
	}
	return s.actions
}

func (s *GymState) Reward() float64 {
	return s.reward
}

func (s *GymState) Terminal() bool {
	return s.done
}

// GymAction wraps an environment action for the harness
type GymAction struct {
	Action Action
}

var _ types.Action = &GymAction{}

func (a *GymAction) Hash() string {
	return a.Action.Hash()
}

// MaxJointActions bounds the joint action set offered to the tabular
// policies, six lights with three choices each
const MaxJointActions = 729

// GymEnvironment adapts an Env to the experiment harness
type GymEnvironment struct {
	env     Env
	bucket  int
	shared  bool
	actions []types.Action
}

var _ types.Environment = &GymEnvironment{}

// NewGymEnvironment computes the action set once, bucket caps the lane
// counts in the state hash (0 disables the cap). Joint action spaces larger
// than MaxJointActions are replaced by shared control where every light
// receives the same choice.
func NewGymEnvironment(e Env, bucket int) *GymEnvironment {
	space := e.ActionSpace()
	var all []Action
	shared := false
	if m, ok := space.(MultiDiscrete); ok && m.Size() > MaxJointActions {
		all = m.Uniform()
		shared = true
	} else {
		all = space.Enumerate()
	}
	actions := lo.Map(all, func(a Action, _ int) types.Action {
		return &GymAction{Action: a}
	})
	return &GymEnvironment{env: e, bucket: bucket, shared: shared, actions: actions}
}

// Shared is true when every light is driven by the same choice
func (g *GymEnvironment) Shared() bool {
	return g.shared
}

// Actions available in every non terminal state
func (g *GymEnvironment) Actions() []types.Action {
	return g.actions
}

func (g *GymEnvironment) Reset(ctx context.Context) (types.State, error) {
	obs, err := g.env.Reset(ctx)
	if err != nil {
		return nil, err
	}
	return g.state(obs, 0, false), nil
}

func (g *GymEnvironment) Step(a types.Action) (types.State, error) {
	ga, ok := a.(*GymAction)
	if !ok {
		return nil, errors.New("env: action was not produced by this environment")
	}
	obs, reward, done, _, err := g.env.Step(ga.Action)
	if err != nil {
		return nil, err
	}
	return g.state(obs, reward, done), nil
}

// Env returns the wrapped environment
func (g *GymEnvironment) Env() Env {
	return g.env
}

func (g *GymEnvironment) state(obs Observation, reward float64, done bool) *GymState {
	return &GymState{
		Observation: obs,
		reward:      reward,
		done:        done,
		actions:     g.actions,
		bucket:      g.bucket,
	}
}
