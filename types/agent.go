package types

import (
	"context"
	"errors"
	"time"
)

// DefaultHorizon bounds an episode when no horizon is configured
const DefaultHorizon = 1000

var ErrNoActions = errors.New("types: state offers no actions")

type AgentConfig struct {
	Episodes    int
	Horizon     int
	Policy      Policy
	Environment Environment
	// OnEpisode is invoked by Run after every episode, failed ones included
	OnEpisode func(episode int, trace *Trace, duration time.Duration, err error)
}

// RL Agent configured with the corresponding
// policy and environment
type Agent struct {
	config *AgentConfig
	// collects the traces of the run
	// Only populated if the Run function is invoked
	traces      []*Trace
	policy      Policy
	environment Environment
}

// Instantiates a new Agent
func NewAgent(config *AgentConfig) *Agent {
	if config.Horizon <= 0 {
		config.Horizon = DefaultHorizon
	}
	return &Agent{
		config:      config,
		traces:      make([]*Trace, 0, config.Episodes),
		policy:      config.Policy,
		environment: config.Environment,
	}
}

// Run the agent for the specified number of episodes and horizon
func (a *Agent) Run(ctx context.Context) error {
	for i := 0; i < a.config.Episodes; i++ {
		start := time.Now()
		trace, err := a.RunEpisode(ctx, i)
		if a.config.OnEpisode != nil {
			a.config.OnEpisode(i, trace, time.Since(start), err)
		}
		if err != nil {
			return err
		}
		a.traces = append(a.traces, trace)
	}
	return nil
}

func (a *Agent) Traces() []*Trace {
	return a.traces
}

// RunEpisode runs a single episode until a terminal state or the horizon and
// returns the resulting trace. The trace collected so far is returned with an error.
func (a *Agent) RunEpisode(ctx context.Context, episode int) (*Trace, error) {
	trace := NewTrace()
	state, err := a.environment.Reset(ctx)
	if err != nil {
		return trace, err
	}
	actions := state.Actions()

	for i := 0; i < a.config.Horizon; i++ {
		select {
		case <-ctx.Done():
			return trace, ctx.Err()
		default:
		}
		if state.Terminal() {
			break
		}
		if len(actions) == 0 {
			return trace, ErrNoActions
		}
		nextAction, ok := a.policy.NextAction(i, state, actions)
		if !ok {
			break
		}
		nextState, err := a.environment.Step(nextAction)
		if err != nil {
			return trace, err
		}
		a.policy.Update(i, state, nextAction, nextState)

		trace.Append(i, state, nextAction, nextState)
		state = nextState
		actions = nextState.Actions()
	}
	a.policy.UpdateIteration(episode, trace)

	return trace, nil
}
