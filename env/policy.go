package env

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Per light action values
const (
	ActionNorthSouth = 0
	ActionEastWest   = 1
	ActionNoop       = 2
	NumActions       = 3
)

// PhaseMap holds the scenario specific phase indices of the two green phases
type PhaseMap struct {
	NorthSouth int
	EastWest   int
}

// CrossPhases are the phase indices of the single intersection scenario
var CrossPhases = PhaseMap{NorthSouth: 3, EastWest: 2}

// LightController is the part of a running simulation the policies act on
type LightController interface {
	Phase(light string) (int, error)
	SetPhase(light string, phase int) error
	LoopVehicleCount(loop string) (int, error)
}

// PhasePolicy turns the action of a step into phase changes
type PhasePolicy interface {
	Apply(ctl LightController, lights []string, action Action) error
}

type PolicyType int

const (
	// Direct applies the supplied action
	Direct PolicyType = iota
	// Random ignores the action and picks one of the green phases uniformly
	Random
	// RuleBased switches to north-south only when the light's induction
	// loop reports a vehicle
	RuleBased
)

func (p PolicyType) String() string {
	switch p {
	case Random:
		return "random"
	case RuleBased:
		return "rule"
	default:
		return "direct"
	}
}

// ParsePolicyType accepts the policy names and the aliases used by the
// training scripts ("DQN" and "timed")
func ParsePolicyType(s string) (PolicyType, error) {
	switch strings.ToLower(s) {
	case "direct", "dqn", "":
		return Direct, nil
	case "random":
		return Random, nil
	case "rule", "rulebased", "timed":
		return RuleBased, nil
	}
	return Direct, fmt.Errorf("env: unknown policy type %q", s)
}

func newPhasePolicy(t PolicyType, phases PhaseMap, src rand.Source) PhasePolicy {
	switch t {
	case Random:
		return &RandomPhases{Phases: phases, src: src}
	case RuleBased:
		return &RuleBasedPhases{Phases: phases}
	default:
		return &DirectPhases{Phases: phases}
	}
}

// DirectPhases maps 0 to north-south green, 1 to east-west green and 2 to no change
type DirectPhases struct {
	Phases PhaseMap
}

func (d *DirectPhases) Apply(ctl LightController, lights []string, action Action) error {
	for i, light := range lights {
		switch action[i] {
		case ActionNorthSouth:
			if err := ctl.SetPhase(light, d.Phases.NorthSouth); err != nil {
				return err
			}
		case ActionEastWest:
			if err := ctl.SetPhase(light, d.Phases.EastWest); err != nil {
				return err
			}
		}
	}
	return nil
}

// RandomPhases draws one of the two green phases for every light, never the no-op
type RandomPhases struct {
	Phases PhaseMap
	src    rand.Source
}

func (r *RandomPhases) Apply(ctl LightController, lights []string, _ Action) error {
	for _, light := range lights {
		i, ok := sampleuv.NewWeighted([]float64{1, 1}, r.src).Take()
		if !ok {
			continue
		}
		phase := r.Phases.NorthSouth
		if i == 1 {
			phase = r.Phases.EastWest
		}
		if err := ctl.SetPhase(light, phase); err != nil {
			return err
		}
	}
	return nil
}

// RuleBasedPhases only acts while a light shows east-west green. A vehicle
// on the light's induction loop switches it to north-south, otherwise east-west is held.
type RuleBasedPhases struct {
	Phases PhaseMap
}

func (r *RuleBasedPhases) Apply(ctl LightController, lights []string, _ Action) error {
	for _, light := range lights {
		phase, err := ctl.Phase(light)
		if err != nil {
			return err
		}
		if phase != r.Phases.EastWest {
			continue
		}
		n, err := ctl.LoopVehicleCount(light)
		if err != nil {
			return err
		}
		next := r.Phases.EastWest
		if n > 0 {
			next = r.Phases.NorthSouth
		}
		if err := ctl.SetPhase(light, next); err != nil {
			return err
		}
	}
	return nil
}
