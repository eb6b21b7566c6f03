// Package env is the reinforcement learning environment around a SUMO
// scenario: observations are per lane vehicle counts, actions pick traffic
// light phases and the reward is the mean vehicle speed.
package env

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zeu5/sumo-rl-test/routes"
	"github.com/zeu5/sumo-rl-test/sumo"
	"golang.org/x/exp/rand"
)

var (
	ErrInvalidAction   = errors.New("env: action outside the action space")
	ErrNotStarted      = errors.New("env: step called before reset")
	ErrEpisodeFinished = errors.New("env: episode finished, call reset")
	ErrEmptyScenario   = errors.New("env: scenario has no lanes or no traffic lights")
)

// DefaultRouteFile is where routes are regenerated when none is configured
const DefaultRouteFile = "data/cross.rou.xml"

// Info is the auxiliary information returned by Step
type Info map[string]interface{}

// Env is the call surface a training harness uses
type Env interface {
	Reset(ctx context.Context) (Observation, error)
	Step(action Action) (Observation, float64, bool, Info, error)
	Seed(seed int64) []int64
	ActionSpace() Space
	ObservationSpace() *Box
	Close() error
}

type Config struct {
	Sumo *sumo.Config
	// Routes are regenerated into Sumo.RouteFile before every episode when set
	Routes *routes.Config
	Policy PolicyType
	Phases PhaseMap
	// phase set on every light at reset, east-west green when nil
	InitialPhase *int
	// upper bound of the observation space per lane
	MaxCars int

	// Debug prints the step, action, remaining vehicles and reward every 10 steps
	Debug bool
	Out   io.Writer
}

func (c *Config) SetDefaults() {
	if c.Sumo == nil {
		c.Sumo = &sumo.Config{}
	}
	c.Sumo.SetDefaults()
	if c.Routes != nil && c.Sumo.RouteFile == "" {
		c.Sumo.RouteFile = DefaultRouteFile
	}
	if c.Phases == (PhaseMap{}) {
		c.Phases = CrossPhases
	}
	if c.InitialPhase == nil {
		initial := c.Phases.EastWest
		c.InitialPhase = &initial
	}
	if c.MaxCars == 0 {
		c.MaxCars = 50
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
}

// SumoEnv drives one simulator connection at a time
type SumoEnv struct {
	config   *Config
	scenario *sumo.Scenario

	actionSpace      Space
	observationSpace *Box
	policy           PhasePolicy
	src              rand.Source

	sim      *sumo.Simulation
	curStep  int
	finished bool
}

var _ Env = &SumoEnv{}

// New probes the scenario for its lanes and lights and builds the spaces.
// No simulator connection is kept.
func New(ctx context.Context, config *Config) (*SumoEnv, error) {
	config.SetDefaults()
	if err := config.Sumo.Validate(); err != nil {
		return nil, err
	}
	if config.Routes != nil {
		if err := routes.Generate(config.Routes, config.Sumo.RouteFile); err != nil {
			return nil, err
		}
	}
	scenario, err := sumo.Probe(ctx, config.Sumo)
	if err != nil {
		return nil, fmt.Errorf("env: probing scenario: %w", err)
	}
	if scenario.NumLanes() == 0 || scenario.NumLights() == 0 {
		return nil, ErrEmptyScenario
	}
	fmt.Fprintf(config.Out, "num_lanes: %d    num_lights: %d\n", scenario.NumLanes(), scenario.NumLights())

	e := &SumoEnv{
		config:           config,
		scenario:         scenario,
		observationSpace: NewBox(scenario.NumLanes(), 0, float64(config.MaxCars)),
	}
	if scenario.NumLights() == 1 {
		e.actionSpace = Discrete{N: NumActions}
	} else {
		nvec := make([]int, scenario.NumLights())
		for i := range nvec {
			nvec[i] = NumActions
		}
		e.actionSpace = MultiDiscrete{Nvec: nvec}
	}
	e.src = rand.NewSource(0)
	e.Seed(0)
	e.policy = newPhasePolicy(config.Policy, config.Phases, e.src)
	return e, nil
}

func (e *SumoEnv) ActionSpace() Space {
	return e.actionSpace
}

func (e *SumoEnv) ObservationSpace() *Box {
	return e.observationSpace
}

func (e *SumoEnv) Scenario() *sumo.Scenario {
	return e.scenario
}

// CurrentStep is the number of steps taken in the current episode
func (e *SumoEnv) CurrentStep() int {
	return e.curStep
}

func (e *SumoEnv) Finished() bool {
	return e.finished
}

// Seed reseeds the environment's random source. 0 draws a seed from the clock.
func (e *SumoEnv) Seed(seed int64) []int64 {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e.src.Seed(uint64(seed))
	return []int64{seed}
}

// Reset closes any running episode, regenerates the routes when configured,
// opens a new simulation, sets the initial phase and returns the first observation
func (e *SumoEnv) Reset(ctx context.Context) (Observation, error) {
	e.curStep = 0
	e.finished = false
	if err := e.closeSim(); err != nil {
		return nil, err
	}
	if e.config.Routes != nil {
		if err := routes.Generate(e.config.Routes, e.config.Sumo.RouteFile); err != nil {
			return nil, err
		}
	}

	sim, err := sumo.Open(ctx, e.config.Sumo)
	if err != nil {
		return nil, fmt.Errorf("env: starting simulation: %w", err)
	}
	e.sim = sim

	for _, light := range e.scenario.Lights {
		if err := sim.SetPhase(light, *e.config.InitialPhase); err != nil {
			return nil, e.abort(err)
		}
	}
	if err := sim.Step(); err != nil {
		return nil, e.abort(err)
	}
	obs, err := sim.Observe(e.scenario.Lanes)
	if err != nil {
		return nil, e.abort(err)
	}
	return obs, nil
}

// Step advances one tick, reads the reward and observation of that tick,
// then applies the action so that it takes effect on the next tick
func (e *SumoEnv) Step(action Action) (Observation, float64, bool, Info, error) {
	if e.finished {
		return nil, 0, true, nil, ErrEpisodeFinished
	}
	if e.sim == nil {
		return nil, 0, false, nil, ErrNotStarted
	}
	if !e.actionSpace.Contains(action) {
		return nil, 0, false, nil, fmt.Errorf("%w: %v not in %s", ErrInvalidAction, []int(action), e.actionSpace)
	}
	e.curStep++
	if e.config.Debug && e.curStep%10 == 0 {
		if err := e.printDebug(action); err != nil {
			return nil, 0, false, nil, e.abort(err)
		}
	}

	if err := e.sim.Step(); err != nil {
		return nil, 0, false, nil, e.abort(err)
	}
	reward, err := e.sim.MeanSpeed()
	if err != nil {
		return nil, 0, false, nil, e.abort(err)
	}
	obs, err := e.sim.Observe(e.scenario.Lanes)
	if err != nil {
		return nil, 0, false, nil, e.abort(err)
	}

	if err := e.policy.Apply(e.sim, e.scenario.Lights, action); err != nil {
		return nil, 0, false, nil, e.abort(err)
	}

	finished, err := e.sim.Finished()
	if err != nil {
		return nil, 0, false, nil, e.abort(err)
	}
	if finished {
		e.finished = true
		if err := e.closeSim(); err != nil {
			return obs, reward, true, Info{}, err
		}
	}
	return obs, reward, finished, Info{}, nil
}

func (e *SumoEnv) printDebug(action Action) error {
	expected, err := e.sim.MinExpected()
	if err != nil {
		return err
	}
	speed, err := e.sim.MeanSpeed()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.config.Out, "step %d %v %d %v\n", e.curStep, []int(action), expected, speed)
	return nil
}

// abort releases the simulation after a failed call, the episode cannot continue
func (e *SumoEnv) abort(err error) error {
	e.finished = true
	e.closeSim()
	return err
}

func (e *SumoEnv) closeSim() error {
	if e.sim == nil {
		return nil
	}
	err := e.sim.Close()
	e.sim = nil
	return err
}

// Close releases any live simulation
func (e *SumoEnv) Close() error {
	return e.closeSim()
}
