// Package sumo owns the simulator side of an environment: launching the
// simulator, probing static scenario metadata, and the per tick queries an
// episode needs.
package sumo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeu5/sumo-rl-test/traci"
	"gonum.org/v1/gonum/stat"
)

var ErrNotRunning = errors.New("sumo: simulation is not running")

type State int

const (
	Uninitialized State = iota
	Running
	Closed
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Closed:
		return "CLOSED"
	default:
		return "UNINITIALIZED"
	}
}

// Scenario is the static metadata of a scenario
type Scenario struct {
	Lanes  []string
	Lights []string
	Loops  []string
}

func (s *Scenario) NumLanes() int {
	return len(s.Lanes)
}

func (s *Scenario) NumLights() int {
	return len(s.Lights)
}

// Simulation is a live connection to a simulator. It is the only owner of
// the connection and of the simulator process when one was launched.
type Simulation struct {
	config  *Config
	client  *traci.Client
	process *Process
	state   State
	ticks   int
}

func launch(ctx context.Context, config *Config) (*Simulation, error) {
	c := config.Copy()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{config: c, state: Uninitialized}
	if !c.External {
		binary, err := CheckBinary(c.Home, c.GUI)
		if err != nil {
			return nil, err
		}
		if c.Port == 0 {
			port, err := freePort()
			if err != nil {
				return nil, fmt.Errorf("sumo: picking a port: %w", err)
			}
			c.Port = port
		}
		s.process = NewProcess(binary, c.Args(c.Port))
		if err := s.process.Start(); err != nil {
			return nil, err
		}
	}

	client, err := traci.DialRetry(ctx, c.Addr(), c.ConnectRetries, c.ConnectWait)
	if err != nil {
		if s.process != nil {
			s.process.Stop()
		}
		return nil, s.withLogs(err)
	}
	s.client = client
	s.state = Running
	return s, nil
}

// Open launches (or connects to) a simulator and advances one tick so the
// first observation has state to read
func Open(ctx context.Context, config *Config) (*Simulation, error) {
	s, err := launch(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := s.Step(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Probe reads the static scenario metadata and releases the simulator
func Probe(ctx context.Context, config *Config) (*Scenario, error) {
	s, err := launch(ctx, config)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	lanes, err := s.client.Lane.IDList()
	if err != nil {
		return nil, fmt.Errorf("sumo: listing lanes: %w", err)
	}
	lights, err := s.client.TrafficLight.IDList()
	if err != nil {
		return nil, fmt.Errorf("sumo: listing traffic lights: %w", err)
	}
	loops, err := s.client.InductionLoop.IDList()
	if err != nil {
		return nil, fmt.Errorf("sumo: listing induction loops: %w", err)
	}
	sort.Strings(lanes)
	sort.Strings(lights)
	sort.Strings(loops)
	return &Scenario{Lanes: lanes, Lights: lights, Loops: loops}, nil
}

func (s *Simulation) State() State {
	return s.state
}

// Ticks advanced since the simulation was opened
func (s *Simulation) Ticks() int {
	return s.ticks
}

func (s *Simulation) check() error {
	if s.state != Running {
		return ErrNotRunning
	}
	return nil
}

// Step advances the clock by exactly one tick
func (s *Simulation) Step() error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.client.SimulationStep(0); err != nil {
		return err
	}
	s.ticks++
	return nil
}

// Observe returns the vehicle count of every lane, in the given order
func (s *Simulation) Observe(lanes []string) ([]float64, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]float64, len(lanes))
	for i, l := range lanes {
		n, err := s.client.Lane.LastStepVehicleNumber(l)
		if err != nil {
			return nil, err
		}
		out[i] = float64(n)
	}
	return out, nil
}

// MeanSpeed is the arithmetic mean speed of the vehicles currently in the
// network, 0 when there are none
func (s *Simulation) MeanSpeed() (float64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	ids, err := s.client.Vehicle.IDList()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	speeds := make([]float64, len(ids))
	for i, id := range ids {
		v, err := s.client.Vehicle.Speed(id)
		if err != nil {
			return 0, err
		}
		speeds[i] = v
	}
	return stat.Mean(speeds, nil), nil
}

func (s *Simulation) Phase(light string) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.client.TrafficLight.Phase(light)
}

func (s *Simulation) SetPhase(light string, phase int) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.client.TrafficLight.SetPhase(light, phase)
}

func (s *Simulation) LoopVehicleCount(loop string) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.client.InductionLoop.LastStepVehicleNumber(loop)
}

// MinExpected is the number of vehicles in the network plus the ones yet to depart
func (s *Simulation) MinExpected() (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.client.Simulation.MinExpectedNumber()
}

// Finished reports whether no vehicles remain or are expected
func (s *Simulation) Finished() (bool, error) {
	n, err := s.MinExpected()
	if err != nil {
		return false, err
	}
	return n <= 0, nil
}

// Close releases the connection and waits for the simulator process.
// Closing twice is a no-op.
func (s *Simulation) Close() error {
	if s.state != Running {
		s.state = Closed
		return nil
	}
	s.state = Closed
	err := s.client.Close()
	if s.process != nil {
		if perr := s.process.Shutdown(5 * time.Second); err == nil {
			err = perr
		}
	}
	return s.withLogs(err)
}

// Logs returns the captured simulator output
func (s *Simulation) Logs() (string, string) {
	if s.process == nil {
		return "", ""
	}
	return s.process.GetLogs()
}

// withLogs attaches the simulator's error output to err
func (s *Simulation) withLogs(err error) error {
	if err == nil {
		return nil
	}
	_, stderr := s.Logs()
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err
	}
	return fmt.Errorf("%w\nsimulator output: %s", err, stderr)
}
