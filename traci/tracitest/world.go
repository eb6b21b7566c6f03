package tracitest

import (
	"fmt"
	"sort"
	"sync"
)

// PhaseSet records a phase change issued by a client
type PhaseSet struct {
	Time  int
	Light string
	Phase int
}

// World is the scripted simulator state served to a single connection
type World struct {
	mu sync.Mutex

	Lanes    map[string]int
	Vehicles map[string]float64
	Phases   map[string]int
	Loops    map[string]int
	// vehicles in the network plus the ones waiting to depart
	Expected int
	Time     int

	// Tick is invoked on every simulation step after the clock advanced
	Tick func(w *World)

	PhaseHistory []PhaseSet
	Commands     []byte
	Closed       bool
}

func NewWorld() *World {
	return &World{
		Lanes:        make(map[string]int),
		Vehicles:     make(map[string]float64),
		Phases:       make(map[string]int),
		Loops:        make(map[string]int),
		PhaseHistory: make([]PhaseSet, 0),
		Commands:     make([]byte, 0),
	}
}

// NewCrossWorld builds a single intersection with numLanes lanes, light "0"
// and induction loop "0". Every tick one expected vehicle leaves until none
// remain, the present vehicles drive at 10 m/s.
func NewCrossWorld(numLanes, vehicles int) *World {
	w := NewWorld()
	for i := 0; i < numLanes; i++ {
		w.Lanes[fmt.Sprintf("lane_%02d", i)] = 0
	}
	w.Phases["0"] = 0
	w.Loops["0"] = 0
	w.Expected = vehicles
	w.Tick = DrainTick(10)
	return w
}

// DrainTick removes one expected vehicle per tick and keeps up to three of
// the remaining ones in the network, each occupying one lane
func DrainTick(speed float64) func(w *World) {
	return func(w *World) {
		if w.Expected > 0 {
			w.Expected--
		}
		present := w.Expected
		if present > 3 {
			present = 3
		}
		w.Vehicles = make(map[string]float64)
		for i := 0; i < present; i++ {
			w.Vehicles[fmt.Sprintf("veh_%d", i)] = speed
		}
		lanes := w.LaneIDs()
		for i, l := range lanes {
			if i < present {
				w.Lanes[l] = 1
			} else {
				w.Lanes[l] = 0
			}
		}
	}
}

func (w *World) step() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Time++
	if w.Tick != nil {
		w.Tick(w)
	}
}

// LaneIDs returns the lane ids sorted
func (w *World) LaneIDs() []string {
	return sortedKeys(w.Lanes)
}

// Snapshot helpers for assertions, safe to call while a client is connected

func (w *World) PhaseOf(light string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Phases[light]
}

func (w *World) History() []PhaseSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]PhaseSet, len(w.PhaseHistory))
	copy(out, w.PhaseHistory)
	return out
}

func (w *World) Steps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Time
}

func (w *World) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Closed
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
