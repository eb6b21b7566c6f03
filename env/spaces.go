package env

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Action holds one phase choice per traffic light, lights ordered by id
type Action []int

// Single builds the action of a one light scenario
func Single(a int) Action {
	return Action{a}
}

func (a Action) Hash() string {
	return fmt.Sprint([]int(a))
}

// Observation holds the vehicle count of every lane, lanes ordered by id
type Observation []float64

func (o Observation) Vector() *mat.VecDense {
	return mat.NewVecDense(len(o), append([]float64{}, o...))
}

// Space describes the valid actions of an environment
type Space interface {
	Contains(Action) bool
	Sample(*rand.Rand) Action
	// Enumerate lists every action, the count grows exponentially with the
	// number of lights
	Enumerate() []Action
	// Size is the number of actions, saturating at math.MaxInt
	Size() int
	String() string
}

// Discrete is the action space of a single light: {0, ..., N-1}
type Discrete struct {
	N int
}

var _ Space = Discrete{}

func (d Discrete) Contains(a Action) bool {
	return len(a) == 1 && a[0] >= 0 && a[0] < d.N
}

func (d Discrete) Sample(r *rand.Rand) Action {
	return Single(r.Intn(d.N))
}

func (d Discrete) Enumerate() []Action {
	out := make([]Action, d.N)
	for i := 0; i < d.N; i++ {
		out[i] = Single(i)
	}
	return out
}

func (d Discrete) Size() int {
	return d.N
}

func (d Discrete) String() string {
	return fmt.Sprintf("Discrete(%d)", d.N)
}

// MultiDiscrete is the action space of several lights, entry i ranges over
// {0, ..., Nvec[i]-1}
type MultiDiscrete struct {
	Nvec []int
}

var _ Space = MultiDiscrete{}

func (m MultiDiscrete) Contains(a Action) bool {
	if len(a) != len(m.Nvec) {
		return false
	}
	for i, v := range a {
		if v < 0 || v >= m.Nvec[i] {
			return false
		}
	}
	return true
}

func (m MultiDiscrete) Sample(r *rand.Rand) Action {
	out := make(Action, len(m.Nvec))
	for i, n := range m.Nvec {
		out[i] = r.Intn(n)
	}
	return out
}

func (m MultiDiscrete) Enumerate() []Action {
	out := []Action{{}}
	for _, n := range m.Nvec {
		next := make([]Action, 0, len(out)*n)
		for _, prefix := range out {
			for v := 0; v < n; v++ {
				a := make(Action, len(prefix), len(prefix)+1)
				copy(a, prefix)
				next = append(next, append(a, v))
			}
		}
		out = next
	}
	return out
}

func (m MultiDiscrete) Size() int {
	size := 1
	for _, n := range m.Nvec {
		if n == 0 {
			return 0
		}
		if size > math.MaxInt/n {
			return math.MaxInt
		}
		size *= n
	}
	return size
}

// Uniform lists the actions that give every light the same value
func (m MultiDiscrete) Uniform() []Action {
	if len(m.Nvec) == 0 {
		return []Action{}
	}
	n := m.Nvec[0]
	for _, v := range m.Nvec[1:] {
		if v < n {
			n = v
		}
	}
	out := make([]Action, n)
	for v := 0; v < n; v++ {
		a := make(Action, len(m.Nvec))
		for i := range a {
			a[i] = v
		}
		out[v] = a
	}
	return out
}

func (m MultiDiscrete) String() string {
	return fmt.Sprintf("MultiDiscrete(%v)", m.Nvec)
}

// Box is a bounded observation space
type Box struct {
	Low  *mat.VecDense
	High *mat.VecDense
}

func NewBox(dim int, low, high float64) *Box {
	l := make([]float64, dim)
	h := make([]float64, dim)
	for i := 0; i < dim; i++ {
		l[i] = low
		h[i] = high
	}
	return &Box{Low: mat.NewVecDense(dim, l), High: mat.NewVecDense(dim, h)}
}

func (b *Box) Shape() int {
	return b.Low.Len()
}

func (b *Box) Contains(o Observation) bool {
	if len(o) != b.Shape() {
		return false
	}
	for i, v := range o {
		if v < b.Low.AtVec(i) || v > b.High.AtVec(i) {
			return false
		}
	}
	return true
}

func (b *Box) String() string {
	return fmt.Sprintf("Box(%d)", b.Shape())
}
