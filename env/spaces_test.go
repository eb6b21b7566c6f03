package env

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func TestDiscrete(t *testing.T) {
	d := Discrete{N: 3}
	assert.True(t, d.Contains(Single(0)))
	assert.True(t, d.Contains(Single(2)))
	assert.False(t, d.Contains(Single(3)))
	assert.False(t, d.Contains(Single(-1)))
	assert.False(t, d.Contains(Action{0, 0}))
	assert.Equal(t, []Action{{0}, {1}, {2}}, d.Enumerate())
	assert.Equal(t, "Discrete(3)", d.String())

	r := rand.New(rand.NewSource(5))
	for i := 0; i < 50; i++ {
		assert.True(t, d.Contains(d.Sample(r)))
	}
}

func TestMultiDiscrete(t *testing.T) {
	m := MultiDiscrete{Nvec: []int{3, 2}}
	assert.True(t, m.Contains(Action{2, 1}))
	assert.False(t, m.Contains(Action{2, 2}))
	assert.False(t, m.Contains(Single(0)))

	all := m.Enumerate()
	assert.Len(t, all, 6)
	assert.Equal(t, Action{0, 0}, all[0])
	assert.Equal(t, Action{2, 1}, all[5])
	seen := make(map[string]bool)
	for _, a := range all {
		assert.True(t, m.Contains(a))
		seen[a.Hash()] = true
	}
	assert.Len(t, seen, 6)

	r := rand.New(rand.NewSource(5))
	for i := 0; i < 50; i++ {
		assert.True(t, m.Contains(m.Sample(r)))
	}
}

func TestBox(t *testing.T) {
	b := NewBox(3, 0, 50)
	assert.Equal(t, 3, b.Shape())
	assert.True(t, b.Contains(Observation{0, 12, 50}))
	assert.False(t, b.Contains(Observation{0, 51, 0}))
	assert.False(t, b.Contains(Observation{0, 1}))
	assert.Equal(t, "Box(3)", b.String())

	v := Observation{1, 2, 3}.Vector()
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, 2.0, v.AtVec(1))
}

func TestSpaceSize(t *testing.T) {
	assert.Equal(t, 3, Discrete{N: 3}.Size())
	assert.Equal(t, 6, MultiDiscrete{Nvec: []int{3, 2}}.Size())
	assert.Equal(t, 0, MultiDiscrete{Nvec: []int{3, 0}}.Size())

	huge := make([]int, 64)
	for i := range huge {
		huge[i] = 3
	}
	assert.Equal(t, math.MaxInt, MultiDiscrete{Nvec: huge}.Size())
}

func TestMultiDiscreteUniform(t *testing.T) {
	m := MultiDiscrete{Nvec: []int{3, 2, 3}}
	assert.Equal(t, []Action{{0, 0, 0}, {1, 1, 1}}, m.Uniform())
	for _, a := range m.Uniform() {
		assert.True(t, m.Contains(a))
	}
	assert.Empty(t, MultiDiscrete{}.Uniform())
}
