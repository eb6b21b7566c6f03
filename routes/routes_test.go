package routes

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministic(t *testing.T) {
	for _, seed := range []int64{0, 1, 42, 123456789} {
		dir := t.TempDir()
		first := filepath.Join(dir, "a.rou.xml")
		second := filepath.Join(dir, "b.rou.xml")

		require.NoError(t, Generate(CrossScenario(seed), first))
		require.NoError(t, Generate(CrossScenario(seed), second))

		a, err := os.ReadFile(first)
		require.NoError(t, err)
		b, err := os.ReadFile(second)
		require.NoError(t, err)
		assert.Equal(t, a, b, "seed %d", seed)
	}
}

func TestDifferentSeedsDiffer(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, Write(CrossScenario(1), &a))
	require.NoError(t, Write(CrossScenario(2), &b))
	assert.NotEqual(t, a.String(), b.String())
}

func TestVehicleOrderingPerDirection(t *testing.T) {
	for _, seed := range []int64{3, 42, 99} {
		doc, err := Build(CrossScenario(seed))
		require.NoError(t, err)
		require.NotEmpty(t, doc.Vehicles)

		seen := make(map[string]bool)
		lastDepart := make(map[string]int)
		for _, v := range doc.Vehicles {
			assert.False(t, seen[v.ID], "duplicate id %s", v.ID)
			seen[v.ID] = true

			if last, ok := lastDepart[v.Route]; ok {
				assert.GreaterOrEqual(t, v.Depart, last)
			}
			lastDepart[v.Route] = v.Depart
			assert.True(t, strings.HasPrefix(v.ID, v.Route+"_"))
		}
	}
}

func TestArrivalRatesRoughlyMatch(t *testing.T) {
	doc, err := Build(CrossScenario(42))
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, v := range doc.Vehicles {
		counts[v.Route]++
	}
	// 3600 ticks at 1/10, 1/11 and 1/30
	assert.InDelta(t, 360, counts["right"], 80)
	assert.InDelta(t, 327, counts["left"], 80)
	assert.InDelta(t, 120, counts["down"], 50)
}

func TestWrittenDocumentParses(t *testing.T) {
	var out bytes.Buffer
	cfg := CrossScenario(42)
	cfg.Steps = 100
	require.NoError(t, Write(cfg, &out))

	doc := &Document{}
	require.NoError(t, xml.Unmarshal(out.Bytes(), doc))
	assert.Len(t, doc.VehicleTypes, 2)
	assert.Len(t, doc.Routes, 3)
	assert.Equal(t, "51o 1i 2o 52i", doc.Routes[0].Edges)
	for _, v := range doc.Vehicles {
		if v.Route == "down" {
			assert.Equal(t, "1,0,0", v.Color)
			assert.Equal(t, "typeNS", v.Type)
		} else {
			assert.Empty(t, v.Color)
		}
	}
	// vTypes are written before routes and routes before vehicles
	s := out.String()
	assert.Less(t, strings.Index(s, "<vType"), strings.Index(s, "<route "))
	if len(doc.Vehicles) > 0 {
		assert.Less(t, strings.Index(s, "<route "), strings.Index(s, "<vehicle"))
	}
}

func TestUnknownReferenceRejected(t *testing.T) {
	cfg := CrossScenario(1)
	cfg.Flows = append(cfg.Flows, Flow{Name: "up", Route: "up", VehicleType: "typeNS", Probability: 0.1})
	_, err := Build(cfg)
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestGenerateReportsIOFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	err := Generate(CrossScenario(1), filepath.Join(blocker, "x.rou.xml"))
	assert.Error(t, err)
}

func TestGenerateCreatesMissingFolders(t *testing.T) {
	file := filepath.Join(t.TempDir(), "data", "nested", "cross.rou.xml")
	require.NoError(t, Generate(CrossScenario(1), file))
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
