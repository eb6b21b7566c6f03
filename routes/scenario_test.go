package routes

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataDir = "../data"

type netFile struct {
	Edges []struct {
		ID    string `xml:"id,attr"`
		Lanes []struct {
			ID     string  `xml:"id,attr"`
			Length float64 `xml:"length,attr"`
		} `xml:"lane"`
	} `xml:"edge"`
	TLLogics []struct {
		ID     string `xml:"id,attr"`
		Phases []struct {
			State string `xml:"state,attr"`
		} `xml:"phase"`
	} `xml:"tlLogic"`
}

type sumoConfigFile struct {
	Input struct {
		Net struct {
			Value string `xml:"value,attr"`
		} `xml:"net-file"`
		Routes struct {
			Value string `xml:"value,attr"`
		} `xml:"route-files"`
		Additional struct {
			Value string `xml:"value,attr"`
		} `xml:"additional-files"`
	} `xml:"input"`
}

type detectorFile struct {
	Loops []struct {
		ID   string  `xml:"id,attr"`
		Lane string  `xml:"lane,attr"`
		Pos  float64 `xml:"pos,attr"`
	} `xml:"inductionLoop"`
}

func decodeFile(t *testing.T, name string, v interface{}) {
	t.Helper()
	bs, err := os.ReadFile(filepath.Join(dataDir, name))
	require.NoError(t, err)
	require.NoError(t, xml.Unmarshal(bs, v))
}

func TestCrossScenarioFilesAreConsistent(t *testing.T) {
	cfg := &sumoConfigFile{}
	decodeFile(t, "cross.sumocfg", cfg)
	assert.Equal(t, "cross.rou.xml", cfg.Input.Routes.Value)
	require.NotEmpty(t, cfg.Input.Net.Value)
	require.NotEmpty(t, cfg.Input.Additional.Value)

	net := &netFile{}
	decodeFile(t, cfg.Input.Net.Value, net)
	edges := make(map[string]bool)
	lanes := make(map[string]float64)
	for _, e := range net.Edges {
		edges[e.ID] = true
		for _, l := range e.Lanes {
			lanes[l.ID] = l.Length
		}
	}
	for _, r := range CrossScenario(1).Routes {
		for _, e := range strings.Fields(r.Edges) {
			assert.True(t, edges[e], "route %s uses unknown edge %s", r.ID, e)
		}
	}

	// the rule based controller reads loop "0" and switches light "0"
	det := &detectorFile{}
	decodeFile(t, cfg.Input.Additional.Value, det)
	require.Len(t, det.Loops, 1)
	assert.Equal(t, "0", det.Loops[0].ID)
	length, ok := lanes[det.Loops[0].Lane]
	require.True(t, ok, "loop on unknown lane %s", det.Loops[0].Lane)
	assert.Less(t, det.Loops[0].Pos, length)

	require.Len(t, net.TLLogics, 1)
	assert.Equal(t, "0", net.TLLogics[0].ID)
	phases := net.TLLogics[0].Phases
	require.Len(t, phases, 4)
	// phase 2 is east-west green, phase 3 north-south green; links are
	// ordered north, east, south, west
	assert.Equal(t, "rGrG", phases[2].State)
	assert.Equal(t, "GrGr", phases[3].State)
}
