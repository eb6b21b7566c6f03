package benchmarks

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/sumo-rl-test/env"
	"github.com/zeu5/sumo-rl-test/recorder"
	"github.com/zeu5/sumo-rl-test/sumo"
	"github.com/zeu5/sumo-rl-test/traci/tracitest"
)

func TestTrainSavesTableAndRecordsEpisodes(t *testing.T) {
	fake, err := tracitest.NewServer(func() *tracitest.World { return tracitest.NewCrossWorld(4, 12) })
	require.NoError(t, err)
	defer fake.Close()

	saveFile = t.TempDir()
	traceFormat = "jsonl"
	redisAddr = ""

	e, err := env.New(context.Background(), &env.Config{
		Sumo: &sumo.Config{
			External:       true,
			Host:           "127.0.0.1",
			Port:           fake.Port(),
			ConnectRetries: 3,
			ConnectWait:    10 * time.Millisecond,
		},
		Out: io.Discard,
	})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, Train(context.Background(), e, TrainConfig{
		Steps:           25,
		MaxEpisodeSteps: 1000,
		EvalEpisodes:    2,
		Alpha:           0.1,
		Gamma:           0.9,
		Epsilon:         0.1,
		Bucket:          5,
		Seed:            123,
		SavePath:        saveFile,
	}))

	_, err = os.Stat(filepath.Join(saveFile, "qtable_"+env.Name+".json"))
	assert.NoError(t, err)

	summaries, err := recorder.ReadFile(filepath.Join(saveFile, "episodes.jsonl"), recorder.JSONL)
	require.NoError(t, err)
	// 10 steps per episode: three training episodes cover 25 steps
	require.Len(t, summaries, 5)
	steps := 0
	for _, s := range summaries[:3] {
		assert.Equal(t, "train", s.Experiment)
		steps += s.Steps
	}
	assert.Equal(t, 25, steps)
	assert.Equal(t, "eval", summaries[3].Experiment)
	assert.True(t, summaries[4].Terminal)
}

func TestRoutesCommandWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cross.rou.xml")
	root := GetRootCommand()
	root.SetArgs([]string{"routes", "--seed", "7", "--steps", "100", "--out", out})
	require.NoError(t, root.Execute())

	bs, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(bs), "<routes>")
}

func TestRootCommandWiring(t *testing.T) {
	root := GetRootCommand()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"sumo", "compare", "routes", "probe", "serve"})
	for _, flag := range []string{"episodes", "horizon", "save", "runs", "gui", "sumo-home", "scenario", "seed", "redis", "trace-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestEnvConfigFromFlags(t *testing.T) {
	saveFile = "out"
	routeFile = "routes.rou.xml"
	tripInfo = true
	gui = true
	defer func() {
		routeFile = ""
		tripInfo = false
		gui = false
	}()
	cfg := envConfig(env.RuleBased)
	assert.Equal(t, env.RuleBased, cfg.Policy)
	assert.True(t, cfg.Sumo.GUI)
	assert.Equal(t, filepath.Join("out", "tripinfo.xml"), cfg.Sumo.TripInfoFile)
	assert.Equal(t, "routes.rou.xml", cfg.Sumo.RouteFile)
	require.NotNil(t, cfg.Routes)
}
