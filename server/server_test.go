package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/sumo-rl-test/env"
	"github.com/zeu5/sumo-rl-test/routes"
	"github.com/zeu5/sumo-rl-test/sumo"
	"github.com/zeu5/sumo-rl-test/traci/tracitest"
)

func newTestServer(t *testing.T, vehicles int) *Server {
	t.Helper()
	fake, err := tracitest.NewServer(func() *tracitest.World { return tracitest.NewCrossWorld(48, vehicles) })
	require.NoError(t, err)
	t.Cleanup(func() { fake.Close() })

	base := &env.Config{
		Sumo: &sumo.Config{
			External:       true,
			Host:           "127.0.0.1",
			Port:           fake.Port(),
			ConnectRetries: 3,
			ConnectWait:    10 * time.Millisecond,
		},
		Out: io.Discard,
	}
	s := New(context.Background(), "127.0.0.1:0", RegistryFactory(base))
	t.Cleanup(s.CloseAll)
	return s
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	out := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func create(t *testing.T, s *Server) string {
	code, out := do(t, s, http.MethodPost, "/v1/envs", CreateRequest{EnvID: env.Name, Policy: "direct"})
	require.Equal(t, http.StatusOK, code, out)
	id, ok := out["instance_id"].(string)
	require.True(t, ok)
	return id
}

func TestEpisodeOverHTTP(t *testing.T) {
	s := newTestServer(t, 8)
	id := create(t, s)
	assert.Equal(t, []string{id}, s.Instances())

	code, out := do(t, s, http.MethodGet, "/v1/envs/"+id+"/action_space", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Discrete", out["info"].(map[string]interface{})["name"])
	assert.Equal(t, 3.0, out["info"].(map[string]interface{})["n"])

	code, out = do(t, s, http.MethodGet, "/v1/envs/"+id+"/observation_space", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{48.0}, out["info"].(map[string]interface{})["shape"])

	code, out = do(t, s, http.MethodPost, "/v1/envs/"+id+"/seed", map[string]int64{"seed": 42})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{42.0}, out["seeds"])

	code, out = do(t, s, http.MethodPost, "/v1/envs/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["observation"], 48)

	code, _ = do(t, s, http.MethodPost, "/v1/envs/"+id+"/step", map[string]interface{}{"action": 5})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, s, http.MethodPost, "/v1/envs/"+id+"/step", map[string]interface{}{"action": "north"})
	assert.Equal(t, http.StatusBadRequest, code)

	done := false
	steps := 0
	for !done {
		code, out = do(t, s, http.MethodPost, "/v1/envs/"+id+"/step", map[string]interface{}{"action": []int{0}})
		require.Equal(t, http.StatusOK, code, out)
		assert.Len(t, out["observation"], 48)
		assert.GreaterOrEqual(t, out["reward"].(float64), 0.0)
		done = out["done"].(bool)
		steps++
		require.Less(t, steps, 100)
	}
	assert.Equal(t, 6, steps)

	code, _ = do(t, s, http.MethodPost, "/v1/envs/"+id+"/step", map[string]interface{}{"action": 0})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, s, http.MethodDelete, "/v1/envs/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, http.MethodPost, "/v1/envs/"+id+"/reset", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Empty(t, s.Instances())
}

func TestStepBeforeResetConflicts(t *testing.T) {
	s := newTestServer(t, 8)
	id := create(t, s)
	code, _ := do(t, s, http.MethodPost, "/v1/envs/"+id+"/step", map[string]interface{}{"action": 0})
	assert.Equal(t, http.StatusConflict, code)
}

func TestCreateErrors(t *testing.T) {
	s := newTestServer(t, 8)
	code, _ := do(t, s, http.MethodPost, "/v1/envs", CreateRequest{Policy: "greedy"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/v1/envs", CreateRequest{EnvID: "Missing-v0"})
	assert.Equal(t, http.StatusInternalServerError, code)

	failing := New(context.Background(), "", func(context.Context, string, *CreateRequest) (env.Env, error) {
		return nil, errors.New("no simulator")
	})
	code, out := do(t, failing, http.MethodPost, "/v1/envs", CreateRequest{})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "no simulator", out["error"])
}

func TestListInstances(t *testing.T) {
	s := newTestServer(t, 8)
	a := create(t, s)
	b := create(t, s)
	code, out := do(t, s, http.MethodGet, "/v1/envs", nil)
	require.Equal(t, http.StatusOK, code)
	all := out["all_envs"].(map[string]interface{})
	assert.Equal(t, env.Name, all[a])
	assert.Equal(t, env.Name, all[b])
}

func TestStepRequestParse(t *testing.T) {
	a, err := (&StepRequest{Action: json.RawMessage("2")}).parse()
	require.NoError(t, err)
	assert.Equal(t, env.Single(2), a)
	a, err = (&StepRequest{Action: json.RawMessage("[0, 1]")}).parse()
	require.NoError(t, err)
	assert.Equal(t, env.Action{0, 1}, a)
	_, err = (&StepRequest{}).parse()
	assert.Error(t, err)
}

func TestInstancesWriteSeparateRouteFiles(t *testing.T) {
	fake, err := tracitest.NewServer(func() *tracitest.World { return tracitest.NewCrossWorld(4, 20) })
	require.NoError(t, err)
	t.Cleanup(func() { fake.Close() })

	dir := t.TempDir()
	base := &env.Config{
		Sumo: &sumo.Config{
			External:       true,
			Host:           "127.0.0.1",
			Port:           fake.Port(),
			ConnectRetries: 3,
			ConnectWait:    10 * time.Millisecond,
			RouteFile:      filepath.Join(dir, "cross.rou.xml"),
			TripInfoFile:   filepath.Join(dir, "tripinfo.xml"),
		},
		Routes: routes.CrossScenario(7),
		Out:    io.Discard,
	}
	s := New(context.Background(), "127.0.0.1:0", RegistryFactory(base))
	t.Cleanup(s.CloseAll)

	a := create(t, s)
	b := create(t, s)
	for _, id := range []string{a, b} {
		_, err := os.Stat(filepath.Join(dir, "cross_"+id+".rou.xml"))
		assert.NoError(t, err, "route file of %s", id)
	}
	_, err = os.Stat(filepath.Join(dir, "cross.rou.xml"))
	assert.True(t, os.IsNotExist(err))
	// the shared configuration is left untouched
	assert.Equal(t, filepath.Join(dir, "cross.rou.xml"), base.Sumo.RouteFile)
	assert.Equal(t, filepath.Join(dir, "tripinfo.xml"), base.Sumo.TripInfoFile)
}

func TestInstanceFile(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "cross_x1.rou.xml"), InstanceFile(filepath.Join("data", "cross.rou.xml"), "x1"))
	assert.Equal(t, "tripinfo_x1.xml", InstanceFile("tripinfo.xml", "x1"))
	assert.Equal(t, "routes_x1", InstanceFile("routes", "x1"))
}
