// Package server exposes registered environments over a JSON HTTP API so
// that trainers written in other languages can drive them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zeu5/sumo-rl-test/env"
	"github.com/zeu5/sumo-rl-test/sumo"
)

// CreateRequest is the body of POST /v1/envs
type CreateRequest struct {
	EnvID  string `json:"env_id"`
	Policy string `json:"policy"`
	GUI    bool   `json:"gui"`
}

// Factory builds the environment of a create request for instance id
type Factory func(ctx context.Context, id string, req *CreateRequest) (env.Env, error)

// RegistryFactory builds environments from the registry using a copy of
// base. Generated route files and trip outputs are suffixed with the
// instance id so that concurrent instances never share a file.
func RegistryFactory(base *env.Config) Factory {
	return func(ctx context.Context, id string, req *CreateRequest) (env.Env, error) {
		policy, err := env.ParsePolicyType(req.Policy)
		if err != nil {
			return nil, err
		}
		cfg := *base
		cfg.Policy = policy
		if base.Sumo != nil {
			cfg.Sumo = base.Sumo.Copy()
		} else {
			cfg.Sumo = &sumo.Config{}
		}
		cfg.Sumo.GUI = cfg.Sumo.GUI || req.GUI
		if cfg.Routes != nil {
			routeFile := cfg.Sumo.RouteFile
			if routeFile == "" {
				routeFile = env.DefaultRouteFile
			}
			cfg.Sumo.RouteFile = InstanceFile(routeFile, id)
		}
		if cfg.Sumo.TripInfoFile != "" {
			cfg.Sumo.TripInfoFile = InstanceFile(cfg.Sumo.TripInfoFile, id)
		}
		envID := req.EnvID
		if envID == "" {
			envID = env.Name
		}
		return env.Make(ctx, envID, &cfg)
	}
}

// InstanceFile inserts id before the extensions of the file name,
// data/cross.rou.xml becomes data/cross_<id>.rou.xml
func InstanceFile(file, id string) string {
	dir, name := filepath.Split(file)
	stem, ext := name, ""
	if i := strings.Index(name, "."); i > 0 {
		stem, ext = name[:i], name[i:]
	}
	return filepath.Join(dir, stem+"_"+id+ext)
}

type instance struct {
	lock  *sync.Mutex
	envID string
	env   env.Env
}

type Server struct {
	Addr    string
	ctx     context.Context
	server  *http.Server
	router  *gin.Engine
	factory Factory

	lock      *sync.Mutex
	instances map[string]*instance
}

func New(ctx context.Context, addr string, factory Factory) *Server {
	s := &Server{
		Addr:      addr,
		ctx:       ctx,
		factory:   factory,
		lock:      new(sync.Mutex),
		instances: make(map[string]*instance),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	v1 := r.Group("/v1/envs")
	v1.GET("", s.handleList)
	v1.POST("", s.handleCreate)
	v1.GET("/:id/action_space", s.handleActionSpace)
	v1.GET("/:id/observation_space", s.handleObservationSpace)
	v1.POST("/:id/reset", s.handleReset)
	v1.POST("/:id/step", s.handleStep)
	v1.POST("/:id/seed", s.handleSeed)
	v1.DELETE("/:id", s.handleClose)
	s.router = r
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler serves the API without listening, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background until the context is cancelled, live
// environments are closed on shutdown
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("server stopped: %s\n", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
		s.CloseAll()
	}()
}

// CloseAll closes every live environment
func (s *Server) CloseAll() {
	s.lock.Lock()
	instances := s.instances
	s.instances = make(map[string]*instance)
	s.lock.Unlock()
	for _, inst := range instances {
		inst.lock.Lock()
		inst.env.Close()
		inst.lock.Unlock()
	}
}

func (s *Server) get(c *gin.Context) (*instance, bool) {
	s.lock.Lock()
	inst, ok := s.instances[c.Param("id")]
	s.lock.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
		return nil, false
	}
	return inst, true
}

func (s *Server) handleList(c *gin.Context) {
	s.lock.Lock()
	out := make(map[string]string, len(s.instances))
	for id, inst := range s.instances {
		out[id] = inst.envID
	}
	s.lock.Unlock()
	c.JSON(http.StatusOK, gin.H{"all_envs": out})
}

func (s *Server) handleCreate(c *gin.Context) {
	req := &CreateRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	if req.EnvID == "" {
		req.EnvID = env.Name
	}
	if _, err := env.ParsePolicyType(req.Policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := uuid.New().String()
	e, err := s.factory(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.lock.Lock()
	s.instances[id] = &instance{lock: new(sync.Mutex), envID: req.EnvID, env: e}
	s.lock.Unlock()
	c.JSON(http.StatusOK, gin.H{"instance_id": id})
}

// SpaceInfo describes an action or observation space
type SpaceInfo struct {
	Name  string    `json:"name"`
	N     int       `json:"n,omitempty"`
	Nvec  []int     `json:"nvec,omitempty"`
	Shape []int     `json:"shape,omitempty"`
	Low   []float64 `json:"low,omitempty"`
	High  []float64 `json:"high,omitempty"`
}

func actionSpaceInfo(space env.Space) SpaceInfo {
	switch sp := space.(type) {
	case env.Discrete:
		return SpaceInfo{Name: "Discrete", N: sp.N}
	case env.MultiDiscrete:
		return SpaceInfo{Name: "MultiDiscrete", Nvec: sp.Nvec}
	}
	return SpaceInfo{Name: space.String()}
}

func (s *Server) handleActionSpace(c *gin.Context) {
	inst, ok := s.get(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"info": actionSpaceInfo(inst.env.ActionSpace())})
}

func (s *Server) handleObservationSpace(c *gin.Context) {
	inst, ok := s.get(c)
	if !ok {
		return
	}
	box := inst.env.ObservationSpace()
	c.JSON(http.StatusOK, gin.H{"info": SpaceInfo{
		Name:  "Box",
		Shape: []int{box.Shape()},
		Low:   box.Low.RawVector().Data,
		High:  box.High.RawVector().Data,
	}})
}

func (s *Server) handleReset(c *gin.Context) {
	inst, ok := s.get(c)
	if !ok {
		return
	}
	inst.lock.Lock()
	obs, err := inst.env.Reset(c.Request.Context())
	inst.lock.Unlock()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"observation": obs})
}

// StepRequest accepts the action either as a number or as a list of numbers
type StepRequest struct {
	Action json.RawMessage `json:"action"`
}

func (r *StepRequest) parse() (env.Action, error) {
	var single int
	if err := json.Unmarshal(r.Action, &single); err == nil {
		return env.Single(single), nil
	}
	multi := make([]int, 0)
	if err := json.Unmarshal(r.Action, &multi); err != nil {
		return nil, err
	}
	return env.Action(multi), nil
}

func (s *Server) handleStep(c *gin.Context) {
	inst, ok := s.get(c)
	if !ok {
		return
	}
	req := &StepRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	action, err := req.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be an integer or a list of integers"})
		return
	}
	inst.lock.Lock()
	obs, reward, done, info, err := inst.env.Step(action)
	inst.lock.Unlock()
	switch {
	case errors.Is(err, env.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, env.ErrEpisodeFinished), errors.Is(err, env.ErrNotStarted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"observation": obs,
		"reward":      reward,
		"done":        done,
		"info":        info,
	})
}

type seedRequest struct {
	Seed int64 `json:"seed"`
}

func (s *Server) handleSeed(c *gin.Context) {
	inst, ok := s.get(c)
	if !ok {
		return
	}
	req := &seedRequest{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
			return
		}
	}
	inst.lock.Lock()
	seeds := inst.env.Seed(req.Seed)
	inst.lock.Unlock()
	c.JSON(http.StatusOK, gin.H{"seeds": seeds})
}

func (s *Server) handleClose(c *gin.Context) {
	inst, ok := s.get(c)
	if !ok {
		return
	}
	s.lock.Lock()
	delete(s.instances, c.Param("id"))
	s.lock.Unlock()

	inst.lock.Lock()
	err := inst.env.Close()
	inst.lock.Unlock()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// Instances lists the live instance ids, sorted
func (s *Server) Instances() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]string, 0, len(s.instances))
	for id := range s.instances {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
