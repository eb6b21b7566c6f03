package env

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Name under which the SUMO environment is registered
const Name = "SumoEnv-v0"

// Constructor builds a registered environment
type Constructor func(ctx context.Context, config *Config) (Env, error)

var (
	registryLock = new(sync.Mutex)
	registry     = make(map[string]Constructor)
)

func init() {
	Register(Name, func(ctx context.Context, config *Config) (Env, error) {
		e, err := New(ctx, config)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}

// Register makes an environment constructible by name, an existing
// registration is replaced
func Register(id string, ctor Constructor) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[id] = ctor
}

// Make instantiates the environment registered under id
func Make(ctx context.Context, id string, config *Config) (Env, error) {
	registryLock.Lock()
	ctor, ok := registry[id]
	registryLock.Unlock()
	if !ok {
		return nil, fmt.Errorf("env: no environment registered as %q", id)
	}
	return ctor(ctx, config)
}

// Registered lists the registered names
func Registered() []string {
	registryLock.Lock()
	defer registryLock.Unlock()
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
