package benchmarks

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/zeu5/sumo-rl-test/env"
	"github.com/zeu5/sumo-rl-test/recorder"
	"github.com/zeu5/sumo-rl-test/routes"
	"github.com/zeu5/sumo-rl-test/sumo"
)

// envConfig builds the environment configuration from the command line flags
func envConfig(policy env.PolicyType) *env.Config {
	sumoConfig := &sumo.Config{
		Home:       sumoHome,
		GUI:        gui,
		ConfigFile: scenario,
		RouteFile:  routeFile,
		Seed:       seed,
		External:   external,
		Port:       port,
	}
	if tripInfo {
		sumoConfig.TripInfoFile = path.Join(saveFile, "tripinfo.xml")
	}
	cfg := &env.Config{
		Sumo:   sumoConfig,
		Policy: policy,
		Debug:  debug,
	}
	if routeFile != "" {
		cfg.Routes = routes.CrossScenario(seed)
	}
	return cfg
}

// newRecorder writes episode summaries to <save>/<name>.<ext> and to redis
// when an address was given
func newRecorder(ctx context.Context, name string) (recorder.Recorder, error) {
	format, err := recorder.ParseFormat(traceFormat)
	if err != nil {
		return nil, err
	}
	file, err := recorder.NewFileRecorder(path.Join(saveFile, name+format.Ext()), format)
	if err != nil {
		return nil, err
	}
	if redisAddr == "" {
		return file, nil
	}
	r := recorder.NewRedisRecorder(redisAddr, redisKey)
	if err := r.Ping(ctx); err != nil {
		file.Close()
		r.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", redisAddr, err)
	}
	return recorder.MultiRecorder{file, r}, nil
}

// interruptContext is cancelled on the first interrupt signal, stop releases it
func interruptContext() (context.Context, func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt) // channel for interrupts from os

	doneCh := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sigCh:
		case <-doneCh:
		}
		cancel()
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		close(doneCh)
	}
}
