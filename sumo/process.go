package sumo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Process is a simulator child process
type Process struct {
	Binary string
	Args   []string

	process *exec.Cmd
	ctx     context.Context
	cancel  context.CancelFunc
	exited  chan error

	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func NewProcess(binary string, args []string) *Process {
	return &Process{
		Binary: binary,
		Args:   args,
		cancel: func() {},
	}
}

func (p *Process) create() {
	ctx, cancel := context.WithCancel(context.Background())
	p.process = exec.CommandContext(ctx, p.Binary, p.Args...)
	p.ctx = ctx
	p.cancel = cancel

	if p.stdout == nil {
		p.stdout = new(bytes.Buffer)
	}
	if p.stderr == nil {
		p.stderr = new(bytes.Buffer)
	}
	p.process.Stdout = p.stdout
	p.process.Stderr = p.stderr
}

// Start launches the process, returns an error if already started
func (p *Process) Start() error {
	if p.ctx != nil || p.process != nil {
		return errors.New("sumo: process already started")
	}
	p.create()
	if err := p.process.Start(); err != nil {
		p.reset()
		return fmt.Errorf("sumo: starting %s: %w", p.Binary, err)
	}
	p.exited = make(chan error, 1)
	go func(cmd *exec.Cmd, exited chan error) {
		exited <- cmd.Wait()
	}(p.process, p.exited)
	return nil
}

// Shutdown waits up to grace for the process to exit on its own, which it
// does after a TraCI close, and kills it otherwise
func (p *Process) Shutdown(grace time.Duration) error {
	if p.ctx == nil || p.process == nil {
		p.reset()
		return nil
	}
	var err error
	select {
	case err = <-p.exited:
	case <-time.After(grace):
		p.cancel()
		err = <-p.exited
		if err != nil && err.Error() == "signal: killed" {
			err = nil
		}
	}
	p.cancel()
	p.reset()
	if err != nil {
		return fmt.Errorf("sumo: process exited: %w", err)
	}
	return nil
}

// Stop kills the process immediately
func (p *Process) Stop() error {
	return p.Shutdown(0)
}

func (p *Process) reset() {
	p.ctx = nil
	p.cancel = func() {}
	p.process = nil
}

func (p *Process) Running() bool {
	return p.process != nil
}

func (p *Process) GetLogs() (string, string) {
	if p.stdout == nil || p.stderr == nil {
		return "", ""
	}
	return p.stdout.String(), p.stderr.String()
}
