// Package mocks provides shared test doubles for gantry packages.
package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gantryci/gantry/internal/env"
)

// Provisioner implements env.Provisioner for testing.
// Use NewProvisioner() to create instances with a fluent builder API.
type Provisioner struct {
	runtimes map[string]*Runtime
	errs     map[string]error

	// ProvisionFunc is called by Provision when set, overriding the
	// scripted runtimes and errors.
	ProvisionFunc func(ctx context.Context, e *env.Environment) (env.Runtime, error)

	// Provisioning tracking (thread-safe)
	mu          sync.Mutex
	provisioned []string
}

// NewProvisioner creates a new mock provisioner. Environments without a
// scripted runtime get a fresh permissive Runtime that succeeds on every
// command with empty output.
func NewProvisioner() *Provisioner {
	return &Provisioner{
		runtimes: make(map[string]*Runtime),
		errs:     make(map[string]error),
	}
}

// WithRuntime scripts the runtime returned for an environment.
func (p *Provisioner) WithRuntime(envName string, rt *Runtime) *Provisioner {
	p.runtimes[envName] = rt
	return p
}

// WithError scripts a provisioning failure for an environment.
func (p *Provisioner) WithError(envName string, err error) *Provisioner {
	p.errs[envName] = err
	return p
}

// WithProvisionFunc sets the function called by Provision.
func (p *Provisioner) WithProvisionFunc(fn func(ctx context.Context, e *env.Environment) (env.Runtime, error)) *Provisioner {
	p.ProvisionFunc = fn
	return p
}

// Provision implements env.Provisioner.
func (p *Provisioner) Provision(ctx context.Context, e *env.Environment) (env.Runtime, error) {
	p.mu.Lock()
	p.provisioned = append(p.provisioned, e.Name)
	p.mu.Unlock()

	if p.ProvisionFunc != nil {
		return p.ProvisionFunc(ctx, e)
	}
	if err := p.errs[e.Name]; err != nil {
		return nil, err
	}
	if rt, ok := p.runtimes[e.Name]; ok {
		return rt, nil
	}
	return NewRuntime(), nil
}

// Provisioned returns the environment names in provisioning order.
func (p *Provisioner) Provisioned() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]string, len(p.provisioned))
	copy(result, p.provisioned)
	return result
}

// Runtime implements env.Runtime for testing.
// Use NewRuntime() to create instances with a fluent builder API.
type Runtime struct {
	outputs  map[string]string
	failures map[string]error

	// RunFunc is called by Run when set, overriding the scripted outputs
	// and failures.
	RunFunc func(ctx context.Context, command string) (string, error)

	// Execution tracking (thread-safe)
	runCount int32
	closed   int32
	mu       sync.Mutex
	ran      []string
}

// NewRuntime creates a new mock runtime that succeeds on every command
// with empty output.
func NewRuntime() *Runtime {
	return &Runtime{
		outputs:  make(map[string]string),
		failures: make(map[string]error),
	}
}

// WithOutput scripts the captured output for a command.
func (m *Runtime) WithOutput(command, out string) *Runtime {
	m.outputs[command] = out
	return m
}

// WithFailure scripts a failure for a command. Scripted output for the same
// command is still returned, mirroring captured output of a failing process.
func (m *Runtime) WithFailure(command string, err error) *Runtime {
	m.failures[command] = err
	return m
}

// WithRunFunc sets the function called by Run.
func (m *Runtime) WithRunFunc(fn func(ctx context.Context, command string) (string, error)) *Runtime {
	m.RunFunc = fn
	return m
}

// Run implements env.Runtime.
func (m *Runtime) Run(ctx context.Context, command string) (string, error) {
	atomic.AddInt32(&m.runCount, 1)
	m.mu.Lock()
	m.ran = append(m.ran, command)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, command)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.outputs[command], m.failures[command]
}

// Close implements env.Runtime.
func (m *Runtime) Close() error {
	atomic.StoreInt32(&m.closed, 1)
	return nil
}

// Test inspection methods

// RunCount returns the number of times Run was called.
func (m *Runtime) RunCount() int32 {
	return atomic.LoadInt32(&m.runCount)
}

// Ran returns the commands in execution order.
func (m *Runtime) Ran() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.ran))
	copy(result, m.ran)
	return result
}

// Closed reports whether Close was called.
func (m *Runtime) Closed() bool {
	return atomic.LoadInt32(&m.closed) == 1
}
