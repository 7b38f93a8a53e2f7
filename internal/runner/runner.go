// Package runner orchestrates verification runs across the matrix.
package runner

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gantryci/gantry/internal/annotation"
	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/env"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/output"
	"github.com/gantryci/gantry/internal/trigger"
)

const (
	// minParallelWorkers ensures at least one worker to prevent semaphore
	// deadlock, even if runtime.NumCPU() returns 0 (which can happen in
	// containerized or restricted environments where CPU detection fails).
	minParallelWorkers = 1

	// maxParallelWorkers caps GANTRY_PARALLEL. Environment runs are
	// subprocess-bound; the cap matches the config-level workers bound.
	maxParallelWorkers = config.MaxWorkers
)

// Runner executes matrix environments through a provisioner and collects
// their terminal results into an invocation.
type Runner struct {
	provisioner env.Provisioner
	out         *output.Writer
}

// RunOptions configures execution behavior.
type RunOptions struct {
	// Project is the project name recorded on the invocation.
	Project string

	// Sequential disables the worker pool and runs environments one at a
	// time in matrix order.
	Sequential bool

	// Workers bounds the worker pool. Zero or out-of-range values fall
	// back to GANTRY_PARALLEL, then to the CPU count.
	Workers int
}

// New creates a new Runner.
func New(provisioner env.Provisioner, out *output.Writer) *Runner {
	return &Runner{provisioner: provisioner, out: out}
}

// Run executes the given environments and returns the invocation record.
// A failing environment never stops its siblings: every environment reaches
// a terminal status (passed, failed, or cancelled). Context cancellation
// marks all not-yet-terminal environments cancelled.
func (r *Runner) Run(ctx context.Context, envs []*env.Environment, ev trigger.Event, opts RunOptions) *Invocation {
	inv := &Invocation{
		ID:      uuid.NewString(),
		Project: opts.Project,
		Event:   ev,
		Started: time.Now(),
	}

	if opts.Sequential {
		inv.Results = r.runSequential(ctx, envs)
	} else {
		inv.Results = r.runParallel(ctx, envs, r.workerCount(opts))
	}

	inv.Finished = time.Now()
	return inv
}

// runSequential executes environments one at a time in matrix order.
func (r *Runner) runSequential(ctx context.Context, envs []*env.Environment) []Result {
	results := make([]Result, 0, len(envs))
	for _, e := range envs {
		results = append(results, r.runOne(ctx, e))
	}
	return results
}

// runParallel executes environments concurrently using a bounded worker pool.
//
// Uses a channel-as-semaphore pattern for bounded concurrency: channel
// capacity limits concurrent goroutines. Each worker acquires a slot (send
// to channel) before executing and releases it (receive from channel) when
// done. Results are collected under a mutex and reassembled in matrix order
// so the report and summary are deterministic.
func (r *Runner) runParallel(ctx context.Context, envs []*env.Environment, workers int) []Result {
	var mu sync.Mutex
	var wg sync.WaitGroup
	byName := make(map[string]Result, len(envs))
	sem := make(chan struct{}, workers)

	for _, e := range envs {
		wg.Add(1)
		go func(e *env.Environment) {
			defer wg.Done()

			var res Result
			select {
			case <-ctx.Done():
				// Never acquired a slot; terminal state is still owed.
				res = r.cancelledResult(e)
			case sem <- struct{}{}:
				res = r.runOne(ctx, e)
				<-sem
			}

			mu.Lock()
			byName[e.Name] = res
			mu.Unlock()
		}(e)
	}

	wg.Wait()

	results := make([]Result, 0, len(envs))
	for _, e := range envs {
		results = append(results, byName[e.Name])
	}
	return results
}

// runOne takes a single environment to its terminal result: provision,
// run commands (stopping at the first failing command), scan annotations,
// release the context.
func (r *Runner) runOne(ctx context.Context, e *env.Environment) Result {
	res := Result{Env: e.Name, Kind: e.Kind, Python: e.Python, Started: time.Now()}

	if ctx.Err() != nil {
		r.out.EnvCancelled(e.Name)
		return res.finish(StatusCancelled, nil)
	}

	r.out.EnvStart(e.Name, e.Kind)

	rt, err := r.provisioner.Provision(ctx, e)
	if err != nil {
		if ctx.Err() != nil {
			r.out.EnvCancelled(e.Name)
			return res.finish(StatusCancelled, nil)
		}
		r.out.EnvFailed(e.Name, e.Kind, err)
		return res.finish(StatusFailed, err)
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			r.out.WarningSimple("cleanup of %s failed: %v", e.Name, cerr)
		}
	}()

	var transcript strings.Builder
	var failure error
	cancelled := false

	for _, cmd := range e.ResolvedCommands() {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		start := time.Now()
		out, err := rt.Run(ctx, cmd)
		transcript.WriteString(out)

		cr := CommandResult{Command: cmd, DurationMS: time.Since(start).Milliseconds()}
		if err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			cr.ExitCode = commandExitCode(err)
			res.Commands = append(res.Commands, cr)
			// Remaining commands of this environment are skipped; sibling
			// environments are unaffected.
			failure = errors.EnvError(e.Name, cmd, err.Error())
			break
		}
		res.Commands = append(res.Commands, cr)
	}

	text := transcript.String()
	if rep := annotation.Scan(text); rep.HasAnnotations() {
		res.Annotations = &rep
	}
	if e.Kind == config.KindTest {
		if counts := annotation.ParsePytest(text); counts.Parsed {
			res.Tests = &counts
		}
	}

	switch {
	case cancelled:
		r.out.EnvCancelled(e.Name)
		return res.finish(StatusCancelled, nil)
	case failure != nil:
		r.out.EnvFailed(e.Name, e.Kind, failure)
		return res.finish(StatusFailed, failure)
	default:
		r.out.EnvPassed(e.Name, e.Kind)
		return res.finish(StatusPassed, nil)
	}
}

// cancelledResult records an environment that never started.
func (r *Runner) cancelledResult(e *env.Environment) Result {
	r.out.EnvCancelled(e.Name)
	res := Result{Env: e.Name, Kind: e.Kind, Python: e.Python, Started: time.Now()}
	return res.finish(StatusCancelled, nil)
}

// workerCount returns the worker pool size for this run.
func (r *Runner) workerCount(opts RunOptions) int {
	if opts.Workers >= minParallelWorkers && opts.Workers <= maxParallelWorkers {
		return opts.Workers
	}
	return r.parallelWorkersFromEnv()
}

// defaultWorkerCount returns the default number of parallel workers based on
// CPU count. Always returns at least minParallelWorkers to prevent semaphore
// deadlock.
func defaultWorkerCount() int {
	return max(minParallelWorkers, runtime.NumCPU())
}

// parallelWorkersFromEnv returns the number of parallel workers to use.
// Invalid GANTRY_PARALLEL values (non-numeric, <1, >256) log a warning and
// fall back to runtime.NumCPU(). The result is always at least 1 to prevent
// blocking on semaphore acquisition.
func (r *Runner) parallelWorkersFromEnv() int {
	val := os.Getenv("GANTRY_PARALLEL")
	if val == "" {
		return defaultWorkerCount()
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		r.out.WarningSimple("invalid GANTRY_PARALLEL value %q (not a number), using default", val)
		return defaultWorkerCount()
	}

	if n < minParallelWorkers || n > maxParallelWorkers {
		r.out.WarningSimple("GANTRY_PARALLEL=%d out of range [%d-%d], using default", n, minParallelWorkers, maxParallelWorkers)
		return defaultWorkerCount()
	}

	return n
}

// commandExitCode extracts the process exit code from a command error.
// Non-exit failures (command not found, I/O errors) report 1.
func commandExitCode(err error) int {
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
