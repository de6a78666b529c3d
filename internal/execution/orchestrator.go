// Package execution runs one program across a set of configurations,
// each in a freshly spawned worker process, and reports the progress as
// a stream of events.
package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"time"

	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/protocol"
	"github.com/Quidge/diffharness/internal/reflection"
)

// ErrNoDefaultConfigs is returned when a request names no configurations
// and no default configuration is available either.
var ErrNoDefaultConfigs = errors.New("no configurations requested and no default configurations available")

// CallbackError wraps an error returned by the event callback.
type CallbackError struct {
	Err error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("event callback failed: %v", e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// Request describes one orchestration call.
type Request struct {
	Program  string
	Pipeline reflection.PipelineDescription

	// Configs to execute; empty means the orchestrator's defaults.
	Configs []harness.ConfigID

	// Timeout bounds each execution. Zero means no limit.
	Timeout time.Duration

	// Parallelism bounds the number of concurrent workers. Zero means one
	// worker per configuration.
	Parallelism int
}

// Orchestrator spawns workers through Host.
type Orchestrator struct {
	Host Host

	// Defaults supplies the configurations used when a request names none.
	Defaults func(ctx context.Context) []harness.ConfigID

	Logger *log.Logger
}

// configCursor hands out each configuration exactly once.
type configCursor struct {
	mu      sync.Mutex
	configs []harness.ConfigID
}

func (c *configCursor) pop() (harness.ConfigID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.configs) == 0 {
		return harness.ConfigID{}, false
	}
	next := c.configs[0]
	c.configs = c.configs[1:]
	return next, true
}

// eventSink serializes calls into the caller's callback.
type eventSink struct {
	mu       sync.Mutex
	callback func(Event) error
}

func (s *eventSink) emit(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callback(e); err != nil {
		return &CallbackError{Err: err}
	}
	return nil
}

func (o *Orchestrator) logger() *log.Logger {
	if o.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return o.Logger
}

// Execute runs req.Program once per configuration and delivers events to
// callback. Calls to callback never overlap.
//
// An error from callback, a worker that cannot be spawned, an exit code
// outside the worker protocol or an undecodable output stops only the
// goroutine that hit it; the others drain the remaining configurations.
// The first such error is returned once every goroutine has finished.
func (o *Orchestrator) Execute(ctx context.Context, req Request, callback func(Event) error) error {
	sink := &eventSink{callback: callback}

	configs := req.Configs
	if len(configs) == 0 {
		if o.Defaults != nil {
			configs = o.Defaults(ctx)
		}
		if len(configs) == 0 {
			return ErrNoDefaultConfigs
		}
		if err := sink.emit(UsingDefaults{Configs: configs}); err != nil {
			return err
		}
	}

	input, err := protocol.EncodeInput(protocol.Input{Program: req.Program, Pipeline: req.Pipeline})
	if err != nil {
		return fmt.Errorf("failed to encode worker input: %w", err)
	}

	workers := len(configs)
	if req.Parallelism > 0 && req.Parallelism < workers {
		workers = req.Parallelism
	}
	o.logger().Printf("executing %d configs with %d workers", len(configs), workers)

	cursor := &configCursor{configs: append([]harness.ConfigID{}, configs...)}
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.work(ctx, cursor, sink, input, req.Timeout); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	// Channel order is the order in which goroutines failed.
	return <-errs
}

// work pulls configurations until the cursor is empty or an error occurs.
func (o *Orchestrator) work(ctx context.Context, cursor *configCursor, sink *eventSink, input []byte, timeout time.Duration) error {
	for {
		cfg, ok := cursor.pop()
		if !ok {
			return nil
		}
		if err := sink.emit(Start{Config: cfg}); err != nil {
			return err
		}
		event, err := o.runWorker(ctx, cfg, input, timeout)
		if err != nil {
			return err
		}
		if err := sink.emit(event); err != nil {
			return err
		}
	}
}

// runWorker spawns one worker and classifies its exit.
func (o *Orchestrator) runWorker(ctx context.Context, cfg harness.ConfigID, input []byte, timeout time.Duration) (Event, error) {
	process := "worker " + cfg.String()

	var stdout, stderr bytes.Buffer
	cmd := o.Host.Command(cfg)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &protocol.ProcessError{Process: process, ExitCode: -1, Err: fmt.Errorf("failed to start: %w", err)}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var err error
	select {
	case err = <-done:
	case <-expired:
		killProcessGroup(cmd)
		<-done
		o.logger().Printf("%s timed out after %s", process, timeout)
		return Timeout{Config: cfg}, nil
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return nil, fmt.Errorf("%s cancelled: %w", process, ctx.Err())
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &protocol.ProcessError{Process: process, ExitCode: -1, Err: err}
		}
		exitCode = exitErr.ExitCode()
	}
	o.logger().Printf("%s exited with code %d after %s", process, exitCode, time.Since(start).Round(time.Millisecond))

	kind, err := protocol.ClassifyWorkerExit(process, exitCode)
	if err != nil {
		return nil, err
	}
	if kind == protocol.ExitKindFailure {
		return Failure{Config: cfg, Stderr: stderr.Bytes()}, nil
	}

	out, err := protocol.DecodeOutput(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", process, err)
	}
	return Success{Config: cfg, Buffers: out.Buffers}, nil
}
