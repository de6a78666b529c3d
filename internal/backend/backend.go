// Package backend defines the interface every driver must implement so a
// worker process can execute a program on a configuration. This
// abstraction lets the harness support multiple WebGPU implementations
// (wgpu, Dawn, future ones) behind a uniform interface.
//
// Drivers are only ever invoked inside an isolated worker process; the
// orchestrator never calls them in its own address space.
package backend

import (
	"context"

	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/reflection"
)

// Driver executes programs for one implementation.
//
// Method implementations by driver:
//
//	| Method   | Command                          | Static (tests)     |
//	|----------|----------------------------------|--------------------|
//	| Adapters | `<command> list`                 | Fixed list         |
//	| Run      | `<command> run <backend:device>` | Fixed buffers      |
type Driver interface {
	// Adapters returns the adapters this implementation can use on the
	// current host.
	Adapters(ctx context.Context) ([]harness.Config, error)

	// Run executes program once on cfg and returns the content of every
	// storage buffer in declaration order. An error means the execution
	// itself failed and is reported as a crash.
	Run(ctx context.Context, program string, pipeline reflection.PipelineDescription, cfg harness.ConfigID) ([][]byte, error)
}

// RunError is returned by Driver.Run when the implementation failed. The
// diagnostic is the free-form text reported back to the orchestrator.
type RunError struct {
	Config     harness.ConfigID
	Diagnostic string
}

func (e *RunError) Error() string {
	return e.Diagnostic
}
