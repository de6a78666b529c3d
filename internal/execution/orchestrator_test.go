package execution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/protocol"
	"github.com/Quidge/diffharness/internal/reflection"
)

const fakeWorkerEnv = "DIFFHARNESS_FAKE_WORKER"

// TestMain lets the test binary act as a worker process. The behaviour
// depends on the configuration it is asked to run:
//
//	wgpu:vulkan:N  echo storage buffer init data padded to size
//	wgpu:metal:N   exit 0 with an undecodable stdout
//	dawn:vulkan:N  exit 101 with a diagnostic
//	dawn:metal:N   hang
//	dawn:dx12:N    exit 7
func TestMain(m *testing.M) {
	if os.Getenv(fakeWorkerEnv) == "1" {
		os.Exit(fakeWorker(os.Args[len(os.Args)-1]))
	}
	os.Exit(m.Run())
}

func fakeWorker(arg string) int {
	cfg, err := harness.ParseConfigID(arg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	in, err := protocol.ReadInput(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return protocol.ExitFailure
	}

	switch {
	case cfg.Implementation == harness.ImplementationWgpu && cfg.Backend == harness.BackendVulkan:
		time.Sleep(20 * time.Millisecond)
		var out protocol.Output
		for _, r := range in.Pipeline.Resources {
			if r.Kind == reflection.ResourceStorageBuffer {
				buf := make([]byte, r.Size)
				copy(buf, r.Init)
				out.Buffers = append(out.Buffers, buf)
			}
		}
		if err := protocol.WriteOutput(os.Stdout, out); err != nil {
			return protocol.ExitFailure
		}
		return protocol.ExitSuccess
	case cfg.Implementation == harness.ImplementationWgpu:
		fmt.Print("not cbor")
		return protocol.ExitSuccess
	case cfg.Backend == harness.BackendVulkan:
		fmt.Fprintf(os.Stderr, "device %d lost", cfg.DeviceID)
		return protocol.ExitFailure
	case cfg.Backend == harness.BackendMetal:
		time.Sleep(time.Minute)
		return protocol.ExitSuccess
	}
	return 7
}

func fakeHost() ExecutableHost {
	return ExecutableHost{
		Path: os.Args[0],
		Args: []string{"-test.run=^$"},
		Env:  []string{fakeWorkerEnv + "=1"},
	}
}

func cfg(impl harness.Implementation, backend harness.BackendType, device uint32) harness.ConfigID {
	return harness.ConfigID{Implementation: impl, Backend: backend, DeviceID: device}
}

func succeeding(n int) []harness.ConfigID {
	var configs []harness.ConfigID
	for i := 0; i < n; i++ {
		configs = append(configs, cfg(harness.ImplementationWgpu, harness.BackendVulkan, uint32(i)))
	}
	return configs
}

func testRequest(configs []harness.ConfigID) Request {
	return Request{
		Program: "@compute @workgroup_size(1) fn main() {}",
		Pipeline: reflection.PipelineDescription{
			Resources: []reflection.Resource{
				{Kind: reflection.ResourceStorageBuffer, Binding: 0, Size: 4, Init: []byte{1, 2, 3, 4}},
			},
		},
		Configs: configs,
	}
}

// recorder collects events; the orchestrator serializes calls into it.
type recorder struct {
	events   []Event
	inFlight int
	maxIn    int
}

func (r *recorder) record(e Event) error {
	r.events = append(r.events, e)
	switch {
	case Terminal(e):
		r.inFlight--
	case isStart(e):
		r.inFlight++
		r.maxIn = max(r.maxIn, r.inFlight)
	}
	return nil
}

func isStart(e Event) bool {
	_, ok := e.(Start)
	return ok
}

func configOf(e Event) harness.ConfigID {
	switch e := e.(type) {
	case Start:
		return e.Config
	case Success:
		return e.Config
	case Failure:
		return e.Config
	case Timeout:
		return e.Config
	}
	return harness.ConfigID{}
}

func TestExecuteLiveness(t *testing.T) {
	configs := succeeding(5)
	configs = append(configs, cfg(harness.ImplementationDawn, harness.BackendVulkan, 9))

	o := &Orchestrator{Host: fakeHost()}
	rec := &recorder{}
	if err := o.Execute(context.Background(), testRequest(configs), rec.record); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for _, c := range configs {
		starts, terminals := 0, 0
		for _, e := range rec.events {
			if configOf(e) != c {
				continue
			}
			if isStart(e) {
				if terminals > 0 {
					t.Errorf("%s: Start after terminal event", c)
				}
				starts++
			} else if Terminal(e) {
				terminals++
			}
		}
		if starts != 1 || terminals != 1 {
			t.Errorf("%s: got %d starts and %d terminal events, want 1 and 1", c, starts, terminals)
		}
	}

	for _, e := range rec.events {
		switch e := e.(type) {
		case Success:
			if len(e.Buffers) != 1 || string(e.Buffers[0]) != "\x01\x02\x03\x04" {
				t.Errorf("%s: unexpected buffers %v", e.Config, e.Buffers)
			}
		case Failure:
			if string(e.Stderr) != "device 9 lost" {
				t.Errorf("%s: Stderr = %q", e.Config, e.Stderr)
			}
		case Timeout:
			t.Errorf("%s: unexpected timeout", e.Config)
		}
	}
}

func TestExecuteParallelismBound(t *testing.T) {
	tests := []struct {
		name        string
		configs     int
		parallelism int
		wantBound   int
	}{
		{"bounded", 6, 2, 2},
		{"serial", 3, 1, 1},
		{"bound above config count", 2, 8, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Orchestrator{Host: fakeHost()}
			req := testRequest(succeeding(tt.configs))
			req.Parallelism = tt.parallelism

			rec := &recorder{}
			if err := o.Execute(context.Background(), req, rec.record); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if rec.maxIn > tt.wantBound {
				t.Errorf("%d executions in flight, bound is %d", rec.maxIn, tt.wantBound)
			}
			if len(rec.events) != 2*tt.configs {
				t.Errorf("expected %d events, got %d", 2*tt.configs, len(rec.events))
			}
		})
	}
}

func TestExecuteDefaults(t *testing.T) {
	defaults := succeeding(2)
	o := &Orchestrator{
		Host:     fakeHost(),
		Defaults: func(context.Context) []harness.ConfigID { return defaults },
	}

	rec := &recorder{}
	if err := o.Execute(context.Background(), testRequest(nil), rec.record); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	first, ok := rec.events[0].(UsingDefaults)
	if !ok {
		t.Fatalf("expected UsingDefaults first, got %#v", rec.events[0])
	}
	if len(first.Configs) != 2 {
		t.Errorf("UsingDefaults listed %v", first.Configs)
	}
	if len(rec.events) != 5 {
		t.Errorf("expected 5 events, got %d", len(rec.events))
	}
}

func TestExecuteNoDefaults(t *testing.T) {
	o := &Orchestrator{
		Host:     ExecutableHost{Path: "/nonexistent/worker"},
		Defaults: func(context.Context) []harness.ConfigID { return nil },
	}

	called := false
	err := o.Execute(context.Background(), testRequest(nil), func(Event) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNoDefaultConfigs) {
		t.Errorf("expected ErrNoDefaultConfigs, got %v", err)
	}
	if called {
		t.Error("callback invoked although nothing ran")
	}
}

func TestExecuteTimeout(t *testing.T) {
	hung := cfg(harness.ImplementationDawn, harness.BackendMetal, 1)
	configs := append(succeeding(1), hung)

	req := testRequest(configs)
	req.Timeout = 2 * time.Second

	o := &Orchestrator{Host: fakeHost()}
	rec := &recorder{}
	start := time.Now()
	if err := o.Execute(context.Background(), req, rec.record); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 30*time.Second {
		t.Errorf("hung worker was not killed, took %s", elapsed)
	}

	var timedOut, succeeded bool
	for _, e := range rec.events {
		switch e := e.(type) {
		case Timeout:
			timedOut = e.Config == hung
		case Success:
			succeeded = true
		}
	}
	if !timedOut || !succeeded {
		t.Errorf("expected a timeout for %s and one success, got %#v", hung, rec.events)
	}
}

func TestExecuteProtocolViolations(t *testing.T) {
	tests := []struct {
		name   string
		config harness.ConfigID
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unrecognised exit code",
			config: cfg(harness.ImplementationDawn, harness.BackendDx12, 0),
			check: func(t *testing.T, err error) {
				var pe *protocol.ProcessError
				if !errors.As(err, &pe) || pe.ExitCode != 7 {
					t.Errorf("expected ProcessError with code 7, got %v", err)
				}
			},
		},
		{
			name:   "undecodable output",
			config: cfg(harness.ImplementationWgpu, harness.BackendMetal, 0),
			check: func(t *testing.T, err error) {
				if !protocol.IsDecodeError(err) {
					t.Errorf("expected DecodeError, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configs := append(succeeding(3), tt.config)
			req := testRequest(configs)
			req.Parallelism = 2

			o := &Orchestrator{Host: fakeHost()}
			rec := &recorder{}
			err := o.Execute(context.Background(), req, rec.record)
			tt.check(t, err)

			// The other goroutine still drains the remaining configs.
			successes := 0
			for _, e := range rec.events {
				if _, ok := e.(Success); ok {
					successes++
				}
			}
			if successes != 3 {
				t.Errorf("expected 3 successes despite the violation, got %d", successes)
			}
		})
	}
}

func TestExecuteSpawnError(t *testing.T) {
	o := &Orchestrator{Host: ExecutableHost{Path: "/nonexistent/worker"}}

	err := o.Execute(context.Background(), testRequest(succeeding(2)), func(Event) error { return nil })
	var pe *protocol.ProcessError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed to start") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestExecuteCallbackError(t *testing.T) {
	boom := errors.New("sink full")

	var (
		mu     sync.Mutex
		starts int
	)
	callback := func(e Event) error {
		mu.Lock()
		defer mu.Unlock()
		if isStart(e) {
			starts++
			if starts == 1 {
				return boom
			}
		}
		return nil
	}

	req := testRequest(succeeding(4))
	req.Parallelism = 2

	o := &Orchestrator{Host: fakeHost()}
	err := o.Execute(context.Background(), req, callback)

	var ce *CallbackError
	if !errors.As(err, &ce) || !errors.Is(err, boom) {
		t.Fatalf("expected CallbackError wrapping %v, got %v", boom, err)
	}
	// The failing goroutine stopped; the other one took the rest.
	if starts != 4 {
		t.Errorf("expected all 4 configs to be started, got %d", starts)
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := testRequest([]harness.ConfigID{cfg(harness.ImplementationDawn, harness.BackendMetal, 0)})

	o := &Orchestrator{Host: fakeHost()}
	err := o.Execute(ctx, req, func(e Event) error {
		if isStart(e) {
			time.AfterFunc(100*time.Millisecond, cancel)
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
