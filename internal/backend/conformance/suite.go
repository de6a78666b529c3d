package conformance

import (
	"bytes"
	"context"
	"testing"

	"github.com/Quidge/diffharness/internal/backend"
	"github.com/Quidge/diffharness/internal/bufcheck"
	"github.com/Quidge/diffharness/internal/harness"
)

// Suite defines all conformance tests for any Driver implementation.
type Suite struct {
	// Driver under test.
	Driver backend.Driver

	// Implementation the driver was configured for.
	Implementation harness.Implementation
}

// Run executes all conformance tests. Execution tests are skipped when the
// driver reports no adapters.
func (s *Suite) Run(t *testing.T) {
	adapters := s.adapters(t)

	t.Run("Adapters", func(t *testing.T) { s.testAdapters(t, adapters) })
	if len(adapters) == 0 {
		t.Log("driver reports no adapters, skipping execution tests")
		return
	}
	t.Run("Execution", func(t *testing.T) { s.testExecution(t, adapters[0].ID) })
	t.Run("Failures", func(t *testing.T) { s.testFailures(t, adapters) })
}

func (s *Suite) adapters(t *testing.T) []harness.Config {
	t.Helper()
	adapters, err := s.Driver.Adapters(t.Context())
	if err != nil {
		t.Fatalf("Adapters() returned error: %v", err)
	}
	return adapters
}

func (s *Suite) testAdapters(t *testing.T, adapters []harness.Config) {
	seen := make(map[harness.ConfigID]bool)
	for _, a := range adapters {
		if a.ID.Implementation != s.Implementation {
			t.Errorf("adapter %s labelled with implementation %s, want %s", a.ID, a.ID.Implementation, s.Implementation)
		}
		if seen[a.ID] {
			t.Errorf("adapter %s reported twice", a.ID)
		}
		seen[a.ID] = true

		parsed, err := harness.ParseConfigID(a.ID.String())
		if err != nil || parsed != a.ID {
			t.Errorf("adapter %s does not round-trip: %v, %v", a.ID, parsed, err)
		}
	}

	t.Run("Stable", func(t *testing.T) {
		again := s.adapters(t)
		if len(again) != len(adapters) {
			t.Fatalf("second Adapters() call returned %d adapters, first returned %d", len(again), len(adapters))
		}
		for i := range again {
			if again[i].ID != adapters[i].ID {
				t.Errorf("adapter %d changed from %s to %s", i, adapters[i].ID, again[i].ID)
			}
		}
	})
}

func (s *Suite) testExecution(t *testing.T, cfg harness.ConfigID) {
	pipeline := EchoPipeline()

	t.Run("OneBufferPerStorageBuffer", func(t *testing.T) {
		buffers, err := s.Driver.Run(t.Context(), EchoProgram, pipeline, cfg)
		if err != nil {
			t.Fatalf("Run() returned error: %v", err)
		}
		if len(buffers) != 2 {
			t.Fatalf("expected 2 buffers, got %d", len(buffers))
		}
		for i, j := range pipeline.StorageBuffers() {
			if size := int(pipeline.Resources[j].Size); len(buffers[i]) < size {
				t.Errorf("buffer %d has %d bytes, resource declares %d", i, len(buffers[i]), size)
			}
		}
		if !bytes.Equal(buffers[0][:len(EchoInit)], EchoInit) {
			t.Errorf("buffer 0 = %v, want initial contents %v", buffers[0][:len(EchoInit)], EchoInit)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		var execs []bufcheck.Execution
		for i := 0; i < 3; i++ {
			buffers, err := s.Driver.Run(t.Context(), EchoProgram, pipeline, cfg)
			if err != nil {
				t.Fatalf("Run() %d returned error: %v", i, err)
			}
			execs = append(execs, bufcheck.Execution{ID: cfg.String(), Buffers: buffers})
		}
		if !bufcheck.AllAgree(execs, pipeline, EchoTypes()) {
			t.Error("repeated executions of the same program disagree")
		}
	})
}

func (s *Suite) testFailures(t *testing.T, adapters []harness.Config) {
	t.Run("UnknownDevice", func(t *testing.T) {
		missing := MissingDevice(adapters[0].ID, adapters)
		if _, err := s.Driver.Run(t.Context(), EchoProgram, EchoPipeline(), missing); err == nil {
			t.Errorf("expected error for unknown device %s", missing)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if _, err := s.Driver.Run(ctx, EchoProgram, EchoPipeline(), adapters[0].ID); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}
