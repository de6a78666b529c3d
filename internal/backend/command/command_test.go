package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/Quidge/diffharness/internal/backend"
	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/protocol"
	"github.com/Quidge/diffharness/internal/reflection"
)

const fakeDriverEnv = "DIFFHARNESS_FAKE_DRIVER"

// TestMain lets the test binary double as the external driver executable.
func TestMain(m *testing.M) {
	if os.Getenv(fakeDriverEnv) == "1" {
		os.Exit(fakeDriver(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeDriver(args []string) int {
	switch {
	case len(args) == 1 && args[0] == "list":
		fmt.Println("vulkan:1\tFake GPU")
		fmt.Println()
		fmt.Println("metal:2\tOther GPU")
		return 0
	case len(args) == 2 && args[0] == "run":
		switch args[1] {
		case "vulkan:1":
			in, err := protocol.ReadInput(os.Stdin)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return protocol.ExitFailure
			}
			var out protocol.Output
			for _, r := range in.Pipeline.Resources {
				if r.Kind != reflection.ResourceStorageBuffer {
					continue
				}
				buf := make([]byte, r.Size)
				copy(buf, r.Init)
				out.Buffers = append(out.Buffers, buf)
			}
			if err := protocol.WriteOutput(os.Stdout, out); err != nil {
				return protocol.ExitFailure
			}
			return protocol.ExitSuccess
		case "metal:2":
			fmt.Fprint(os.Stderr, "device lost")
			return protocol.ExitFailure
		}
	}
	return 3
}

func newFakeDriver(t *testing.T) backend.Driver {
	t.Helper()
	d, err := New(backend.DriverConfig{
		Implementation: harness.ImplementationWgpu,
		Type:           DriverType,
		Command:        []string{os.Args[0]},
		Environment:    map[string]string{fakeDriverEnv: "1"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func TestNewRequiresCommand(t *testing.T) {
	if _, err := New(backend.DriverConfig{Implementation: harness.ImplementationDawn}); err == nil {
		t.Error("expected error for missing command")
	}
}

func TestRegistered(t *testing.T) {
	found := false
	for _, typ := range backend.RegisteredTypes() {
		if typ == DriverType {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q in registered driver types", DriverType)
	}
}

func TestAdapters(t *testing.T) {
	configs, err := newFakeDriver(t).Adapters(context.Background())
	if err != nil {
		t.Fatalf("Adapters failed: %v", err)
	}

	want := []harness.Config{
		{ID: harness.ConfigID{Implementation: harness.ImplementationWgpu, Backend: harness.BackendVulkan, DeviceID: 1}, AdapterName: "Fake GPU"},
		{ID: harness.ConfigID{Implementation: harness.ImplementationWgpu, Backend: harness.BackendMetal, DeviceID: 2}, AdapterName: "Other GPU"},
	}
	if len(configs) != len(want) {
		t.Fatalf("expected %d adapters, got %d: %v", len(want), len(configs), configs)
	}
	for i := range want {
		if configs[i] != want[i] {
			t.Errorf("adapter %d = %+v, want %+v", i, configs[i], want[i])
		}
	}
}

func TestParseAdaptersErrors(t *testing.T) {
	tests := []string{
		"vulkan\tmissing device",
		"gl:1\tunknown backend",
		"vulkan:x\tbad device",
	}
	for _, input := range tests {
		if _, err := parseAdapters(harness.ImplementationDawn, []byte(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestRun(t *testing.T) {
	d := newFakeDriver(t)
	pipeline := reflection.PipelineDescription{
		Resources: []reflection.Resource{
			{Kind: reflection.ResourceStorageBuffer, Binding: 0, Size: 4, Init: []byte{1, 2}},
			{Kind: reflection.ResourceUniformBuffer, Binding: 1, Size: 4},
			{Kind: reflection.ResourceStorageBuffer, Binding: 2, Size: 2},
		},
	}
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		cfg := harness.ConfigID{Implementation: harness.ImplementationWgpu, Backend: harness.BackendVulkan, DeviceID: 1}
		buffers, err := d.Run(ctx, "fn main() {}", pipeline, cfg)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(buffers) != 2 {
			t.Fatalf("expected 2 buffers, got %d", len(buffers))
		}
		if string(buffers[0]) != "\x01\x02\x00\x00" || len(buffers[1]) != 2 {
			t.Errorf("unexpected buffers %v", buffers)
		}
	})

	t.Run("failure", func(t *testing.T) {
		cfg := harness.ConfigID{Implementation: harness.ImplementationWgpu, Backend: harness.BackendMetal, DeviceID: 2}
		_, err := d.Run(ctx, "fn main() {}", pipeline, cfg)
		var re *backend.RunError
		if !errors.As(err, &re) {
			t.Fatalf("expected RunError, got %v", err)
		}
		if re.Diagnostic != "device lost" {
			t.Errorf("Diagnostic = %q, want %q", re.Diagnostic, "device lost")
		}
	})

	t.Run("protocol violation", func(t *testing.T) {
		cfg := harness.ConfigID{Implementation: harness.ImplementationWgpu, Backend: harness.BackendDx12, DeviceID: 0}
		_, err := d.Run(ctx, "fn main() {}", pipeline, cfg)
		var pe *protocol.ProcessError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProcessError, got %v", err)
		}
		if pe.ExitCode != 3 {
			t.Errorf("ExitCode = %d, want 3", pe.ExitCode)
		}
	})

	t.Run("missing executable", func(t *testing.T) {
		missing, err := New(backend.DriverConfig{Implementation: harness.ImplementationWgpu, Command: []string{"/nonexistent/driver"}})
		if err != nil {
			t.Fatal(err)
		}
		_, err = missing.Run(ctx, "", pipeline, harness.ConfigID{})
		if err == nil || !strings.Contains(err.Error(), "failed to start") {
			t.Errorf("expected start error, got %v", err)
		}
	})
}

func TestSetOfCommandDrivers(t *testing.T) {
	env := map[string]string{fakeDriverEnv: "1"}
	set, err := backend.NewSet([]backend.DriverConfig{
		{Implementation: harness.ImplementationDawn, Type: DriverType, Command: []string{os.Args[0]}, Environment: env},
		{Implementation: harness.ImplementationWgpu, Type: DriverType, Command: []string{os.Args[0]}, Environment: env},
	})
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}

	configs, errs := set.QueryConfigs(context.Background())
	if len(errs) != 0 {
		t.Fatalf("QueryConfigs errors: %v", errs)
	}
	var ids []string
	for _, c := range configs {
		ids = append(ids, c.ID.String())
	}
	want := []string{"wgpu:metal:2", "wgpu:vulkan:1", "dawn:metal:2", "dawn:vulkan:1"}
	if !slices.Equal(ids, want) {
		t.Errorf("QueryConfigs() = %v, want %v", ids, want)
	}

	var defaults []string
	for _, id := range set.DefaultConfigs(context.Background()) {
		defaults = append(defaults, id.String())
	}
	wantDefaults := []string{"dawn:metal:2", "dawn:vulkan:1", "wgpu:metal:2", "wgpu:vulkan:1"}
	if !slices.Equal(defaults, wantDefaults) {
		t.Errorf("DefaultConfigs() = %v, want %v", defaults, wantDefaults)
	}

	pipeline := reflection.PipelineDescription{Resources: []reflection.Resource{
		{Kind: reflection.ResourceStorageBuffer, Size: 4, Init: []byte{9, 8, 7, 6}},
	}}
	cfg, _ := harness.ParseConfigID("dawn:vulkan:1")
	buffers, err := set.Run(context.Background(), "", pipeline, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(buffers) != 1 || !slices.Equal(buffers[0], []byte{9, 8, 7, 6}) {
		t.Errorf("Run() = %v, want [[9 8 7 6]]", buffers)
	}

	cfg, _ = harness.ParseConfigID("wgpu:metal:2")
	var runErr *backend.RunError
	if _, err := set.Run(context.Background(), "", pipeline, cfg); !errors.As(err, &runErr) || runErr.Diagnostic != "device lost" {
		t.Errorf("expected RunError with diagnostic %q, got %v", "device lost", err)
	}
}
