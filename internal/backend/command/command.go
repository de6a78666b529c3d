// Package command implements a driver that delegates to an external
// executable, so implementations written in any language can be plugged
// into the harness.
//
// The executable is invoked in two ways:
//
//	<command> list
//	    prints one adapter per line: "<backend>:<device-id>\t<name>"
//	<command> run <backend>:<device-id>
//	    reads a protocol.Input from stdin, writes a protocol.Output to
//	    stdout and exits 0, or writes a diagnostic to stderr and exits 101
package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/Quidge/diffharness/internal/backend"
	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/protocol"
	"github.com/Quidge/diffharness/internal/reflection"
)

// DriverType is the identifier for this driver type.
const DriverType = "command"

// Driver implements backend.Driver by running an external executable.
type Driver struct {
	implementation harness.Implementation
	command        []string
	env            []string
}

// Ensure Driver implements backend.Driver.
var _ backend.Driver = (*Driver)(nil)

// New creates a new command driver.
func New(cfg backend.DriverConfig) (backend.Driver, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, fmt.Errorf("command driver for %s requires a command", cfg.Implementation)
	}
	return &Driver{
		implementation: cfg.Implementation,
		command:        cfg.Command,
		env:            buildEnv(cfg.Environment),
	}, nil
}

func init() {
	backend.Register(DriverType, New)
}

// buildEnv returns the host environment extended with extra, in a
// deterministic order.
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func (d *Driver) cmd(ctx context.Context, args ...string) *exec.Cmd {
	argv := append(append([]string{}, d.command[1:]...), args...)
	cmd := exec.CommandContext(ctx, d.command[0], argv...)
	cmd.Env = d.env
	return cmd
}

// Adapters runs `<command> list` and parses its output.
func (d *Driver) Adapters(ctx context.Context) ([]harness.Config, error) {
	var stderr bytes.Buffer
	cmd := d.cmd(ctx, "list")
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list adapters: %w\noutput: %s", err, stderr.Bytes())
	}
	return parseAdapters(d.implementation, out)
}

func parseAdapters(impl harness.Implementation, out []byte) ([]harness.Config, error) {
	var configs []harness.Config
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		id, name, _ := strings.Cut(text, "\t")
		backendName, device, ok := strings.Cut(id, ":")
		if !ok {
			return nil, fmt.Errorf("adapter list line %d: expected <backend>:<device-id>, got %q", line, id)
		}
		bt, err := harness.ParseBackendType(backendName)
		if err != nil {
			return nil, fmt.Errorf("adapter list line %d: %w", line, err)
		}
		deviceID, err := strconv.ParseUint(device, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("adapter list line %d: invalid device id %q", line, device)
		}

		configs = append(configs, harness.Config{
			ID: harness.ConfigID{
				Implementation: impl,
				Backend:        bt,
				DeviceID:       uint32(deviceID),
			},
			AdapterName: strings.TrimSpace(name),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

// Run executes the program through `<command> run <backend>:<device-id>`.
func (d *Driver) Run(ctx context.Context, program string, pipeline reflection.PipelineDescription, cfg harness.ConfigID) ([][]byte, error) {
	input, err := protocol.EncodeInput(protocol.Input{Program: program, Pipeline: pipeline})
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := d.cmd(ctx, "run", fmt.Sprintf("%s:%d", cfg.Backend, cfg.DeviceID))
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to start %s: %w", d.command[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	kind, err := protocol.ClassifyWorkerExit(d.command[0], exitCode)
	if err != nil {
		return nil, fmt.Errorf("%w\nstderr: %s", err, stderr.Bytes())
	}
	if kind == protocol.ExitKindFailure {
		return nil, &backend.RunError{Config: cfg, Diagnostic: stderr.String()}
	}

	out, err := protocol.DecodeOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	return out.Buffers, nil
}
