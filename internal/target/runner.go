package target

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
)

// RemoteClient runs a composite invocation on a remote harness server and
// returns its exit code and output lines.
type RemoteClient interface {
	RunHarness(ctx context.Context, address string, inv Invocation) (exitCode int, lines []string, err error)
}

// Runner executes composite runs on targets.
type Runner struct {
	Remote RemoteClient

	// Logger receives every harness output line as it is produced.
	Logger *log.Logger
}

// Run executes program on t and classifies the outcome.
func (r *Runner) Run(ctx context.Context, t Target, program, metadataPath string) (Result, error) {
	inv := Invocation{Program: program, MetadataPath: metadataPath, Configs: t.Configs}

	var (
		code  int
		lines []string
		err   error
	)
	switch h := t.Harness.(type) {
	case LocalHarness:
		code, lines, err = RunLocal(ctx, h.Path, inv, r.logLine)
	case RemoteHarness:
		if r.Remote == nil {
			return nil, fmt.Errorf("no remote client configured for %s", h.Address)
		}
		code, lines, err = r.Remote.RunHarness(ctx, h.Address, inv)
		for _, line := range lines {
			r.logLine(line)
		}
	default:
		return nil, fmt.Errorf("unsupported harness %v", t.Harness)
	}
	if err != nil {
		return nil, err
	}
	return Classify(code, lines)
}

func (r *Runner) logLine(line string) {
	if r.Logger != nil {
		r.Logger.Println(line)
	}
}

// RunLocal spawns the harness at path for inv, writes the program to its
// stdin and collects stdout and stderr lines in arrival order. onLine, if
// non-nil, is called for every line as it arrives.
func RunLocal(ctx context.Context, path string, inv Invocation, onLine func(string)) (int, []string, error) {
	cmd := exec.CommandContext(ctx, path, inv.Args()...)
	cmd.Stdin = strings.NewReader(inv.Program)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, nil, err
	}
	if err := cmd.Start(); err != nil {
		return 0, nil, fmt.Errorf("failed to start harness %s: %w", path, err)
	}

	lineCh := make(chan string)
	var wg sync.WaitGroup
	for _, pipe := range []io.Reader{stdout, stderr} {
		wg.Add(1)
		go func(pipe io.Reader) {
			defer wg.Done()
			scanner := bufio.NewScanner(pipe)
			scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
			for scanner.Scan() {
				lineCh <- scanner.Text()
			}
			_, _ = io.Copy(io.Discard, pipe)
		}(pipe)
	}
	go func() {
		wg.Wait()
		close(lineCh)
	}()

	var lines []string
	for line := range lineCh {
		if onLine != nil {
			onLine(line)
		}
		lines = append(lines, line)
	}

	err = cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, lines, fmt.Errorf("harness %s: %w", path, err)
		}
		if exitErr.ExitCode() < 0 {
			return 0, lines, fmt.Errorf("failed to get harness exit code: %w", err)
		}
		return exitErr.ExitCode(), lines, nil
	}
	return 0, lines, nil
}
