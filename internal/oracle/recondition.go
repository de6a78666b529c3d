package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Reconditioner rewrites a program so that operations with undefined
// behaviour become well defined before it is executed.
type Reconditioner interface {
	Recondition(ctx context.Context, program string) (string, error)
}

// Identity returns programs unchanged.
type Identity struct{}

// Recondition implements Reconditioner.
func (Identity) Recondition(ctx context.Context, program string) (string, error) {
	return program, nil
}

// CommandReconditioner pipes the program through an external command:
// the program is written to stdin and the rewritten program is read from
// stdout.
type CommandReconditioner struct {
	Command []string
}

// Recondition implements Reconditioner.
func (c CommandReconditioner) Recondition(ctx context.Context, program string) (string, error) {
	if len(c.Command) == 0 {
		return "", errors.New("reconditioner command is empty")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Stdin = strings.NewReader(program)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("reconditioner %s failed: %w\nstderr: %s", c.Command[0], err, stderr.Bytes())
	}
	return stdout.String(), nil
}
