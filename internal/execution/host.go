package execution

import (
	"os"
	"os/exec"

	"github.com/Quidge/diffharness/internal/harness"
)

// Host creates the command for one isolated execution. The returned
// command must not have been started; the orchestrator owns its standard
// streams and its lifetime.
type Host interface {
	Command(cfg harness.ConfigID) *exec.Cmd
}

// ExecutableHost runs `<Path> <Args...> <config-id>` for every execution.
type ExecutableHost struct {
	Path string
	Args []string

	// Env is appended to the current environment when non-empty.
	Env []string
}

// Command implements Host.
func (h ExecutableHost) Command(cfg harness.ConfigID) *exec.Cmd {
	args := append(append([]string{}, h.Args...), cfg.String())
	cmd := exec.Command(h.Path, args...)
	if len(h.Env) > 0 {
		cmd.Env = append(os.Environ(), h.Env...)
	}
	return cmd
}

// SelfHost re-executes the running binary as `<self> worker <config-id>`.
func SelfHost() (ExecutableHost, error) {
	self, err := os.Executable()
	if err != nil {
		return ExecutableHost{}, err
	}
	return ExecutableHost{Path: self, Args: []string{"worker"}}, nil
}
