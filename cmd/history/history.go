// Package history provides the `diffharness history` command group for
// inspecting recorded runs.
package history

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/config"
	"github.com/Quidge/diffharness/internal/state"
)

// Cmd is the parent command for run history.
var Cmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
	Long: `Inspect the runs and interestingness tests recorded in the state database.

Every "diffharness run" and "diffharness test" invocation is recorded with
its outcome and, for runs, the outcome of each configuration.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(rmCmd)
	Cmd.AddCommand(pruneCmd)
}

// openDB opens the state database configured for the current directory.
func openDB() (*state.DB, error) {
	merged, err := config.LoadFromCwd(config.FlagOverrides{})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := state.Open(merged.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return db, nil
}
