package history

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/state"
)

var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove a recorded run",
	Long: `Remove a recorded run and its per-configuration outcomes.

The ID can be a prefix if it uniquely identifies a run.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old runs",
	Long: `Remove runs recorded before --older-than ago.

Reductions record one run per candidate, so the history grows quickly
while a reducer is active.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

var pruneOlderThanFlag time.Duration

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThanFlag, "older-than", 7*24*time.Hour, "age of the oldest run to keep")
}

func runRm(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := lookupRun(db, args[0])
	if err != nil {
		return err
	}

	if err := db.DeleteRun(run.ID); err != nil {
		return fmt.Errorf("failed to remove run: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed run %s\n", state.ShortID(run.ID))
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneOlderThanFlag < 0 {
		return fmt.Errorf("--older-than must not be negative")
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.PruneRuns(time.Now().Add(-pruneOlderThanFlag))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", n)
	return nil
}
