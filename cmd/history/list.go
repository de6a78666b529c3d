package history

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/state"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded runs",
	Long: `List recorded runs, newest first.

Runs can be filtered by kind (run, test-crash, test-mismatch), by outcome
and by program. By default the 20 most recent runs are shown.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listKindFlag     string
	listOutcomeFlags []string
	listProgramFlag  string
	listLimitFlag    int
)

func init() {
	listCmd.Flags().StringVar(&listKindFlag, "kind", "", "filter by kind")
	listCmd.Flags().StringArrayVar(&listOutcomeFlags, "outcome", nil, "filter by outcome (repeatable)")
	listCmd.Flags().StringVar(&listProgramFlag, "program", "", "filter by program file contents")
	listCmd.Flags().IntVarP(&listLimitFlag, "limit", "n", 20, "maximum number of runs (0 = all)")
}

func runList(cmd *cobra.Command, args []string) error {
	opts := state.ListOptions{
		Kind:  state.RunKind(listKindFlag),
		Limit: listLimitFlag,
	}
	for _, o := range listOutcomeFlags {
		outcome := state.Outcome(o)
		if !state.IsValidOutcome(outcome) {
			return fmt.Errorf("%w: %s", state.ErrInvalidOutcome, o)
		}
		opts.Outcomes = append(opts.Outcomes, outcome)
	}
	if listProgramFlag != "" {
		program, err := readFile(listProgramFlag)
		if err != nil {
			return err
		}
		opts.ProgramHash = state.HashProgram(program)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(opts)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tOUTCOME\tPROGRAM\tCREATED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			state.ShortID(run.ID), run.Kind, run.Outcome, run.ProgramPath, formatTimeAgo(run.CreatedAt))
	}
	w.Flush()

	return nil
}

// formatTimeAgo formats a time as a human-readable relative time.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
