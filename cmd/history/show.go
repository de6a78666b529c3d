package history

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/state"
	"github.com/Quidge/diffharness/internal/target"
)

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a recorded run",
	Long: `Show a recorded run and the outcome of each of its configurations.

The ID can be a prefix if it uniquely identifies a run.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showOutputFlag bool

func init() {
	showCmd.Flags().BoolVar(&showOutputFlag, "output", false, "print canonical outputs")
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := lookupRun(db, args[0])
	if err != nil {
		return err
	}

	execs, err := db.ListExecutions(run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %s\n", run.ID)
	fmt.Fprintf(out, "Kind:     %s\n", run.Kind)
	fmt.Fprintf(out, "Outcome:  %s\n", run.Outcome)
	fmt.Fprintf(out, "Program:  %s\n", run.ProgramPath)
	fmt.Fprintf(out, "Hash:     %s\n", run.ProgramHash)
	if run.MetadataPath != "" {
		fmt.Fprintf(out, "Metadata: %s\n", run.MetadataPath)
	}
	fmt.Fprintf(out, "Created:  %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(out, "Duration: %s\n", run.FinishedAt.Sub(run.CreatedAt))
	}
	if run.Detail != "" {
		fmt.Fprintf(out, "Detail:   %s\n", run.Detail)
	}

	if len(execs) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONFIG\tOUTCOME\tDURATION")
	for _, e := range execs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Config, e.Outcome, e.Duration)
	}
	w.Flush()

	for _, e := range execs {
		switch {
		case e.Outcome == state.ExecutionFailure && e.Diagnostic != "":
			fmt.Fprintf(out, "\n%s:\n%s\n", e.Config, strings.TrimRight(e.Diagnostic, "\n"))
		case showOutputFlag && e.Outcome == state.ExecutionSuccess:
			fmt.Fprintf(out, "\n%s: %s\n", e.Config, target.FormatBytes(e.Output))
		}
	}

	return nil
}
