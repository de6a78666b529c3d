package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/backend"
	"github.com/Quidge/diffharness/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available configurations",
	Long: `List every configuration the configured drivers report on this host.

With --defaults, only the configurations used when a run names none are
shown: the first adapter of each (implementation, backend) pair, in
preference order.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Bool("defaults", false, "show the default configuration selection")
}

func runList(cmd *cobra.Command, args []string) error {
	showDefaults, _ := cmd.Flags().GetBool("defaults")

	merged, err := config.LoadFromCwd(config.FlagOverrides{})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	drivers, err := backend.NewSet(merged.Drivers)
	if err != nil {
		return err
	}

	configs, errs := drivers.QueryConfigs(cmd.Context())
	for _, err := range errs {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	out := cmd.OutOrStdout()
	if showDefaults {
		defaults := backend.SelectDefaults(configs)
		if len(defaults) == 0 {
			fmt.Fprintln(out, "No default configurations available.")
			return nil
		}
		for _, id := range defaults {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	if len(configs) == 0 {
		fmt.Fprintln(out, "No configurations found.")
		if len(merged.Drivers) == 0 {
			fmt.Fprintln(out, "Configure drivers in the global config (diffharness config init).")
		}
		return nil
	}

	p := &printer{w: out}
	p.printConfigs(configs)
	return nil
}
