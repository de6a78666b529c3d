package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/backend"
	"github.com/Quidge/diffharness/internal/config"
	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/protocol"
)

var workerCmd = &cobra.Command{
	Use:    "worker CONFIG",
	Short:  "Execute one configuration (internal)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker reads an Input message from stdin and writes an Output
// message to stdout. Every failure exits with protocol.ExitFailure and a
// diagnostic on stderr.
func runWorker(cmd *cobra.Command, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panicked: %v", r)
		}
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			err = &exitError{code: protocol.ExitFailure}
		}
	}()

	cfg, err := harness.ParseConfigID(args[0])
	if err != nil {
		return err
	}

	in, err := protocol.ReadInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	merged, err := config.LoadFromCwd(config.FlagOverrides{})
	if err != nil {
		return err
	}

	drivers, err := backend.NewSet(merged.Drivers)
	if err != nil {
		return err
	}

	buffers, err := drivers.Run(cmd.Context(), in.Program, in.Pipeline, cfg)
	if err != nil {
		return err
	}

	return protocol.WriteOutput(cmd.OutOrStdout(), protocol.Output{Buffers: buffers})
}
