package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/config"
	"github.com/Quidge/diffharness/internal/oracle"
	"github.com/Quidge/diffharness/internal/remote"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve composite runs to remote test commands",
	Long: `Accept run requests from "diffharness test" targets naming this host
and execute them with the local harness.

The server also answers validation requests for the "naga" backend by
compiling the program in-process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "127.0.0.1:9000", "address to listen on")
}

// validateNaga serves validation requests for the naga backend.
func validateNaga(_ context.Context, backend, source string) (string, bool, error) {
	if backend != "naga" {
		return "", false, fmt.Errorf("unsupported validation backend %q", backend)
	}
	if _, err := (oracle.Naga{}).Compile(source); err != nil {
		return err.Error(), true, nil
	}
	return "", false, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	address, _ := cmd.Flags().GetString("address")

	merged, err := config.LoadFromCwd(config.FlagOverrides{})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	harnessPath := merged.HarnessPath
	if harnessPath == "" {
		if harnessPath, err = os.Executable(); err != nil {
			return fmt.Errorf("failed to locate harness executable: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	srv := &remote.Server{
		HarnessPath: harnessPath,
		Validate:    validateNaga,
		Logger:      newLogger("serve: "),
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", address)
	return srv.ListenAndServe(ctx, address)
}
