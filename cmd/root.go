package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/cmd/history"
	_ "github.com/Quidge/diffharness/internal/backend/command" // Register command driver
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "diffharness",
	Short: "Differential testing of shader programs across GPU configurations",
	Long: `diffharness runs one shader program across several (implementation,
backend, adapter) configurations, each in its own worker process, and
compares their storage buffer outputs independently of layout padding.

The test subcommands turn a run into an interestingness predicate for
test case reducers such as creduce or picire.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError makes Execute exit with a specific code. The message, if
// any, has already been printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(history.Cmd)
}

// newLogger returns a stderr logger when --verbose is set and a discarding
// logger otherwise.
func newLogger(prefix string) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, prefix, log.Ltime)
}
