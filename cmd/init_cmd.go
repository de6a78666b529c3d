package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .diffharness.yaml template",
	Long: `Create a .diffharness.yaml template in the current directory.

The template includes commented examples for all project options. Use
--minimal for a template without comments.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "overwrite existing file")
	initCmd.Flags().Bool("minimal", false, "write a template without comments")
}

func runInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	minimal, _ := cmd.Flags().GetBool("minimal")

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	// Check if file already exists
	if !force && config.ProjectConfigExists(cwd) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.ProjectConfigFilename)
	}

	if _, err := config.WriteProjectConfigTemplate(cwd, minimal); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.ProjectConfigFilename)
	return nil
}
