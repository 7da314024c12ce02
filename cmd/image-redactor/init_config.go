package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menta2k/image-redactor/internal/config"
)

// NewInitConfigCmd creates the init-config command
func NewInitConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a configuration file with default values",
		Long: `init-config writes the default configuration as YAML.

Examples:
  # Create the file in the XDG config directory
  image-redactor init-config

  # Write to a specific path, replacing an existing file
  image-redactor init-config -o ./redactor.yaml -f`,
		Args: cobra.NoArgs,
		RunE: runInitConfigCmd,
	}

	cmd.Flags().StringP("output", "o", config.GetConfigPath(), "Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false, "Overwrite existing configuration file")

	return cmd
}

func runInitConfigCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	if err := config.Default().SaveToFile(outputPath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", outputPath)
	return nil
}
