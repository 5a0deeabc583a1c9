package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hargabyte/carve/internal/config"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .carve/config.yaml with default settings",
	Long: `Initialize writes .carve/config.yaml in the current directory.

The file lists every setting with its default value: extraction toggles,
the range correction window, redaction default targets, batch file patterns,
report format and log level. carve reads the nearest .carve/config.yaml
above the working directory.

Examples:
  carve init          # Initialize in current directory
  carve init --force  # Overwrite an existing config`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	configFile := filepath.Join(cwd, config.ConfigDirName, config.ConfigFileName)
	relPath, _ := filepath.Rel(cwd, configFile)

	_, err = os.Stat(configFile)
	if err == nil {
		if !initForce {
			fmt.Fprintf(cmd.OutOrStdout(), "Already initialized at %s\n", relPath)
			return nil
		}
		if err := os.Remove(configFile); err != nil {
			return fmt.Errorf("removing existing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config path: %w", err)
	}

	if _, err := config.SaveDefault(cwd); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized carve config at %s\n", relPath)
	return nil
}
