package commands

import (
	"fmt"

	"github.com/driftfs/driftfs/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Write a configuration file populated with default values.

Examples:
  # Write to the default location
  driftfs init

  # Write to a custom path
  driftfs init --config /etc/driftfs/config.yaml

  # Overwrite an existing file
  driftfs init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := config.InitConfig(cfgFile, initForce)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Printf("  2. Start the server with: driftfs start --config %s\n", path)
	return nil
}
