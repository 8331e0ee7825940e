// Package commands implements the driftfsctl client CLI.
package commands

import (
	"github.com/driftfs/driftfs/pkg/config"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile      string
	flagHost     string
	flagPort     int
	flagUsername string
	flagOutput   string
)

var rootCmd = &cobra.Command{
	Use:   "driftfsctl",
	Short: "DriftFS client",
	Long: `driftfsctl connects to a DriftFS server and manages the files stored
under your account: list, upload, download, view and delete.

Use "driftfsctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/driftfs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "server host (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "server port (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagUsername, "username", "u", "", "username (prompted when omitted)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "output format for listings: table, json or yaml")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(connectCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// clientConfig resolves the client settings from config file and flags.
func clientConfig() (*config.ClientConfig, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	cc := cfg.Client
	if flagHost != "" {
		cc.Host = flagHost
	}
	if flagPort != 0 {
		cc.Port = flagPort
	}
	return &cc, nil
}
