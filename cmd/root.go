// Package cmd implements the agent's command-line interface using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deepflow.io/agent/internal/config"
)

var (
	configFile string
	mode       string
)

var rootCmd = &cobra.Command{
	Use:     "deepflow-agent",
	Short:   "deepflow-agent captures, aggregates, and ships network observability data",
	Version: "0.1.0",
}

// Execute adds all child commands to rootCmd and runs it. Called once from
// main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/deepflow-agent/agent.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&mode, "mode", "m", "managed", `running mode: "managed" or "standalone"`)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
}

func parseRunningMode(s string) config.RunningMode {
	if s == "standalone" {
		return config.Standalone
	}
	return config.Managed
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
