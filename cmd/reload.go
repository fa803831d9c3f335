package cmd

import (
	"syscall"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload a running agent's configuration",
	Long:  "Send SIGHUP to the agent process recorded in its pid file, asking it to re-read its config file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		pidFile, err := pidFileFromConfig()
		if err != nil {
			return err
		}
		if err := signalPID(pidFile, syscall.SIGHUP); err != nil {
			exitWithError("failed to signal agent", err)
		}
		cmd.Println("reload signal sent")
		return nil
	},
}
