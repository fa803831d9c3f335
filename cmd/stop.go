package cmd

import (
	"syscall"

	"github.com/spf13/cobra"

	"deepflow.io/agent/internal/config"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running agent",
	Long:  "Send SIGTERM to the agent process recorded in its pid file, asking it to shut down gracefully.",
	RunE: func(cmd *cobra.Command, args []string) error {
		pidFile, err := pidFileFromConfig()
		if err != nil {
			return err
		}
		if err := signalPID(pidFile, syscall.SIGTERM); err != nil {
			exitWithError("failed to signal agent", err)
		}
		cmd.Println("stop signal sent")
		return nil
	},
}

// pidFileFromConfig loads just enough of the config file to find its pid
// path, without fully booting logging or any Supervisor collaborator.
func pidFileFromConfig() (string, error) {
	static, _, err := config.Load(configFile, parseRunningMode(mode))
	if err != nil {
		return "", err
	}
	return static.PIDFile, nil
}
