package cmd

import (
	"os"
	"syscall"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the agent is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		pidFile, err := pidFileFromConfig()
		if err != nil {
			return err
		}
		pid, err := readPID(pidFile)
		if err != nil {
			cmd.Println("agent is not running (no pid file)")
			return nil
		}
		proc, err := os.FindProcess(pid)
		if err != nil || proc.Signal(syscall.Signal(0)) != nil {
			cmd.Printf("agent is not running (stale pid file, last pid %d)\n", pid)
			return nil
		}
		cmd.Printf("agent is running, pid %d\n", pid)
		return nil
	},
}
