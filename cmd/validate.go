package cmd

import (
	"github.com/spf13/cobra"

	"deepflow.io/agent/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file without starting the agent",
	Long: `Load and parse a config file the same way start would, reporting
errors without building or running a PipelineInstance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		static, runtimeCfg, err := config.Load(configFile, parseRunningMode(mode))
		if err != nil {
			cmd.PrintErrf("INVALID: %v\n", err)
			return err
		}
		cmd.Printf("VALID: mode=%s controller_ips=%v capture_mode=%s source_interfaces=%v\n",
			static.AgentMode, static.ControllerIPs, runtimeCfg.CaptureMode, runtimeCfg.SourceInterfaces)
		return nil
	},
}
