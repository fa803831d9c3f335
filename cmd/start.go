package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/logging"
	"deepflow.io/agent/internal/state"
	"deepflow.io/agent/internal/supervisor"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the agent in the foreground",
	Long: `Run the agent in the foreground: load configuration, start the
Supervisor, and block until a shutdown signal arrives.

This is the entry point a process manager (systemd, a container runtime)
invokes directly; there is no separate background/daemon mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(configFile, parseRunningMode(mode))
	},
}

func runStart(path string, runMode config.RunningMode) error {
	static, runtimeCfg, err := config.Load(path, runMode)
	if err != nil {
		return fmt.Errorf("start: load config: %w", err)
	}

	if _, err := logging.Init(static.Log, os.Getppid() == 1); err != nil {
		return fmt.Errorf("start: init logging: %w", err)
	}

	if err := writePIDFile(static.PIDFile); err != nil {
		logrus.WithError(err).Warn("start: failed to write pid file")
	}
	defer removePIDFile(static.PIDFile)

	sup := supervisor.New(static, runtimeCfg, prometheus.DefaultRegisterer)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				logrus.WithField("signal", sig).Info("start: shutdown signal received")
				sup.Stop()
				return
			case syscall.SIGHUP:
				logrus.Info("start: reload signal received, re-reading config file")
				reloadConfig(sup, path, runMode)
			}
		}
	}()

	code := sup.Run()
	if code == supervisor.ExitRestartRequested {
		return reExec()
	}
	os.Exit(code)
	return nil
}

func reloadConfig(sup *supervisor.Supervisor, path string, runMode config.RunningMode) {
	_, runtimeCfg, err := config.Load(path, runMode)
	if err != nil {
		logrus.WithError(err).Warn("start: reload failed, keeping running configuration")
		return
	}
	sup.Cell().Post(state.Snapshot{
		Phase:   state.ConfigChanged,
		Payload: &config.ChangedConfig{Runtime: *runtimeCfg},
	})
}

// reExec replaces the current process image with a fresh copy of itself,
// used when a topology-affecting config change requires a clean restart
// rather than an in-place rebuild.
func reExec() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("start: resolve executable for restart: %w", err)
	}
	return syscall.Exec(execPath, os.Args, os.Environ())
}
