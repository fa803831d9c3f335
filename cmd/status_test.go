package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusCmdReportsRunningForOwnProcess(t *testing.T) {
	dataDir := t.TempDir()
	pidFile := filepath.Join(t.TempDir(), "agent.pid")
	require.NoError(t, writePIDFile(pidFile))

	path := writeTempConfig(t, sprintfConfig(dataDir, pidFile))
	oldConfigFile, oldMode := configFile, mode
	defer func() { configFile, mode = oldConfigFile, oldMode }()
	configFile, mode = path, "standalone"

	var out bytes.Buffer
	statusCmd.SetOut(&out)
	defer statusCmd.SetOut(nil)

	require.NoError(t, statusCmd.RunE(statusCmd, nil))
	require.Contains(t, out.String(), "running, pid")
}

func TestStatusCmdReportsNotRunningWithoutPIDFile(t *testing.T) {
	dataDir := t.TempDir()
	pidFile := filepath.Join(t.TempDir(), "agent.pid")

	path := writeTempConfig(t, sprintfConfig(dataDir, pidFile))
	oldConfigFile, oldMode := configFile, mode
	defer func() { configFile, mode = oldConfigFile, oldMode }()
	configFile, mode = path, "standalone"

	var out bytes.Buffer
	statusCmd.SetOut(&out)
	defer statusCmd.SetOut(nil)

	require.NoError(t, statusCmd.RunE(statusCmd, nil))
	require.Contains(t, out.String(), "not running (no pid file)")
}

func TestStatusCmdReportsStalePIDFile(t *testing.T) {
	dataDir := t.TempDir()
	pidFile := filepath.Join(t.TempDir(), "agent.pid")
	// A pid very unlikely to be alive: 1 is init/pid-1, which this process
	// cannot signal unless running as root in its own pid namespace, so use
	// a large made-up value instead.
	require.NoError(t, os.WriteFile(pidFile, []byte("999999"), 0o644))

	path := writeTempConfig(t, sprintfConfig(dataDir, pidFile))
	oldConfigFile, oldMode := configFile, mode
	defer func() { configFile, mode = oldConfigFile, oldMode }()
	configFile, mode = path, "standalone"

	var out bytes.Buffer
	statusCmd.SetOut(&out)
	defer statusCmd.SetOut(nil)

	require.NoError(t, statusCmd.RunE(statusCmd, nil))
	require.Contains(t, out.String(), "stale pid file")
}
