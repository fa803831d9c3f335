package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
agent:
  controller_ips: ["10.0.0.1"]
  data_dir: %q
  pid_file: %q
  runtime:
    capture_mode: local
    source_interfaces: ["eth0"]
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateCmdReportsValidConfig(t *testing.T) {
	dataDir := t.TempDir()
	pidFile := filepath.Join(t.TempDir(), "agent.pid")
	path := writeTempConfig(t, sprintfConfig(dataDir, pidFile))

	oldConfigFile, oldMode := configFile, mode
	defer func() { configFile, mode = oldConfigFile, oldMode }()
	configFile, mode = path, "standalone"

	var out bytes.Buffer
	validateCmd.SetOut(&out)
	defer validateCmd.SetOut(nil)

	err := validateCmd.RunE(validateCmd, nil)
	require.NoError(t, err)
	require.Contains(t, out.String(), "VALID:")
	require.Contains(t, out.String(), "capture_mode=local")
	require.Contains(t, out.String(), "eth0")
}

func TestValidateCmdReportsMissingFile(t *testing.T) {
	oldConfigFile, oldMode := configFile, mode
	defer func() { configFile, mode = oldConfigFile, oldMode }()
	configFile, mode = filepath.Join(t.TempDir(), "does-not-exist.yaml"), "standalone"

	var errOut bytes.Buffer
	validateCmd.SetErr(&errOut)
	defer validateCmd.SetErr(nil)

	err := validateCmd.RunE(validateCmd, nil)
	require.Error(t, err)
	require.Contains(t, errOut.String(), "INVALID:")
}

func TestParseRunningMode(t *testing.T) {
	require.Equal(t, 1, int(parseRunningMode("standalone")))
	require.Equal(t, 0, int(parseRunningMode("managed")))
	require.Equal(t, 0, int(parseRunningMode("")))
}

func sprintfConfig(dataDir, pidFile string) string {
	return fmt.Sprintf(validConfigYAML, dataDir, pidFile)
}
