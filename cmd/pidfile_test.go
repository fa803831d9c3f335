package cmd

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRemovePIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")

	require.NoError(t, writePIDFile(path))
	pid, err := readPID(path)
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), pid)

	removePIDFile(path)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestWritePIDFileEmptyPathIsNoOp(t *testing.T) {
	require.NoError(t, writePIDFile(""))
}

func TestRemovePIDFileToleratesMissingFile(t *testing.T) {
	removePIDFile(filepath.Join(t.TempDir(), "does-not-exist.pid"))
}

func TestReadPIDRejectsCorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
	_, err := readPID(path)
	require.Error(t, err)
}

func TestSignalPIDReachesOwnProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")
	require.NoError(t, writePIDFile(path))
	// Signal 0 only probes for existence/permission, delivering nothing.
	require.NoError(t, signalPID(path, syscall.Signal(0)))
}
