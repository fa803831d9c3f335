package logging

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"deepflow.io/agent/internal/config"
)

func TestInitBuildsLeveledLogger(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LogConfig{
		Level:      "debug",
		Format:     "json",
		FilePath:   filepath.Join(dir, "agent.log"),
		MaxSizeMB:  10,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}

	logger, err := Init(cfg, false)
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, logger.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	require.Same(t, logger, L())
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	dir := t.TempDir()
	_, err := Init(config.LogConfig{
		Level:    "not-a-level",
		FilePath: filepath.Join(dir, "agent.log"),
	}, false)
	require.Error(t, err)
}

func TestRemoteHookShipsRecordOverUDP(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	cfg := config.LogConfig{
		RemoteLevel:    "info",
		RemoteHostname: "agent-1",
		IngesterAddr:   pc.LocalAddr().String(),
	}
	hook, err := newRemoteHook(cfg)
	require.NoError(t, err)

	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Level:   logrus.InfoLevel,
		Message: "hello",
		Data:    logrus.Fields{"component": "synchronizer"},
	}
	require.NoError(t, hook.Fire(entry))

	buf := make([]byte, 1024)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "hello")
	require.Contains(t, string(buf[:n]), "agent-1")
}
