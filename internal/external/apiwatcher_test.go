package external

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisabledApiWatcherStartStopAreNoOps(t *testing.T) {
	w := NewApiWatcher(false, time.Millisecond)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
}

func TestEnabledApiWatcherRunsUntilStopped(t *testing.T) {
	w := NewApiWatcher(true, 5*time.Millisecond)
	require.NoError(t, w.Start())
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, w.Stop())
}
