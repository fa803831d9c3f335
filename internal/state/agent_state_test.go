package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deepflow.io/agent/internal/config"
)

func TestCellPostWait(t *testing.T) {
	c := NewCell()

	done := make(chan Snapshot, 1)
	go func() {
		done <- c.Wait()
	}()

	time.Sleep(10 * time.Millisecond)
	c.Post(Snapshot{Phase: ConfigChanged, Payload: &config.ChangedConfig{KubernetesClusterID: "k1"}})

	select {
	case got := <-done:
		require.Equal(t, ConfigChanged, got.Phase)
		require.Equal(t, "k1", got.Payload.KubernetesClusterID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Post to wake Wait")
	}
}

func TestCellCurrentDoesNotConsume(t *testing.T) {
	c := NewCell()
	c.Post(Snapshot{Phase: Disabled})
	require.Equal(t, Disabled, c.Current().Phase)
	require.Equal(t, Disabled, c.Current().Phase, "Current must not clear pending")

	got := c.Wait()
	require.Equal(t, Disabled, got.Phase)
}

func TestCellInitialValueIsRunning(t *testing.T) {
	c := NewCell()
	require.Equal(t, Running, c.Current().Phase)
}
