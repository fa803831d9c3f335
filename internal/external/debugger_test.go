package external

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueDebuggerSnapshotsRegisteredProbes(t *testing.T) {
	d := NewQueueDebugger()
	d.Register("flow-queue-0", func() int { return 3 })
	d.Register("log-queue-0", func() int { return 0 })

	snap := d.Snapshot()
	require.Equal(t, 3, snap["flow-queue-0"])
	require.Equal(t, 0, snap["log-queue-0"])

	d.Deregister("log-queue-0")
	snap = d.Snapshot()
	require.NotContains(t, snap, "log-queue-0")
}

func TestDebuggerOwnsOneQueueDebuggerInstance(t *testing.T) {
	dbg := NewDebugger()
	require.NotNil(t, dbg.Queues())
	require.NoError(t, dbg.Start())
	require.NoError(t, dbg.Stop())
}
