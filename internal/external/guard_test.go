package external

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deepflow.io/agent/internal/exception"
)

type fakeCapability struct {
	diskMB, memMB uint64
	diskErr, memErr error
}

func (f fakeCapability) FreeDiskMB(path string) (uint64, error)  { return f.diskMB, f.diskErr }
func (f fakeCapability) FreeMemoryMB() (uint64, error)           { return f.memMB, f.memErr }
func (f fakeCapability) KernelSupported() (bool, string)         { return true, "test" }
func (f fakeCapability) EBPFAvailable() bool                     { return false }

func TestGuardSetsConditionWhenDiskLow(t *testing.T) {
	bus := exception.New()
	cap := fakeCapability{diskMB: 10, memMB: 1000}
	g := NewGuard("/tmp", 100, 100, 10*time.Millisecond, bus, cap)

	g.check()
	require.True(t, bus.IsSet(exception.FreeDiskLow))
	require.False(t, bus.IsSet(exception.FreeMemoryLow))
}

func TestGuardClearsConditionWhenRecovered(t *testing.T) {
	bus := exception.New()
	bus.Set(exception.FreeDiskLow)
	cap := fakeCapability{diskMB: 5000, memMB: 5000}
	g := NewGuard("/tmp", 100, 100, 10*time.Millisecond, bus, cap)

	g.check()
	require.False(t, bus.IsSet(exception.FreeDiskLow))
}

func TestGuardStartStopIsClean(t *testing.T) {
	bus := exception.New()
	cap := fakeCapability{diskMB: 5000, memMB: 5000}
	g := NewGuard("/tmp", 100, 100, 5*time.Millisecond, bus, cap)
	require.NoError(t, g.Start())
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, g.Stop())
}
