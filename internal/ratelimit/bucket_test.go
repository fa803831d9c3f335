package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnlimitedAlwaysAllows(t *testing.T) {
	b := New(Unlimited)
	for i := 0; i < 1000; i++ {
		require.True(t, b.Allow(1_000_000))
	}
}

func TestCapacityLimitsBurst(t *testing.T) {
	b := New(10)
	admitted := 0
	for i := 0; i < 20; i++ {
		if b.Allow(1) {
			admitted++
		}
	}
	require.LessOrEqual(t, admitted, 10)
	require.Greater(t, admitted, 0)
}

func TestRefillOverTime(t *testing.T) {
	b := New(10)
	for i := 0; i < 10; i++ {
		require.True(t, b.Allow(1))
	}
	require.False(t, b.Allow(1), "bucket should be exhausted")

	time.Sleep(150 * time.Millisecond)
	require.True(t, b.Allow(1), "bucket should have refilled some tokens")
}

func TestSnapshotReportsCounts(t *testing.T) {
	b := New(5)
	b.Allow(1)
	b.Allow(1)
	snap := b.Snapshot()
	require.EqualValues(t, 2, snap["admitted"])
}
