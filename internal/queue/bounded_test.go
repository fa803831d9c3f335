package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deepflow.io/agent/internal/stats"
)

func TestSendRecvRoundTrip(t *testing.T) {
	q, err := New[int](nil, "flow", "0", 4)
	require.NoError(t, err)

	q.Send(42)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, ok := q.Recv(ctx)
	require.True(t, ok)
	require.Equal(t, 42, got)
}

func TestSendDropsWhenFull(t *testing.T) {
	q, err := New[int](nil, "flow", "1", 1)
	require.NoError(t, err)

	q.Send(1)
	q.Send(2) // dropped, queue already full
	require.Equal(t, int64(1), q.Dropped())
	require.Equal(t, 1, q.Len())
}

func TestRecvRespectsContextCancellation(t *testing.T) {
	q, err := New[int](nil, "flow", "2", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok := q.Recv(ctx)
	require.False(t, ok)
}

func TestNewRegistersCountable(t *testing.T) {
	reg := stats.New(nil)
	q, err := New[int](reg, "metrics", "3", 8)
	require.NoError(t, err)
	require.True(t, reg.Has("metrics", "3"))

	_, err = New[int](reg, "metrics", "3", 8)
	require.Error(t, err, "duplicate (module, index) must be rejected")
	_ = q
}
