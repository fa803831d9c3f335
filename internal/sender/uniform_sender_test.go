package sender

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deepflow.io/agent/internal/exception"
	"deepflow.io/agent/internal/stats"
)

type fakeReceiver struct {
	items chan []byte
}

func (f *fakeReceiver) RecvBytes(ctx context.Context) ([]byte, bool) {
	select {
	case item := <-f.items:
		return item, true
	case <-ctx.Done():
		return nil, false
	}
}

func TestSenderDeliversToListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	recv := &fakeReceiver{items: make(chan []byte, 1)}
	cfg := Config{AnalyzerAddr: ln.Addr().String(), DialTimeout: time.Second}

	s, err := New(0, "metrics", recv, func() Config { return cfg }, stats.New(nil), exception.New())
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()

	recv.items <- []byte("hello")

	select {
	case got := <-received:
		require.Equal(t, "hello", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("listener never received payload")
	}
}

func TestNewRegistersWithStats(t *testing.T) {
	reg := stats.New(nil)
	recv := &fakeReceiver{items: make(chan []byte)}
	_, err := New(1, "l4_flow_aggr", recv, func() Config { return Config{} }, reg, nil)
	require.NoError(t, err)
	require.True(t, reg.Has("l4_flow_aggr", "1"))
}
