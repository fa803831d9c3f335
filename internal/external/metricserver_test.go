package external

import (
	"bytes"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricServerFansPushesIntoMatchingTrunk(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	var mu sync.Mutex
	received := map[string][]byte{}
	trunk := func(name string) MetricTrunk {
		return func(body []byte) {
			mu.Lock()
			defer mu.Unlock()
			received[name] = body
		}
	}

	s := NewMetricServer(addr, trunk("otel"), trunk("prometheus"), trunk("telegraf"), trunk("otel-compressed"))
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool {
		resp, err := http.Post("http://"+addr+"/prometheus", "text/plain", bytes.NewReader([]byte("metric 1")))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusAccepted
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []byte("metric 1"), received["prometheus"])
	require.NotContains(t, received, "otel")
}

func TestMetricServerReturns503WhenTrunkUnset(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := NewMetricServer(addr, nil, nil, nil, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Post("http://"+addr+"/otel", "text/plain", bytes.NewReader([]byte("x")))
		return err == nil
	}, time.Second, 5*time.Millisecond)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
