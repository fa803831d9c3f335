package external

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePcapSource struct {
	mu    sync.Mutex
	items [][]byte
}

func (f *fakePcapSource) push(item []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
}

func (f *fakePcapSource) Recv(ctx context.Context) ([]byte, bool) {
	for {
		f.mu.Lock()
		if len(f.items) > 0 {
			item := f.items[0]
			f.items = f.items[1:]
			f.mu.Unlock()
			return item, true
		}
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(time.Millisecond):
		}
	}
}

func TestWorkerManagerProcessesEveryFrame(t *testing.T) {
	src := &fakePcapSource{}
	src.push([]byte("a"))
	src.push([]byte("b"))
	src.push([]byte("c"))

	var mu sync.Mutex
	var seen []string
	handler := func(frame []byte) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(frame))
	}

	m := NewWorkerManager(src, handler, 2)
	require.NoError(t, m.Start())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop())
}

func TestWorkerManagerClampsToAtLeastOneWorker(t *testing.T) {
	m := NewWorkerManager(&fakePcapSource{}, func([]byte) {}, 0)
	require.Equal(t, 1, m.workers)
}
