package external

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"deepflow.io/agent/internal/config"
)

// PcapSource is the pcap intake queue the WorkerManager's worker pool
// drains; capture itself is out of scope, this type only owns the
// fan-out-to-N-workers discipline.
type PcapSource interface {
	Recv(ctx context.Context) ([]byte, bool)
}

// PcapHandler processes one captured frame — writing it to a pcap file sink
// or forwarding it to an NPB target, depending on the owning
// PacketHandlerBuilder's kind.
type PcapHandler func(frame []byte)

// WorkerManager owns a bounded pool of goroutines draining the shared pcap
// intake queue, built with sourcegraph/conc so a single worker's panic
// doesn't silently kill the pool.
type WorkerManager struct {
	src     PcapSource
	handler PcapHandler
	workers int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorkerManager(src PcapSource, handler PcapHandler, workers int) *WorkerManager {
	if workers < 1 {
		workers = 1
	}
	return &WorkerManager{src: src, handler: handler, workers: workers, done: make(chan struct{})}
}

func (m *WorkerManager) Start() error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	go m.run()
	return nil
}

func (m *WorkerManager) Stop() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	return nil
}

func (m *WorkerManager) OnConfigChange(snapshot *config.ChangedConfig) {}

func (m *WorkerManager) run() {
	defer close(m.done)
	p := pool.New().WithMaxGoroutines(m.workers)
	logrus.WithField("workers", m.workers).Debug("pcap worker manager starting")

	for {
		frame, ok := m.src.Recv(m.ctx)
		if !ok {
			if m.ctx.Err() != nil {
				break
			}
			continue
		}
		f := frame
		p.Go(func() {
			if m.handler != nil {
				m.handler(f)
			}
		})
	}
	p.Wait()
	logrus.Debug("pcap worker manager stopped")
}
