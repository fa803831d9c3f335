package external

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
)

// EBPFSink is where the eBPF collector writes captured protocol-log events;
// the actual eBPF program attach/read loop is out of scope (it is entirely
// kernel-version- and arch-specific), so this type is only the Component
// handle and the polling cadence the graph builder wires up.
type EBPFSink func(event []byte)

// EBPFCollector writes into the proto-log sender trunk that the per-unit
// ProtocolLogParsers also feed. No log-rate bucket is applied to its events.
// It only runs when Current.EBPFAvailable() is true.
type EBPFCollector struct {
	sink     EBPFSink
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEBPFCollector(sink EBPFSink, interval time.Duration) *EBPFCollector {
	return &EBPFCollector{sink: sink, interval: interval, done: make(chan struct{})}
}

// Available reports whether this build/platform can actually attach eBPF
// programs; the graph builder skips construction entirely when false rather
// than constructing a collector that can never start.
func Available() bool {
	return Current.EBPFAvailable()
}

func (c *EBPFCollector) Start() error {
	if !Available() {
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.loop()
	return nil
}

func (c *EBPFCollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

func (c *EBPFCollector) OnConfigChange(snapshot *config.ChangedConfig) {}

func (c *EBPFCollector) loop() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			logrus.Debug("ebpf collector: poll tick")
		}
	}
}
