package external

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/stats"
)

// Monitor is the agent's own self-observability thread: it periodically logs
// a summary of every countable registered in the StatsRegistry, giving an
// operator a heartbeat even when the remote Prometheus scrape path is down.
type Monitor struct {
	reg      *stats.Registry
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(reg *stats.Registry, interval time.Duration) *Monitor {
	return &Monitor{reg: reg, interval: interval, done: make(chan struct{})}
}

func (m *Monitor) Start() error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	go m.loop()
	return nil
}

func (m *Monitor) Stop() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	return nil
}

func (m *Monitor) OnConfigChange(snapshot *config.ChangedConfig) {}

func (m *Monitor) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			logrus.WithFields(logrus.Fields{"remotes": m.reg.Remotes(), "countables": m.reg.Snapshot()}).Info("monitor: heartbeat")
		}
	}
}
