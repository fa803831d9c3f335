package external

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/exception"
)

// Guard periodically polls free disk and free memory on the data directory's
// filesystem and flips the corresponding exception.Bus conditions, the way
// the boot sequence's "start the Guard (memory/disk watchdog)" step expects.
type Guard struct {
	dataDir     string
	minDiskMB   uint64
	minMemoryMB uint64
	interval    time.Duration
	bus         *exception.Bus
	cap         Capability

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGuard builds a Guard watching dataDir, using cap for its platform
// checks (external.Current in production, a fake in tests).
func NewGuard(dataDir string, minDiskMB, minMemoryMB uint64, interval time.Duration, bus *exception.Bus, cap Capability) *Guard {
	if cap == nil {
		cap = Current
	}
	return &Guard{
		dataDir:     dataDir,
		minDiskMB:   minDiskMB,
		minMemoryMB: minMemoryMB,
		interval:    interval,
		bus:         bus,
		cap:         cap,
		done:        make(chan struct{}),
	}
}

func (g *Guard) Start() error {
	g.ctx, g.cancel = context.WithCancel(context.Background())
	go g.loop()
	return nil
}

func (g *Guard) Stop() error {
	if g.cancel != nil {
		g.cancel()
		<-g.done
	}
	return nil
}

func (g *Guard) OnConfigChange(snapshot *config.ChangedConfig) {}

func (g *Guard) loop() {
	defer close(g.done)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	g.check()
	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.check()
		}
	}
}

func (g *Guard) check() {
	if freeMB, err := g.cap.FreeDiskMB(g.dataDir); err != nil {
		logrus.WithError(err).Warn("guard: free disk check failed")
	} else if freeMB < g.minDiskMB {
		g.bus.Set(exception.FreeDiskLow)
	} else {
		g.bus.Clear(exception.FreeDiskLow)
	}

	if freeMB, err := g.cap.FreeMemoryMB(); err != nil {
		logrus.WithError(err).Warn("guard: free memory check failed")
	} else if freeMB < g.minMemoryMB {
		g.bus.Set(exception.FreeMemoryLow)
	} else {
		g.bus.Clear(exception.FreeMemoryLow)
	}
}
