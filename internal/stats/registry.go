// Package stats implements the StatsRegistry: named countable registration
// and periodic Prometheus export. Every BoundedQueue and UniformSender in
// the pipeline registers itself here under a stable (module, index) tag pair
// before any producer begins. LeakyBucket implements Countable, but nothing
// registers a bucket here.
package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Countable is implemented by anything the registry periodically snapshots:
// BoundedQueue (length + drops), LeakyBucket (tokens/rejections), and
// UniformSender (sent/errored counts).
type Countable interface {
	// Snapshot returns the current value of each named counter this
	// countable exposes, e.g. {"len": 12, "dropped": 3}.
	Snapshot() map[string]int64
}

type entry struct {
	module, index string
	countable     Countable
}

// Registry is the shared, reference-counted, read-mostly StatsRegistry.
// Components hold a weak (non-owning) reference back to it — they keep a
// plain *Registry pointer and never prevent it from being stopped.
type Registry struct {
	mu       sync.RWMutex
	entries  map[[2]string]entry
	gauge    *prometheus.GaugeVec
	remotes  []string
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a StatsRegistry and registers its exported gauge with reg (pass
// prometheus.DefaultRegisterer in production, a fresh prometheus.NewRegistry()
// in tests).
func New(reg prometheus.Registerer) *Registry {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deepflow_agent_countable",
		Help: "Named countable values registered by pipeline components.",
	}, []string{"module", "index", "counter"})
	if reg != nil {
		reg.MustRegister(gauge)
	}
	return &Registry{
		entries: make(map[[2]string]entry),
		gauge:   gauge,
		stopCh:  make(chan struct{}),
	}
}

// Register adds a countable under (module, index). Returns an error if that
// pair is already registered — the invariant that every queue has exactly
// one owning registration.
func (r *Registry) Register(module, index string, c Countable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]string{module, index}
	if _, exists := r.entries[k]; exists {
		return fmt.Errorf("stats: (module=%s, index=%s) already registered", module, index)
	}
	r.entries[k] = entry{module: module, index: index, countable: c}
	return nil
}

// Deregister removes a countable. Idempotent.
func (r *Registry) Deregister(module, index string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, [2]string{module, index})
}

// Has reports whether (module, index) is currently registered — used by
// tests asserting the "register before any producer begins" invariant.
func (r *Registry) Has(module, index string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[[2]string{module, index}]
	return ok
}

// UpdateRemotes replaces the ingester remote address list, called by the
// ControllerWatcher whenever the controller's resolved addresses change.
func (r *Registry) UpdateRemotes(remotes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remotes = append([]string(nil), remotes...)
}

// Remotes returns the current remote list.
func (r *Registry) Remotes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.remotes...)
}

// Snapshot returns every registered countable's current counters, keyed by
// "module/index". Used by the stats UniformSender to ship a point-in-time
// view to the ingester independent of the Prometheus scrape path.
func (r *Registry) Snapshot() map[string]map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]int64, len(r.entries))
	for k, e := range r.entries {
		out[k[0]+"/"+k[1]] = e.countable.Snapshot()
	}
	return out
}

// Start begins periodic export of every registered countable into the
// Prometheus gauge at the given interval. Each call starts another exporter
// goroutine; Stop halts all of them.
func (r *Registry) Start(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.export()
			}
		}
	}()
}

func (r *Registry) export() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		for counter, v := range e.countable.Snapshot() {
			r.gauge.WithLabelValues(e.module, e.index, counter).Set(float64(v))
		}
	}
	logrus.WithField("countables", len(r.entries)).Debug("stats registry exported")
}

// Stop halts the exporter goroutine. Idempotent.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}
