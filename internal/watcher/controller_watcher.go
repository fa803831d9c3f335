// Package watcher implements the ControllerWatcher: a background thread
// that periodically re-resolves the agent's configured controller domain
// names and rebinds the uplink when the resolved address set changes.
package watcher

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"
)

// Interval is the fixed re-resolution cadence.
const Interval = 5 * time.Second

// Resolver abstracts DNS resolution so tests can substitute a fake one.
type Resolver interface {
	LookupHost(host string) ([]string, error)
}

type netResolver struct{}

func (netResolver) LookupHost(host string) ([]string, error) { return net.LookupHost(host) }

// SessionResetter is the subset of synchronizer.Synchronizer the watcher
// drives on a DNS flap.
type SessionResetter interface {
	ResetSession(ips []string, ctrlIP net.IP, ctrlMAC net.HardwareAddr) error
}

// RemotesUpdater receives the new remote list on every rebind — implemented
// by stats.Registry. The logging remote hook does not implement it, so
// remote logging keeps the destination it was given at logging.Init.
type RemotesUpdater interface {
	UpdateRemotes(remotes []string)
}

// Watcher is the ControllerWatcher. The zero value is not usable; use New.
type Watcher struct {
	domains  []string
	ips      []string
	resolver Resolver

	synchronizer SessionResetter
	statsRemotes RemotesUpdater

	stopped     *abool.AtomicBool
	done        chan struct{}
	startedFlag bool

	mu sync.Mutex
}

// New builds a Watcher over the given controller domain names, seeded with
// their currently-known IPs (one per domain, same order).
func New(domains, initialIPs []string, synchronizer SessionResetter, statsRemotes RemotesUpdater) *Watcher {
	return &Watcher{
		domains:      domains,
		ips:          append([]string(nil), initialIPs...),
		resolver:     netResolver{},
		synchronizer: synchronizer,
		statsRemotes: statsRemotes,
		stopped:      abool.New(),
		done:         make(chan struct{}),
	}
}

// SetResolver overrides the DNS resolver, for tests.
func (w *Watcher) SetResolver(r Resolver) {
	w.resolver = r
}

// Start spawns the watcher goroutine. A no-op (never spawns) if no domain
// names are configured, per the ControllerWatcher design. Idempotent.
func (w *Watcher) Start() {
	if len(w.domains) == 0 {
		return
	}
	if w.started() {
		return
	}
	w.setStarted()
	go w.loop()
}

func (w *Watcher) started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.startedFlag
}

func (w *Watcher) setStarted() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.startedFlag = true
}

// Stop signals the watcher to exit and waits for it.
func (w *Watcher) Stop() {
	if !w.started() {
		return
	}
	w.stopped.Set()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for {
		if w.stopped.IsSet() {
			return
		}
		select {
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watcher) tick() {
	changed := false
	newIPs := append([]string(nil), w.ips...)

	for i, domain := range w.domains {
		resolved, err := w.resolver.LookupHost(domain)
		if err != nil {
			logrus.WithError(err).WithField("domain", domain).Debug("controller watcher: resolution failed, retrying next interval")
			continue
		}
		if i >= len(newIPs) {
			newIPs = append(newIPs, resolved[0])
			changed = true
			continue
		}
		if !contains(resolved, w.ips[i]) {
			newIPs[i] = resolved[0]
			changed = true
		}
	}

	if !changed {
		return
	}

	w.ips = newIPs
	ctrlIP := net.ParseIP(newIPs[0])
	ctrlMAC := deriveCtrlMAC(ctrlIP)

	if w.synchronizer != nil {
		if err := w.synchronizer.ResetSession(newIPs, ctrlIP, ctrlMAC); err != nil {
			logrus.WithError(err).Warn("controller watcher: reset_session failed")
		}
	}
	if w.statsRemotes != nil {
		w.statsRemotes.UpdateRemotes(newIPs)
	}
}

// deriveCtrlMAC is a placeholder derivation — the real control-plane MAC
// comes from ARP/neighbor resolution, which is an external capability out
// of this package's scope. Tests exercise the IP side of reset only.
func deriveCtrlMAC(ip net.IP) net.HardwareAddr {
	if ip == nil {
		return nil
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
