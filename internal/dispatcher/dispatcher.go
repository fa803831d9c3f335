// Package dispatcher models the Dispatcher as an external collaborator: its
// actual packet-capture internals are out of scope, but the core owns the
// fluent construction builder that wires cross-cutting dependencies into it
// and the DispatcherListener fan-out logic that routes hot
// reconfiguration into already-running dispatchers.
package dispatcher

import (
	"fmt"
	"net"
	"regexp"

	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"deepflow.io/agent/internal/bpfutil"
	"deepflow.io/agent/internal/component"
	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/exception"
	"deepflow.io/agent/internal/policy"
	"deepflow.io/agent/internal/ratelimit"
)

// Dispatcher is the capture thread bound to one source. Start/Stop are
// idempotent via an abool CAS flag, matching the teacher's capture module
// running-flag discipline.
type Dispatcher struct {
	unitName string
	listener *component.DispatcherListener

	ctrlMAC   net.HardwareAddr
	rateLimit *ratelimit.Bucket
	bpf       bpfutil.Descriptor
	policy    *policy.Policy
	bus       *exception.Bus

	running *abool.AtomicBool
	stopped *abool.AtomicBool
}

// Builder assembles a Dispatcher fluently, carrying every cross-cutting
// dependency the capture unit's construction needs, so construction reads
// as one pipeline rather than a long positional constructor.
type Builder struct {
	d   *Dispatcher
	err error
}

// NewBuilder starts building a Dispatcher for the named capture unit.
func NewBuilder(unitName string) *Builder {
	return &Builder{d: &Dispatcher{
		unitName: unitName,
		running:  abool.New(),
		stopped:  abool.New(),
	}}
}

func (b *Builder) WithCtrlMAC(mac net.HardwareAddr) *Builder {
	b.d.ctrlMAC = mac
	return b
}

func (b *Builder) WithRateLimiter(rl *ratelimit.Bucket) *Builder {
	b.d.rateLimit = rl
	return b
}

func (b *Builder) WithBPF(bpf bpfutil.Descriptor) *Builder {
	b.d.bpf = bpf
	return b
}

func (b *Builder) WithPolicy(p *policy.Policy) *Builder {
	b.d.policy = p
	return b
}

func (b *Builder) WithExceptionBus(bus *exception.Bus) *Builder {
	b.d.bus = bus
	return b
}

// Build validates required fields and returns the assembled Dispatcher along
// with its listener handle.
func (b *Builder) Build() (*Dispatcher, *component.DispatcherListener, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	if b.d.unitName == "" {
		return nil, nil, fmt.Errorf("dispatcher: unit name required")
	}
	b.d.listener = &component.DispatcherListener{Kind: component.ListenerLocal}
	return b.d, b.d.listener, nil
}

// Start begins capture. Idempotent.
func (d *Dispatcher) Start() error {
	if !d.running.SetToIf(false, true) {
		return nil
	}
	d.stopped.UnSet()
	logrus.WithField("unit", d.unitName).Info("dispatcher starting")
	return nil
}

// Stop halts capture. Idempotent.
func (d *Dispatcher) Stop() error {
	if !d.running.SetToIf(true, false) {
		return nil
	}
	d.stopped.Set()
	logrus.WithField("unit", d.unitName).Info("dispatcher stopped")
	return nil
}

func (d *Dispatcher) OnConfigChange(snapshot *config.ChangedConfig) {}

// Listener returns the DispatcherListener handle pushed to by the
// Supervisor's hot-reconfiguration fan-out.
func (d *Dispatcher) Listener() *component.DispatcherListener {
	return d.listener
}

// InterfaceResolver resolves tap interfaces for a listener's namespace by
// regex, matching the "re-resolve interfaces in that namespace by regex"
// Local-mode behavior.
type InterfaceResolver interface {
	ResolveInterfaces(namespace, regex string) ([]string, error)
}

// ApplyHotConfig implements the DispatcherListener fan-out table: it
// pushes a DispatcherUpdate into l according to l.Kind. Regex/resolution
// errors are logged, not returned, matching "Empty results and regex errors
// are logged, not fatal."
func ApplyHotConfig(l *component.DispatcherListener, resolver InterfaceResolver, rootInterfaces []string, interfaceRegex string, update component.DispatcherUpdate, cachedTapTypes []config.TapType) []config.TapType {
	switch l.Kind {
	case component.ListenerLocal:
		ifaces := rootInterfaces
		if l.Namespace != "" {
			resolved, err := resolver.ResolveInterfaces(l.Namespace, interfaceRegex)
			if err != nil {
				logrus.WithError(err).WithField("namespace", l.Namespace).Warn("dispatcher: interface re-resolution failed")
				ifaces = nil
			} else {
				ifaces = resolved
			}
		} else if interfaceRegex != "" {
			re, err := regexp.Compile(interfaceRegex)
			if err != nil {
				logrus.WithError(err).Warn("dispatcher: invalid interface regex")
			} else {
				var filtered []string
				for _, i := range rootInterfaces {
					if re.MatchString(i) {
						filtered = append(filtered, i)
					}
				}
				ifaces = filtered
			}
		}
		update.Interfaces = ifaces
		update.MacSource = component.IfMacSourceInterface
		l.Push(update)
		l.Push(component.DispatcherUpdate{VMMacAddrs: update.VMMacAddrs})
		return cachedTapTypes

	case component.ListenerMirror:
		update.Interfaces = nil
		update.MacSource = component.IfMacSourceIfMac
		l.Push(update)
		l.Push(component.DispatcherUpdate{VMMacAddrs: update.VMMacAddrs})
		return cachedTapTypes

	case component.ListenerAnalyzer:
		update.Interfaces = nil
		update.MacSource = component.IfMacSourceIfMac
		l.Push(update)
		l.Push(component.DispatcherUpdate{VMMacAddrs: update.VMMacAddrs})
		if !config.TapTypesEqual(cachedTapTypes, update.TapTypes) {
			l.Push(component.DispatcherUpdate{TapTypes: update.TapTypes})
			return update.TapTypes
		}
		return cachedTapTypes

	default:
		return cachedTapTypes
	}
}
