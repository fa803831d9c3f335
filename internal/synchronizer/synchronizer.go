// Package synchronizer implements the Synchronizer: the component that owns
// the control-plane conversation and posts AgentState transitions into the
// supervisor's state.Cell. Two implementations exist — Standalone (config
// file is authoritative, no RPC) and Managed (driven by a remote
// controller) — selected by config.RunningMode at construction time.
package synchronizer

import (
	"context"
	"net"
	"time"

	"go.uber.org/atomic"

	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/exception"
	"deepflow.io/agent/internal/state"
)

// FlowACLListener receives policy updates pushed by the controller. Policy
// registers itself as one during PipelineInstance construction.
type FlowACLListener interface {
	OnFlowACLUpdate(acl []byte)
}

// Synchronizer is the external contract both implementations satisfy.
type Synchronizer interface {
	// Start begins the background conversation and posts state transitions
	// into cell as they occur. Standalone posts its one snapshot before
	// returning; Managed returns after its first heartbeat attempt, which
	// posts only when the controller answers SERVING.
	Start(ctx context.Context, cell *state.Cell) error
	// Stop halts the conversation. Neither implementation posts a snapshot
	// on Stop.
	Stop()
	// ResetSession is invoked by the ControllerWatcher when the resolved
	// controller address set changes.
	ResetSession(ips []string, ctrlIP net.IP, ctrlMAC net.HardwareAddr) error
	// RegisterFlowACLListener registers l to receive policy pushes.
	RegisterFlowACLListener(l FlowACLListener)
	// NTPDiff returns the last measured clock skew against the controller.
	// Always zero in Standalone mode.
	NTPDiff() time.Duration
	// Heartbeat returns the live ExceptionBus snapshot (nil without a bus) in
	// both implementations.
	Heartbeat() []exception.Condition
}

// base holds the fields shared by both implementations.
type base struct {
	bus       *exception.Bus
	listeners []FlowACLListener
	ntpDiff   atomic.Duration
}

func newBase(bus *exception.Bus) base {
	return base{bus: bus}
}

func (b *base) RegisterFlowACLListener(l FlowACLListener) {
	b.listeners = append(b.listeners, l)
}

func (b *base) NTPDiff() time.Duration {
	return b.ntpDiff.Load()
}

func (b *base) Heartbeat() []exception.Condition {
	if b.bus == nil {
		return nil
	}
	return b.bus.Snapshot()
}

// New constructs the appropriate Synchronizer implementation for mode. boot
// is the RuntimeConfig already loaded from disk at process start; Standalone
// posts it verbatim as its one-and-only ConfigChanged payload, since in that
// mode the config file — not a controller — is authoritative. Managed
// ignores it: a real controller supplies its own RuntimeConfig over the
// control-plane conversation. boot may be nil.
func New(mode config.RunningMode, static *config.StaticConfig, boot *config.RuntimeConfig, bus *exception.Bus) Synchronizer {
	if mode == config.Standalone {
		return newStandalone(static, boot, bus)
	}
	return newManaged(static, bus)
}
