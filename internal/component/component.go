// Package component defines the uniform Component contract every handle
// inside a PipelineInstance satisfies, plus the tagged PacketHandlerBuilder
// and DispatcherListener variant types used to model sinks/listeners
// without an inheritance hierarchy (design note: "Dynamic dispatch on sinks
// and handlers").
package component

import "deepflow.io/agent/internal/config"

// Component is the uniform start/stop/on_config_change contract. Start and
// Stop must each be idempotent — callers may invoke either twice.
type Component interface {
	Start() error
	Stop() error
	OnConfigChange(snapshot *config.ChangedConfig)
}

// HandlerKind tags a PacketHandlerBuilder variant.
type HandlerKind int

const (
	HandlerPcap HandlerKind = iota
	HandlerNPB
)

// PacketHandlerBuilder is a tagged variant, not an interface hierarchy: new
// sink kinds add a HandlerKind constant plus a case in the switch that
// consumes this type, rather than a new implementing type.
type PacketHandlerBuilder struct {
	Kind HandlerKind
	// NPBTarget is meaningful only when Kind == HandlerNPB.
	NPBTarget string
	// PcapPath is meaningful only when Kind == HandlerPcap.
	PcapPath string
}

// ListenerKind tags a DispatcherListener variant per the capture-mode fan-out table.
type ListenerKind int

const (
	ListenerLocal ListenerKind = iota
	ListenerMirror
	ListenerAnalyzer
	ListenerOther
)

// IfMacSource describes where a listener's interface MAC comes from, as
// referenced by the fan-out table's Local/Mirror/Analyzer distinction.
type IfMacSource int

const (
	IfMacSourceInterface IfMacSource = iota
	IfMacSourceIfMac
)

// DispatcherListener is the tagged receiver of hot dispatcher reconfiguration
// pushed by the Supervisor's dispatcher_listener_callback. Namespace
// is empty for root-namespace listeners.
type DispatcherListener struct {
	Kind      ListenerKind
	Namespace string

	Push func(update DispatcherUpdate)
}

// DispatcherUpdate is what the Supervisor pushes into a DispatcherListener on
// every hot reconfiguration.
type DispatcherUpdate struct {
	Interfaces  []string
	MacSource   IfMacSource
	TridentType string
	Blacklist   []string
	VMMacAddrs  []string
	TapTypes    []config.TapType
}
