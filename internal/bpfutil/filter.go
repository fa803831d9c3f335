// Package bpfutil builds the BPF filter descriptor consumed by a Dispatcher:
// a string expression, which Compile (Linux builds only) can turn into a
// kernel-form bytecode program.
package bpfutil

import "fmt"

// Descriptor is the combined filter form handed to a Dispatcher builder.
// Build sets only Expression. Program is filled in only by Compile, which
// the graph builder does not call, so a Dispatcher receives a nil Program
// on every platform.
type Descriptor struct {
	Expression string
	Program    []BPFInstruction
}

// BPFInstruction mirrors the four fields of a classic BPF instruction, kept
// independent of any capture library's type here so this package compiles
// without libpcap on non-Linux builds; Compile in filter_linux.go converts
// from gopacket's pcap.BPFInstruction.
type BPFInstruction struct {
	Op, Jt, Jf uint16
	K          uint32
}

// Build composes the filter expression for a dispatcher: family-qualified
// (ctrl IP family) plus the well-known DeepFlow control ports that must
// never be captured back on themselves (vxlan, controller, proxy, analyzer).
func Build(ctrlIPv6 bool, vxlanPort, controllerPort, proxyPort, analyzerPort int) Descriptor {
	family := "ip"
	if ctrlIPv6 {
		family = "ip6"
	}
	expr := fmt.Sprintf(
		"%s and not (port %d or port %d or port %d or port %d)",
		family, vxlanPort, controllerPort, proxyPort, analyzerPort,
	)
	return Descriptor{Expression: expr}
}
