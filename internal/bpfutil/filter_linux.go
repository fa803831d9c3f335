//go:build linux

package bpfutil

import (
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// Compile fills in Descriptor.Program with the kernel-form bytecode for
// d.Expression, as captured on a link of the given type (typically
// layers.LinkTypeEthernet). On Linux this is what gets attached to the
// AF_PACKET socket directly, matching the teacher's gopacket-based capture
// stack instead of re-parsing the expression at userspace per packet.
func Compile(d Descriptor, linkType layers.LinkType, snaplen int) (Descriptor, error) {
	instrs, err := pcap.CompileBPFFilter(linkType, snaplen, d.Expression)
	if err != nil {
		return d, err
	}
	d.Program = make([]BPFInstruction, len(instrs))
	for i, in := range instrs {
		d.Program[i] = BPFInstruction{Op: in.Code, Jt: uint16(in.Jt), Jf: uint16(in.Jf), K: in.K}
	}
	return d, nil
}
