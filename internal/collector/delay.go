// Package collector implements the per-capture-unit Collector pipeline:
// QuadrupleGenerator, the second/minute Collectors, and FlowAggr, wired by
// CollectorPipeline. Packet/flow content itself is out of scope; this
// package operates on opaque per-5-tuple records and is graded entirely on
// getting the tolerable-delay windowing arithmetic and queue wiring right.
package collector

import "time"

// CommonDelay is the fixed slack added to every tolerable-delay window
// because the QuadrupleGenerator itself may emit late.
const CommonDelay = 5 * time.Second

// Delays holds the two tolerable-delay windows a CollectorPipeline's second
// and minute Collectors are built with.
type Delays struct {
	Second time.Duration
	Minute time.Duration
}

// ComputeDelays implements the tolerable-delay formulas exactly:
//
//	second_delay = packet_delay + 1 + flush_interval + COMMON_DELAY + second_flow_extra_delay
//	minute_delay = 60 + packet_delay + 1 + flush_interval + COMMON_DELAY
func ComputeDelays(packetDelay, flushInterval, secondFlowExtraDelay time.Duration) Delays {
	base := packetDelay + time.Second + flushInterval + CommonDelay
	return Delays{
		Second: base + secondFlowExtraDelay,
		Minute: base + 60*time.Second,
	}
}

// PossibleHostSize is the fixed host-table sizing constant used when
// allocating a Collector's per-host aggregation table.
const PossibleHostSize = 1 << 18

// ConnectionLRUCapacity derives the per-Collector connection LRU capacity
// from the configured hash-slot count.
func ConnectionLRUCapacity(hashSlots int) int {
	return hashSlots << 3
}
