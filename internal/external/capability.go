// Package external models every collaborator the supervisor treats as an
// opaque component: it owns only a start/stop/on_config_change contract and,
// where the underlying capability is platform-specific (eBPF, cgroups,
// netns enumeration, kernel BPF), a Capability seam so non-Linux builds get
// an always-succeeds-or-always-absent stub instead of a build failure. The
// supervisor's state machine must behave identically with or without these
// capabilities — no Linux-only branch appears outside this package.
package external

// Capability exposes the platform checks the boot sequence and the
// Dispatcher free-memory gate need, without the caller knowing which OS it
// is running on.
type Capability interface {
	// FreeDiskMB reports free disk space on the data directory's filesystem.
	FreeDiskMB(path string) (uint64, error)
	// FreeMemoryMB reports free system memory.
	FreeMemoryMB() (uint64, error)
	// KernelSupported reports whether the running kernel meets the minimum
	// version the eBPF collector and AF_PACKET capture require.
	KernelSupported() (bool, string)
	// EBPFAvailable reports whether the eBPF collector can be built on this
	// platform at all.
	EBPFAvailable() bool
}

// Current is the process-wide Capability, chosen at init time by build tag.
var Current Capability = newCapability()
