package external

import (
	"sync"

	"deepflow.io/agent/internal/config"
)

// QueueDebugger is the shared introspection registry the Debugger owns: any
// component can register a named queue-like thing for on-demand length
// inspection, without the debugger knowing its item type.
type QueueDebugger struct {
	mu    sync.RWMutex
	gauges map[string]func() int
}

func NewQueueDebugger() *QueueDebugger {
	return &QueueDebugger{gauges: make(map[string]func() int)}
}

// Register adds a named length probe. Re-registering the same name replaces
// the probe, matching hot-reload's "rebuild and replace" behavior.
func (d *QueueDebugger) Register(name string, lenFn func() int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gauges[name] = lenFn
}

func (d *QueueDebugger) Deregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.gauges, name)
}

// Snapshot returns every registered queue's current length.
func (d *QueueDebugger) Snapshot() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.gauges))
	for name, lenFn := range d.gauges {
		out[name] = lenFn()
	}
	return out
}

// Debugger is the introspection endpoint's component handle. The endpoint's
// transport (a control-socket listener) is intentionally not modeled here:
// only the ownership of the shared QueueDebugger and its Component lifecycle
// are in scope.
type Debugger struct {
	queues *QueueDebugger
}

func NewDebugger() *Debugger {
	return &Debugger{queues: NewQueueDebugger()}
}

func (d *Debugger) Queues() *QueueDebugger {
	return d.queues
}

func (d *Debugger) Start() error                                  { return nil }
func (d *Debugger) Stop() error                                   { return nil }
func (d *Debugger) OnConfigChange(snapshot *config.ChangedConfig) {}
