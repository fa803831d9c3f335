// Package graph implements the ComponentGraph builder: given a config
// snapshot, StatsRegistry, Synchronizer, and ExceptionBus, it assembles a
// fresh, not-yet-started PipelineInstance — the full set of dispatchers,
// parsers, collectors, and uniform senders wired by bounded queues.
package graph

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"
	"go.uber.org/multierr"

	"deepflow.io/agent/internal/bpfutil"
	"deepflow.io/agent/internal/captureunit"
	"deepflow.io/agent/internal/collector"
	"deepflow.io/agent/internal/component"
	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/dispatcher"
	"deepflow.io/agent/internal/external"
	"deepflow.io/agent/internal/policy"
	"deepflow.io/agent/internal/queue"
	"deepflow.io/agent/internal/ratelimit"
	"deepflow.io/agent/internal/sender"
	"deepflow.io/agent/internal/watcher"
)

// unitHandles bundles everything built for one capture unit in ComponentGraph
// step 11, so PipelineInstance can expose them without a parallel-slice mess.
type unitHandles struct {
	Unit        captureunit.Unit
	FlowQueue   *queue.Queue[collector.Record]
	LogQueue    *queue.Queue[[]byte]
	PktSeqQueue *queue.Queue[[]byte]
	Collector   *collector.Pipeline
	LogParser   *external.ProtocolLogParser
	PktSeqParser *external.PacketSequenceParser
	Handlers    []component.PacketHandlerBuilder
	Dispatcher  *dispatcher.Dispatcher
	Listener    *component.DispatcherListener
}

// PipelineInstance is the ComponentGraph's output: every owned handle plus
// the ordered start/stop sequences the Ordering guarantees require. At most
// one exists at a time; start/stop are idempotent via the running flag.
type PipelineInstance struct {
	running *abool.AtomicBool

	Policy           *policy.Policy
	Extractor        *external.LibvirtXmlExtractor
	PlatformSync     *external.PlatformSynchronizer
	ApiWatcher       *external.ApiWatcher
	Debugger         *external.Debugger
	PcapQueue        *queue.Queue[[]byte]
	PcapManager      *external.WorkerManager
	RxLeakyBucket    *ratelimit.Bucket
	L4FlowAggrQueue  *queue.Queue[[]byte]
	MetricsQueue     *queue.Queue[[]byte]
	ProtoLogQueue    *queue.Queue[[]byte]
	L4FlowAggrSender *sender.Sender
	MetricsSender    *sender.Sender
	ProtoLogSender   *sender.Sender
	StatsSender      *sender.Sender
	BPF              bpfutil.Descriptor
	PktSeqQueue      *queue.Queue[[]byte]
	PktSeqSender     *sender.Sender
	Units            []*unitHandles
	EBPFCollector    *external.EBPFCollector
	AuxSenders       []*sender.Sender // sender IDs 3..6: OTel, Prometheus, Telegraf, compressed OTel
	MetricServer     *external.MetricServer
	ControllerWatcher *watcher.Watcher

	// statsPoller periodically feeds a StatsRegistry snapshot into the stats
	// trunk queue; it has no exported handle since nothing outside Build
	// needs to reach it directly.
	statsPoller component.Component

	startOrder []component.Component
	stopOrder  []component.Component

	ctx    context.Context
	cancel context.CancelFunc
}

// Start launches every component in the documented start order. Idempotent.
func (p *PipelineInstance) Start() error {
	if !p.running.SetToIf(false, true) {
		return nil
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	var err error
	for _, c := range p.startOrder {
		if startErr := c.Start(); startErr != nil {
			err = multierr.Append(err, startErr)
		}
	}
	if err != nil {
		logrus.WithError(err).Warn("pipeline instance: one or more components failed to start")
	}
	return err
}

// Stop halts every component in the documented (reverse-ish) stop order,
// draining downstream before upstream shuts. Idempotent.
func (p *PipelineInstance) Stop() error {
	if !p.running.SetToIf(true, false) {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}

	var err error
	for _, c := range p.stopOrder {
		if stopErr := c.Stop(); stopErr != nil {
			err = multierr.Append(err, stopErr)
		}
	}
	return err
}

// Running reports whether Start has been called without a matching Stop.
func (p *PipelineInstance) Running() bool {
	return p.running.IsSet()
}

// OnConfigChange forwards a hot-appliable ConfigChanged snapshot to every
// component this instance owns, in the same order Start uses.
func (p *PipelineInstance) OnConfigChange(snapshot *config.ChangedConfig) {
	for _, c := range p.startOrder {
		c.OnConfigChange(snapshot)
	}
}

// UnitListeners exposes each capture unit's DispatcherListener in
// construction order, so the Supervisor can run the dispatcher fan-out
// table against a live pipeline without reaching into unitHandles directly.
func (p *PipelineInstance) UnitListeners() []*component.DispatcherListener {
	listeners := make([]*component.DispatcherListener, len(p.Units))
	for i, u := range p.Units {
		listeners[i] = u.Listener
	}
	return listeners
}
