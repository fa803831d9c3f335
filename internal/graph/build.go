package graph

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"deepflow.io/agent/internal/bpfutil"
	"deepflow.io/agent/internal/captureunit"
	"deepflow.io/agent/internal/collector"
	"deepflow.io/agent/internal/component"
	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/dispatcher"
	"deepflow.io/agent/internal/exception"
	"deepflow.io/agent/internal/external"
	"deepflow.io/agent/internal/policy"
	"deepflow.io/agent/internal/queue"
	"deepflow.io/agent/internal/ratelimit"
	"deepflow.io/agent/internal/sender"
	"deepflow.io/agent/internal/stats"
	"deepflow.io/agent/internal/synchronizer"
	"deepflow.io/agent/internal/watcher"
)

const (
	defaultIngesterPort     = 20033
	defaultVxlanPort        = 4789
	defaultControllerPort   = 20035
	defaultProxyPort        = 30033
	defaultAnalyzerPort     = 30035
	defaultMetricServerAddr = ":38086"
	minFreeMemoryMB         = 256
	defaultPcapWorkers      = 4
	statsSnapshotInterval   = 5 * time.Second
)

// Dependencies bundles everything Build needs from outside the graph
// package: the static boot config, the live ChangedConfig snapshot, and the
// cross-cutting collaborators every component shares.
type Dependencies struct {
	Static       *config.StaticConfig
	Changed      *config.ChangedConfig
	Stats        *stats.Registry
	Synchronizer synchronizer.Synchronizer
	Bus          *exception.Bus
	Mode         config.RunningMode
	CtrlIP       net.IP
	CtrlMAC      net.HardwareAddr
}

func senderConfig(endpoint string) func() sender.Config {
	return func() sender.Config {
		return sender.Config{
			AnalyzerAddr:  endpoint,
			FlushInterval: time.Second,
			MaxBatchItems: 1024,
			DialTimeout:   5 * time.Second,
		}
	}
}

// Build assembles a fresh, not-yet-started PipelineInstance following the
// exact 15-step deterministic construction order. Every queue is registered
// with deps.Stats before any producer could touch it.
func Build(deps Dependencies) (*PipelineInstance, error) {
	rt := deps.Changed.Runtime
	ingesterAddr := fmt.Sprintf("%s:%d", deps.Static.ControllerIPs[0], defaultIngesterPort)

	p := &PipelineInstance{running: abool.New()}

	// Step 1: stats uniform sender first, so later counter registrations
	// already have somewhere to drain to.
	statsQueue, err := queue.New[[]byte](deps.Stats, "stats", "0", rt.YamlConfig.MetricsQueueSize)
	if err != nil {
		return nil, fmt.Errorf("graph: stats queue: %w", err)
	}
	// Each sender registers as "<module>_sender" so it does not collide with
	// its queue's (module, index) registration.
	p.StatsSender, err = sender.New(0, "stats_sender", byteQueueAdapter{statsQueue}, senderConfig(ingesterAddr), deps.Stats, deps.Bus)
	if err != nil {
		return nil, fmt.Errorf("graph: stats sender: %w", err)
	}
	p.statsPoller = newStatsSnapshotComponent(deps.Stats, statsQueue, statsSnapshotInterval)

	// Step 2: environment preconditions.
	if err := checkAgentUnique(deps.Static.PIDFile); err != nil {
		return nil, err
	}
	if err := checkControllerIPSanity(deps.Static.ControllerIPs); err != nil {
		return nil, err
	}
	if err := checkFreeDisk(deps.Static.DataDir, deps.Bus); err != nil {
		return nil, err
	}
	if err := checkKernelVersion(rt.CaptureMode, deps.Bus); err != nil {
		return nil, err
	}
	if err := checkSourceInterfacesExist(rt.CaptureMode, rt.SourceInterfaces, deps.Bus); err != nil {
		return nil, err
	}

	// Step 3: Policy with max(1, |src_interfaces|) shards, registered as a
	// flow-ACL listener.
	p.Policy = policy.New(len(rt.SourceInterfaces))
	deps.Synchronizer.RegisterFlowACLListener(p.Policy)

	// Step 4: leaf services.
	p.Extractor = external.NewLibvirtXmlExtractor(deps.Static.DataDir)
	p.PlatformSync = external.NewPlatformSynchronizer(5*time.Second, p.Extractor)
	apiWatcherEnabled := external.Current.EBPFAvailable() && deps.Mode == config.Managed
	p.ApiWatcher = external.NewApiWatcher(apiWatcherEnabled, 10*time.Second)
	p.Debugger = external.NewDebugger()

	// Step 5: pcap intake queue + WorkerManager.
	p.PcapQueue, err = queue.New[[]byte](deps.Stats, "pcap", "0", rt.YamlConfig.FlowQueueSize)
	if err != nil {
		return nil, fmt.Errorf("graph: pcap queue: %w", err)
	}
	p.PcapManager = external.NewWorkerManager(p.PcapQueue, func(frame []byte) {}, defaultPcapWorkers)
	p.Debugger.Queues().Register("pcap/0", p.PcapQueue.Len)

	// Step 6: rx_leaky_bucket — unlimited in analyzer mode, else capped at
	// the configured global PPS threshold.
	if rt.CaptureMode == config.CaptureAnalyzer {
		p.RxLeakyBucket = ratelimit.New(ratelimit.Unlimited)
	} else {
		p.RxLeakyBucket = ratelimit.New(int64(rt.GlobalPPSThreshold))
	}

	// Step 7: three trunk sender queues + their UniformSenders.
	p.L4FlowAggrQueue, err = queue.New[[]byte](deps.Stats, "l4_flow_aggr", "1", rt.YamlConfig.L4FlowAggrQueueSize)
	if err != nil {
		return nil, fmt.Errorf("graph: l4 flow aggr queue: %w", err)
	}
	p.L4FlowAggrSender, err = sender.New(1, "l4_flow_aggr_sender", byteQueueAdapter{p.L4FlowAggrQueue}, senderConfig(ingesterAddr), deps.Stats, deps.Bus)
	if err != nil {
		return nil, fmt.Errorf("graph: l4 flow aggr sender: %w", err)
	}
	p.Debugger.Queues().Register("l4_flow_aggr/1", p.L4FlowAggrQueue.Len)

	p.MetricsQueue, err = queue.New[[]byte](deps.Stats, "metrics", "2", rt.YamlConfig.MetricsQueueSize)
	if err != nil {
		return nil, fmt.Errorf("graph: metrics queue: %w", err)
	}
	p.MetricsSender, err = sender.New(2, "metrics_sender", byteQueueAdapter{p.MetricsQueue}, senderConfig(ingesterAddr), deps.Stats, deps.Bus)
	if err != nil {
		return nil, fmt.Errorf("graph: metrics sender: %w", err)
	}
	p.Debugger.Queues().Register("metrics/2", p.MetricsQueue.Len)

	p.ProtoLogQueue, err = queue.New[[]byte](deps.Stats, "proto_log", "5", rt.YamlConfig.ProtoLogQueueSize)
	if err != nil {
		return nil, fmt.Errorf("graph: proto log queue: %w", err)
	}
	p.ProtoLogSender, err = sender.New(5, "proto_log_sender", byteQueueAdapter{p.ProtoLogQueue}, senderConfig(ingesterAddr), deps.Stats, deps.Bus)
	if err != nil {
		return nil, fmt.Errorf("graph: proto log sender: %w", err)
	}
	p.Debugger.Queues().Register("proto_log/5", p.ProtoLogQueue.Len)

	// Step 8: BPF filter descriptor, derived from the controller address
	// family plus the well-known ports a dispatcher must never capture back.
	p.BPF = bpfutil.Build(deps.CtrlIP != nil && deps.CtrlIP.To4() == nil, defaultVxlanPort, defaultControllerPort, defaultProxyPort, defaultAnalyzerPort)

	// Step 9: packet-sequence trunk queue + sender.
	p.PktSeqQueue, err = queue.New[[]byte](deps.Stats, "pkt_seq", "6", rt.YamlConfig.PacketSequenceQueueSize)
	if err != nil {
		return nil, fmt.Errorf("graph: pkt seq queue: %w", err)
	}
	p.PktSeqSender, err = sender.New(6, "pkt_seq_sender", byteQueueAdapter{p.PktSeqQueue}, senderConfig(ingesterAddr), deps.Stats, deps.Bus)
	if err != nil {
		return nil, fmt.Errorf("graph: pkt seq sender: %w", err)
	}
	p.Debugger.Queues().Register("pkt_seq/6", p.PktSeqQueue.Len)

	// Step 10: enumerate capture units. Namespace listing is only wired when
	// an extra-netns regex is actually configured, keeping Enumerate's
	// nil-lister short-circuit exercised on the common path.
	var lister captureunit.NamespaceLister
	if rt.ExtraNetnsRegex != "" {
		lister = external.NewNamespaceLister()
	}
	units, err := captureunit.Enumerate(rt.SourceInterfaces, rt.ExtraNetnsRegex, lister)
	if err != nil {
		return nil, fmt.Errorf("graph: enumerate capture units: %w", err)
	}

	// Step 11: build each capture unit's chain.
	delays := collector.ComputeDelays(rt.PacketDelay, rt.FlushInterval, rt.SecondFlowExtraDelay)
	for i, unit := range units {
		uh, err := buildUnit(i, unit, rt, delays, deps, p)
		if err != nil {
			return nil, err
		}
		p.Units = append(p.Units, uh)
	}

	// Step 12: optional eBPF collector, built only where the platform can
	// actually attach eBPF programs.
	if external.Current.EBPFAvailable() {
		p.EBPFCollector = external.NewEBPFCollector(func(event []byte) {
			p.ProtoLogQueue.Send(event)
		}, time.Second)
	}

	// Step 13: four auxiliary sender trunks (IDs 3..6) and the MetricServer
	// that fans pushed metrics into them.
	auxNames := []string{"otel", "prometheus", "telegraf", "otel_compressed"}
	trunks := make([]external.MetricTrunk, len(auxNames))
	for idx, name := range auxNames {
		id := idx + 3
		q, err := queue.New[[]byte](deps.Stats, name, fmt.Sprint(id), rt.YamlConfig.MetricsQueueSize)
		if err != nil {
			return nil, fmt.Errorf("graph: %s queue: %w", name, err)
		}
		s, err := sender.New(id, name+"_sender", byteQueueAdapter{q}, senderConfig(ingesterAddr), deps.Stats, deps.Bus)
		if err != nil {
			return nil, fmt.Errorf("graph: %s sender: %w", name, err)
		}
		p.AuxSenders = append(p.AuxSenders, s)
		qq := q
		trunks[idx] = func(body []byte) { qq.Send(body) }
	}
	p.MetricServer = external.NewMetricServer(defaultMetricServerAddr, trunks[0], trunks[1], trunks[2], trunks[3])

	// Step 14: Build does not touch remote-log settings. logging.Init applies
	// the remote settings in deps.Static.Log once at process start; neither
	// Build nor its caller re-applies them when a pipeline is rebuilt.

	// Step 15: ControllerWatcher, seeded with the static domain list and the
	// currently-resolved controller IPs.
	p.ControllerWatcher = watcher.New(rt.ControllerEndpoints, deps.Static.ControllerIPs, deps.Synchronizer, deps.Stats)

	buildOrder(p, deps)
	return p, nil
}

func buildUnit(index int, unit captureunit.Unit, rt config.RuntimeConfig, delays collector.Delays, deps Dependencies, p *PipelineInstance) (*unitHandles, error) {
	name := fmt.Sprintf("unit-%d", index)

	flowQueue, err := queue.New[collector.Record](deps.Stats, "flow", name, rt.YamlConfig.FlowQueueSize)
	if err != nil {
		return nil, fmt.Errorf("graph: %s flow queue: %w", name, err)
	}
	logQueue, err := queue.New[[]byte](deps.Stats, "log", name, rt.YamlConfig.LogQueueSize)
	if err != nil {
		return nil, fmt.Errorf("graph: %s log queue: %w", name, err)
	}
	pktSeqQueue, err := queue.New[[]byte](deps.Stats, "pkt_seq", name, rt.YamlConfig.PacketSequenceQueueSize)
	if err != nil {
		return nil, fmt.Errorf("graph: %s pkt seq queue: %w", name, err)
	}
	p.Debugger.Queues().Register("flow/"+name, flowQueue.Len)
	p.Debugger.Queues().Register("log/"+name, logQueue.Len)
	p.Debugger.Queues().Register("pkt_seq/"+name, pktSeqQueue.Len)

	aggr := collector.NewFlowAggr(func(r collector.Record) { p.L4FlowAggrQueue.Send([]byte(r.Key)) })

	var secondC, minuteC *collector.Collector
	if rt.MetricsType == config.MetricsSecond || rt.MetricsType == config.MetricsBoth {
		secondC = collector.NewCollector(delays.Second, rt.YamlConfig.HashSlots, func(r collector.Record) { p.MetricsQueue.Send([]byte(r.Key)) })
	}
	if rt.MetricsType == config.MetricsMinute || rt.MetricsType == config.MetricsBoth {
		minuteC = collector.NewCollector(delays.Minute, rt.YamlConfig.HashSlots, func(r collector.Record) { p.MetricsQueue.Send([]byte(r.Key)) })
	}

	gen := collector.NewQuadrupleGenerator(flowQueue.Recv, secondSink(secondC), secondSink(minuteC), aggr.Add)
	pipeline := &collector.Pipeline{Generator: gen, Second: secondC, Minute: minuteC, Aggr: aggr}

	logParser := external.NewProtocolLogParser(name, logQueue, func(rec []byte) { p.ProtoLogQueue.Send(rec) }, p.RxLeakyBucket)
	pktSeqParser := external.NewPacketSequenceParser(name, pktSeqQueue, func(rec []byte) { p.PktSeqQueue.Send(rec) })

	handlers := []component.PacketHandlerBuilder{
		{Kind: component.HandlerPcap},
		{Kind: component.HandlerNPB},
	}

	ifaces := rt.SourceInterfaces
	if unit.Interface != "" {
		ifaces = []string{unit.Interface}
	}

	d, listener, err := dispatcher.NewBuilder(name).
		WithCtrlMAC(deps.CtrlMAC).
		WithRateLimiter(p.RxLeakyBucket).
		WithBPF(p.BPF).
		WithPolicy(p.Policy).
		WithExceptionBus(deps.Bus).
		Build()
	if err != nil {
		return nil, fmt.Errorf("graph: %s dispatcher: %w", name, err)
	}
	listener.Namespace = unit.Namespace
	listener.Kind = listenerKindFor(rt.CaptureMode)
	// The actual capture reconfiguration this listener drives lives inside
	// the Dispatcher's own capture internals, which are out of scope here;
	// this push target only records that a hot-reconfiguration reached the
	// unit, so the initial config push below has somewhere to land.
	listener.Push = func(update component.DispatcherUpdate) {
		logrus.WithField("unit", name).Debug("dispatcher listener: update applied")
	}

	listener.Push(component.DispatcherUpdate{
		Interfaces: ifaces,
		TapTypes:   deps.Changed.TapTypes,
		Blacklist:  deps.Changed.Blacklist,
		VMMacAddrs: deps.Changed.VMMacAddrs,
	})

	return &unitHandles{
		Unit:         unit,
		FlowQueue:    flowQueue,
		LogQueue:     logQueue,
		PktSeqQueue:  pktSeqQueue,
		Collector:    pipeline,
		LogParser:    logParser,
		PktSeqParser: pktSeqParser,
		Handlers:     handlers,
		Dispatcher:   d,
		Listener:     listener,
	}, nil
}

func listenerKindFor(mode config.CaptureMode) component.ListenerKind {
	switch mode {
	case config.CaptureMirror:
		return component.ListenerMirror
	case config.CaptureAnalyzer:
		return component.ListenerAnalyzer
	default:
		return component.ListenerLocal
	}
}

func secondSink(c *collector.Collector) collector.Sink {
	if c == nil {
		return nil
	}
	return c.Add
}

// buildOrder assembles the documented start/stop sequences from the handles
// Build has already constructed. Sender and collector handles don't satisfy
// component.Component directly (Sender.Start takes a context and returns
// nothing; Pipeline.Start takes a context and has no Stop at all), so both
// are wrapped in adapters that own their own derived context exactly like
// every other self-managed component in this tree.
func buildOrder(p *PipelineInstance, deps Dependencies) {
	snd := func(s *sender.Sender) component.Component { return newSenderComponent(s) }
	col := func(c *collector.Pipeline) component.Component { return newCollectorComponent(c) }

	p.startOrder = []component.Component{
		p.Extractor,
		p.PcapManager,
	}
	if deps.Mode == config.Managed {
		p.startOrder = append(p.startOrder, p.PlatformSync, p.ApiWatcher)
	}
	p.startOrder = append(p.startOrder,
		p.Debugger,
		snd(p.MetricsSender), snd(p.ProtoLogSender), snd(p.L4FlowAggrSender), snd(p.PktSeqSender), snd(p.StatsSender), p.statsPoller,
	)

	for _, u := range p.Units {
		p.startOrder = append(p.startOrder, u.PktSeqParser)
	}
	for _, u := range p.Units {
		if gateDispatcherStart(deps.Changed) {
			p.startOrder = append(p.startOrder, u.Dispatcher)
		} else {
			logrus.WithField("unit", u.Unit.Interface).Warn("graph: dispatcher start skipped by free-memory gate")
		}
	}
	for _, u := range p.Units {
		p.startOrder = append(p.startOrder, u.LogParser)
	}
	cols := make([]component.Component, len(p.Units))
	for i, u := range p.Units {
		cols[i] = col(u.Collector)
	}
	p.startOrder = append(p.startOrder, cols...)
	if p.EBPFCollector != nil {
		p.startOrder = append(p.startOrder, p.EBPFCollector)
	}
	for _, s := range p.AuxSenders {
		p.startOrder = append(p.startOrder, snd(s))
	}
	if deps.Mode == config.Managed {
		p.startOrder = append(p.startOrder, p.MetricServer)
	}
	p.startOrder = append(p.startOrder, watcherComponent{p.ControllerWatcher})

	stop := make([]component.Component, 0, len(p.startOrder))
	for _, u := range p.Units {
		stop = append(stop, u.Dispatcher)
	}
	if deps.Mode == config.Managed {
		stop = append(stop, p.PlatformSync, p.ApiWatcher)
	}
	stop = append(stop, cols...)
	for _, u := range p.Units {
		stop = append(stop, u.LogParser, u.PktSeqParser)
	}
	if p.EBPFCollector != nil {
		stop = append(stop, p.EBPFCollector)
	}
	stop = append(stop, snd(p.L4FlowAggrSender), snd(p.MetricsSender), snd(p.ProtoLogSender), snd(p.PktSeqSender), snd(p.StatsSender), p.statsPoller)
	stop = append(stop, p.Extractor, p.Debugger)
	if deps.Mode == config.Managed {
		stop = append(stop, p.MetricServer)
	}
	for _, s := range p.AuxSenders {
		stop = append(stop, snd(s))
	}
	stop = append(stop, watcherComponent{p.ControllerWatcher})
	stop = append(stop, p.PcapManager)
	p.stopOrder = stop
}

// gateDispatcherStart applies the documented free-memory gate: skipped in
// Analyzer mode or once a Kubernetes cluster id has been resolved.
func gateDispatcherStart(changed *config.ChangedConfig) bool {
	if changed.Runtime.CaptureMode == config.CaptureAnalyzer || changed.KubernetesClusterID != "" {
		return true
	}
	freeMB, err := external.Current.FreeMemoryMB()
	if err != nil {
		return true
	}
	return freeMB >= minFreeMemoryMB
}

// senderComponent adapts *sender.Sender (whose Start takes a context and
// whose Stop returns nothing) to component.Component, managing its own
// derived context the same way every self-managed component in this tree
// does.
type senderComponent struct {
	s      *sender.Sender
	ctx    context.Context
	cancel context.CancelFunc
}

func newSenderComponent(s *sender.Sender) *senderComponent {
	return &senderComponent{s: s}
}

func (c *senderComponent) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.s.Start(c.ctx)
	return nil
}

func (c *senderComponent) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.s.Stop()
	return nil
}

func (c *senderComponent) OnConfigChange(snapshot *config.ChangedConfig) {}

// collectorComponent adapts collector.Pipeline (Start(ctx), no Stop at all —
// it drains entirely via context cancellation) to component.Component.
type collectorComponent struct {
	pipeline *collector.Pipeline
	cancel   context.CancelFunc
}

func newCollectorComponent(pipeline *collector.Pipeline) *collectorComponent {
	return &collectorComponent{pipeline: pipeline}
}

func (c *collectorComponent) Start() error {
	var ctx context.Context
	ctx, c.cancel = context.WithCancel(context.Background())
	c.pipeline.Start(ctx)
	return nil
}

func (c *collectorComponent) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *collectorComponent) OnConfigChange(snapshot *config.ChangedConfig) {}

// watcherComponent adapts watcher.Watcher's Start()/Stop() (no error
// returns) to component.Component.
type watcherComponent struct {
	w *watcher.Watcher
}

func (w watcherComponent) Start() error {
	w.w.Start()
	return nil
}

func (w watcherComponent) Stop() error {
	w.w.Stop()
	return nil
}

func (w watcherComponent) OnConfigChange(snapshot *config.ChangedConfig) {}

// statsSnapshotComponent periodically serializes the registry's own snapshot
// and feeds it to the stats trunk queue — a minimal stand-in for whatever
// message format the real ingester protocol uses for self-observability
// data, independent of the Prometheus scrape path.
type statsSnapshotComponent struct {
	reg      *stats.Registry
	queue    *queue.Queue[[]byte]
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func newStatsSnapshotComponent(reg *stats.Registry, q *queue.Queue[[]byte], interval time.Duration) *statsSnapshotComponent {
	return &statsSnapshotComponent{reg: reg, queue: q, interval: interval, done: make(chan struct{})}
}

func (c *statsSnapshotComponent) Start() error {
	var ctx context.Context
	ctx, c.cancel = context.WithCancel(context.Background())
	go c.loop(ctx)
	return nil
}

func (c *statsSnapshotComponent) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

func (c *statsSnapshotComponent) OnConfigChange(snapshot *config.ChangedConfig) {}

func (c *statsSnapshotComponent) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := c.reg.Snapshot()
			c.queue.Send([]byte(fmt.Sprintf("%d countables", len(snap))))
		}
	}
}
