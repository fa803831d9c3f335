// Package supervisor implements the Supervisor: the top-level state machine
// that reads AgentState transitions off a state.Cell and drives a
// PipelineInstance's lifecycle in response — building it on the first
// ConfigChanged, hot-applying or restarting on later ones, and tearing it
// down on Disabled/Terminated.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"deepflow.io/agent/internal/component"
	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/dispatcher"
	"deepflow.io/agent/internal/exception"
	"deepflow.io/agent/internal/external"
	"deepflow.io/agent/internal/graph"
	"deepflow.io/agent/internal/state"
	"deepflow.io/agent/internal/stats"
	"deepflow.io/agent/internal/synchronizer"
)

// Exit codes Run returns, consumed by cmd's foreground runner to decide
// whether to re-exec the process.
const (
	ExitOK               = 0
	ExitSupervisorFailed = 1
	// ExitRestartRequested borrows sysexits.h's EX_TEMPFAIL: "not an error
	// with you, try again" — cmd's start command re-execs the binary on it.
	ExitRestartRequested = 75
)

const (
	minFreeDiskMB   = 256
	minFreeMemoryMB = 256
	guardInterval   = 10 * time.Second
	monitorInterval = 30 * time.Second
	restartDelay    = time.Second
)

// Supervisor owns one PipelineInstance at a time plus the boot-time
// collaborators (Synchronizer, Guard, Monitor) that outlive every pipeline
// rebuild.
type Supervisor struct {
	static *config.StaticConfig
	mode   config.RunningMode

	cell  *state.Cell
	bus   *exception.Bus
	stats *stats.Registry
	sync  synchronizer.Synchronizer

	guard    *external.Guard
	monitor  *external.Monitor
	resolver dispatcher.InterfaceResolver

	pipeline    *graph.PipelineInstance
	haveYaml    bool
	currentYaml config.YamlConfig
	tapTypes    [][]config.TapType // cached per-unit, parallel to pipeline.Units

	ctrlIP  net.IP
	ctrlMAC net.HardwareAddr

	running *abool.AtomicBool
	cancel  context.CancelFunc
}

// New builds a Supervisor from a loaded StaticConfig and the RuntimeConfig
// loaded alongside it. boot is what Standalone mode's Synchronizer posts as
// its one-and-only ConfigChanged payload (Managed mode ignores it — the
// controller supplies its own). reg is the Prometheus registerer the
// StatsRegistry exports into (pass nil in tests).
func New(static *config.StaticConfig, boot *config.RuntimeConfig, reg prometheus.Registerer) *Supervisor {
	bus := exception.New()
	statsReg := stats.New(reg)
	sync := synchronizer.New(static.AgentMode, static, boot, bus)

	return &Supervisor{
		static:   static,
		mode:     static.AgentMode,
		cell:     state.NewCell(),
		bus:      bus,
		stats:    statsReg,
		sync:     sync,
		guard:    external.NewGuard(static.DataDir, minFreeDiskMB, minFreeMemoryMB, guardInterval, bus, nil),
		monitor:  external.NewMonitor(statsReg, monitorInterval),
		resolver: external.NewInterfaceResolver(),
		running:  abool.New(),
	}
}

// Cell exposes the AgentState cell so a test (or an out-of-process control
// surface standing in for the real controller conversation) can post
// transitions directly, the same way the Synchronizer does in production.
func (s *Supervisor) Cell() *state.Cell {
	return s.cell
}

// Bus exposes the shared ExceptionBus for diagnostics commands.
func (s *Supervisor) Bus() *exception.Bus {
	return s.bus
}

// Stats exposes the shared StatsRegistry for diagnostics commands.
func (s *Supervisor) Stats() *stats.Registry {
	return s.stats
}

// Run performs the boot sequence, then blocks consuming AgentState
// transitions until a Terminated snapshot is read or the synchronizer fails
// to start. Idempotent: a second call while already running returns
// immediately with ExitOK.
func (s *Supervisor) Run() int {
	if !s.running.SetToIf(false, true) {
		return ExitOK
	}
	defer s.running.UnSet()

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	s.logBootInfo()
	s.resolveCtrlAddr()

	ntp := ntpCountable{s.sync}
	if err := s.stats.Register("ntp", "0", ntp); err != nil {
		logrus.WithError(err).Warn("supervisor: ntp countable already registered")
	}
	defer s.stats.Deregister("ntp", "0")

	if err := s.sync.Start(ctx, s.cell); err != nil {
		logrus.WithError(err).Error("supervisor: synchronizer failed to start")
		return ExitSupervisorFailed
	}
	defer s.sync.Stop()

	if err := s.guard.Start(); err != nil {
		logrus.WithError(err).Warn("supervisor: guard failed to start")
	}
	defer s.guard.Stop()
	if err := s.monitor.Start(); err != nil {
		logrus.WithError(err).Warn("supervisor: monitor failed to start")
	}
	defer s.monitor.Stop()

	logrus.Info("supervisor: boot sequence complete, awaiting agent state")

	for {
		snap := s.cell.Wait()
		switch snap.Phase {
		case state.Running:
			// Nothing to do: Running carries no payload and only ever
			// follows a Terminated->Running reset, which this process
			// never performs on itself.
		case state.ConfigChanged:
			if code, exit := s.onConfigChanged(snap.Payload); exit {
				return code
			}
		case state.Disabled:
			logrus.Warn("supervisor: agent disabled, stopping pipeline in place")
			s.stopPipeline()
		case state.Terminated:
			logrus.Info("supervisor: terminated, shutting down")
			s.stopPipeline()
			return ExitOK
		default:
			logrus.WithField("phase", snap.Phase).Warn("supervisor: unknown agent state phase")
		}
	}
}

// Stop cancels the running sequence early, as if a Terminated snapshot had
// arrived; used by signal handlers. Idempotent.
func (s *Supervisor) Stop() {
	s.cell.Post(state.Snapshot{Phase: state.Terminated})
}

func (s *Supervisor) logBootInfo() {
	fields := logrus.Fields{
		"mode":           s.mode,
		"controller_ips": s.static.ControllerIPs,
		"pid":            os.Getpid(),
	}
	if os.Getppid() == 1 {
		fields["container_aware"] = true
		logrus.WithFields(fields).Info("supervisor: parent is pid 1, running as container init's direct child")
	} else {
		logrus.WithFields(fields).Info("supervisor: starting")
	}
}

// resolveCtrlAddr resolves the agent's control-plane IP from the first
// configured controller address. MAC derivation is left nil — the real
// control-plane MAC comes from ARP/neighbor resolution, the same capability
// boundary internal/watcher's deriveCtrlMAC documents.
func (s *Supervisor) resolveCtrlAddr() {
	if len(s.static.ControllerIPs) == 0 {
		return
	}
	s.ctrlIP = net.ParseIP(s.static.ControllerIPs[0])
}

// onConfigChanged implements the three ConfigChanged branches: first build,
// same-topology hot apply, or different-topology restart.
func (s *Supervisor) onConfigChanged(changed *config.ChangedConfig) (exitCode int, shouldExit bool) {
	if changed == nil {
		logrus.Warn("supervisor: config_changed with nil payload, ignoring")
		return 0, false
	}

	if !s.haveYaml {
		if err := s.buildAndStart(changed); err != nil {
			logrus.WithError(err).Error("supervisor: initial pipeline build failed")
			return ExitSupervisorFailed, true
		}
		return 0, false
	}

	if changed.Runtime.YamlConfig.Equal(s.currentYaml) {
		s.hotApply(changed)
		return 0, false
	}

	logrus.Warn("supervisor: topology-affecting configuration changed, restarting process")
	s.stopPipeline()
	time.Sleep(restartDelay)
	return ExitRestartRequested, true
}

func (s *Supervisor) buildAndStart(changed *config.ChangedConfig) error {
	deps := graph.Dependencies{
		Static:       s.static,
		Changed:      changed,
		Stats:        s.stats,
		Synchronizer: s.sync,
		Bus:          s.bus,
		Mode:         s.mode,
		CtrlIP:       s.ctrlIP,
		CtrlMAC:      s.ctrlMAC,
	}
	p, err := graph.Build(deps)
	if err != nil {
		return fmt.Errorf("supervisor: build pipeline: %w", err)
	}
	if err := p.Start(); err != nil {
		return fmt.Errorf("supervisor: start pipeline: %w", err)
	}

	s.pipeline = p
	s.currentYaml = changed.Runtime.YamlConfig
	s.haveYaml = true
	s.tapTypes = make([][]config.TapType, len(p.Units))
	return nil
}

// hotApply pushes a ConfigChanged snapshot into every live component and
// runs the DispatcherListener fan-out table against each capture unit,
// without rebuilding anything.
func (s *Supervisor) hotApply(changed *config.ChangedConfig) {
	if s.pipeline == nil {
		return
	}
	s.pipeline.OnConfigChange(changed)

	update := component.DispatcherUpdate{
		Blacklist:  changed.Blacklist,
		VMMacAddrs: changed.VMMacAddrs,
		TapTypes:   changed.TapTypes,
	}
	for i, listener := range s.pipeline.UnitListeners() {
		cached := s.tapTypes[i]
		s.tapTypes[i] = dispatcher.ApplyHotConfig(listener, s.resolver, changed.Runtime.SourceInterfaces, changed.Runtime.InterfaceRegex, update, cached)
	}
}

func (s *Supervisor) stopPipeline() {
	if s.pipeline == nil {
		return
	}
	if err := s.pipeline.Stop(); err != nil {
		logrus.WithError(err).Warn("supervisor: pipeline stop reported errors")
	}
	s.pipeline = nil
	s.haveYaml = false
	s.tapTypes = nil
}

// ntpCountable exposes the Synchronizer's measured clock skew as a
// stats.Countable so it rides the same Prometheus export and stats trunk
// snapshot path as every queue and sender.
type ntpCountable struct {
	sync synchronizer.Synchronizer
}

func (n ntpCountable) Snapshot() map[string]int64 {
	return map[string]int64{"skew_ms": n.sync.NTPDiff().Milliseconds()}
}
