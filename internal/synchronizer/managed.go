package synchronizer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/exception"
	"deepflow.io/agent/internal/state"
)

// managedSynchronizer owns the control-plane conversation with a remote
// controller. The controller's actual configuration-distribution RPC is
// opaque and out of scope; this implementation grounds liveness/heartbeat on
// the standard grpc_health_v1 health-checking protocol that ships with
// grpc-go, polling it on an interval and posting a ConfigChanged with an
// empty payload after every check that reports SERVING (a real controller
// would instead push a full runtime config).
type managedSynchronizer struct {
	base

	sessionID uuid.UUID

	mu       sync.Mutex
	ips      []string
	ctrlIP   net.IP
	ctrlMAC  net.HardwareAddr
	conn     *grpc.ClientConn

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newManaged(static *config.StaticConfig, bus *exception.Bus) *managedSynchronizer {
	return &managedSynchronizer{
		base:      newBase(bus),
		sessionID: uuid.NewV4(),
		ips:       append([]string(nil), static.ControllerIPs...),
		done:      make(chan struct{}),
	}
}

func (m *managedSynchronizer) Start(ctx context.Context, cell *state.Cell) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.dial(); err != nil {
		return fmt.Errorf("synchronizer: initial dial: %w", err)
	}

	// Block for the first successful heartbeat so the caller's "first
	// ConfigChanged arrives" boot guarantee holds, then continue polling in
	// the background.
	if err := m.heartbeatOnce(cell); err != nil {
		logrus.WithError(err).Warn("synchronizer: first heartbeat failed, continuing in background")
	}

	go m.loop(cell)
	return nil
}

func (m *managedSynchronizer) loop(cell *state.Cell) {
	defer close(m.done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeatOnce(cell); err != nil {
				logrus.WithError(err).Debug("synchronizer: heartbeat failed")
			}
		}
	}
}

func (m *managedSynchronizer) heartbeatOnce(cell *state.Cell) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no controller connection")
	}

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(m.ctx, 3*time.Second)
	defer cancel()

	sent := time.Now()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "deepflow.controller"})
	if err != nil {
		if m.bus != nil {
			m.bus.Set(exception.ControllerUnreachable)
		}
		return err
	}
	m.ntpDiff.Store(time.Since(sent) / 2)
	if m.bus != nil {
		m.bus.Clear(exception.ControllerUnreachable)
	}

	if resp.Status == healthpb.HealthCheckResponse_SERVING {
		cell.Post(state.Snapshot{
			Phase:   state.ConfigChanged,
			Payload: &config.ChangedConfig{},
		})
	}
	return nil
}

func (m *managedSynchronizer) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		_ = m.conn.Close()
	}
}

func (m *managedSynchronizer) ResetSession(ips []string, ctrlIP net.IP, ctrlMAC net.HardwareAddr) error {
	m.mu.Lock()
	m.ips = append([]string(nil), ips...)
	m.ctrlIP = ctrlIP
	m.ctrlMAC = ctrlMAC
	old := m.conn
	m.mu.Unlock()

	m.sessionID = uuid.NewV4()
	if err := m.dial(); err != nil {
		return err
	}
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (m *managedSynchronizer) dial() error {
	m.mu.Lock()
	ips := m.ips
	m.mu.Unlock()
	if len(ips) == 0 {
		return fmt.Errorf("no controller addresses configured")
	}

	target := ips[0]
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(target, "50051")
	}
	conn, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	return nil
}
