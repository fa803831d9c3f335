// Package sender implements UniformSender: one thread per trunk queue that
// drains items, serializes them, and writes them to the ingester. Adapted
// from the teacher's sender.Sender (restart-on-failure instead of
// propagating to the caller), without its batch/flush-ticker pair: items are
// written one at a time.
package sender

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/exception"
	"deepflow.io/agent/internal/stats"
)

// Config is the mutable, hot-reloadable connection configuration a sender
// reads on every reconnect attempt.
type Config struct {
	AnalyzerAddr   string
	TLSEnabled     bool
	TLSServerName  string
	CompressionOn  bool
	FlushInterval  time.Duration
	MaxBatchItems  int
	DialTimeout    time.Duration
}

// Receiver is the minimal queue contract UniformSender drains: anything with
// a blocking Recv. *queue.Queue[T] satisfies this once instantiated for a
// concrete item type via a small adapter in the owning package, keeping this
// package free of a generic type parameter on the exported Sender type.
type Receiver interface {
	RecvBytes(ctx context.Context) ([]byte, bool)
}

// Sender is a UniformSender: one goroutine draining a single Receiver into
// the configured ingester address, writing each item as soon as it is
// received (Config's FlushInterval and MaxBatchItems are not used; there is
// no batching), restarting its own connection on failure without ever
// propagating the error to the supervisor.
type Sender struct {
	id     int
	module string

	recv Receiver
	cfg  func() Config

	reg  *stats.Registry
	bus  *exception.Bus

	mu      sync.Mutex
	conn    net.Conn
	sent    int64
	errored int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Sender. cfgFn is called on every (re)connect so that hot
// config changes (analyzer address, TLS, compression) take effect without
// restarting the sender goroutine itself.
func New(id int, module string, recv Receiver, cfgFn func() Config, reg *stats.Registry, bus *exception.Bus) (*Sender, error) {
	s := &Sender{
		id:     id,
		module: module,
		recv:   recv,
		cfg:    cfgFn,
		reg:    reg,
		bus:    bus,
		done:   make(chan struct{}),
	}
	if reg != nil {
		if err := reg.Register(module, fmt.Sprint(id), s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start launches the drain goroutine. Stop must be called exactly once to
// release it.
func (s *Sender) Start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)
	go s.run()
}

// Stop cancels the drain goroutine and waits for it to exit.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func (s *Sender) run() {
	defer close(s.done)
	log := logrus.WithFields(logrus.Fields{"module": s.module, "sender_id": s.id})
	log.Info("uniform sender starting")
	defer log.Info("uniform sender stopped")

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		item, ok := s.recv.RecvBytes(s.ctx)
		if !ok {
			continue // ctx cancelled or spurious wakeup; loop re-checks Done
		}

		if err := s.write(item); err != nil {
			s.mu.Lock()
			s.errored++
			s.mu.Unlock()
			log.WithError(err).Warn("send failed, will reconnect and retry in place")
			if s.bus != nil {
				s.bus.Set(exception.ControllerUnreachable)
			}
			time.Sleep(time.Second) // restart-on-error backoff, internal to the sender
			continue
		}
		s.mu.Lock()
		s.sent++
		s.mu.Unlock()
		if s.bus != nil {
			s.bus.Clear(exception.ControllerUnreachable)
		}
	}
}

func (s *Sender) write(payload []byte) error {
	cfg := s.cfg()
	if err := s.ensureConn(cfg); err != nil {
		return err
	}
	_, err := s.conn.Write(payload)
	if err != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	return err
}

func (s *Sender) ensureConn(cfg Config) error {
	if s.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	if cfg.TLSEnabled {
		conn, err := tls.DialWithDialer(&dialer, "tcp", cfg.AnalyzerAddr, &tls.Config{ServerName: cfg.TLSServerName})
		if err != nil {
			return err
		}
		s.conn = conn
		return nil
	}
	conn, err := dialer.Dial("tcp", cfg.AnalyzerAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Snapshot implements stats.Countable.
func (s *Sender) Snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int64{"sent": s.sent, "errored": s.errored}
}
