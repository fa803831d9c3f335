package external

import (
	"context"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/ratelimit"
)

// LogSource is the per-dispatcher log queue a ProtocolLogParser drains;
// *queue.Queue[[]byte] satisfies this once instantiated, without this
// package taking on a generic type parameter.
type LogSource interface {
	Recv(ctx context.Context) ([]byte, bool)
}

// LogSink is where parsed proto-log records are forwarded — typically a
// trunk queue's Send.
type LogSink func(record []byte)

// ProtocolLogParser drains one dispatcher's log queue, applies the shared
// log-rate limiter, and forwards survivors to the proto-log trunk. The
// actual protocol parsing algorithm is out of scope; this type only owns
// the drain/rate-limit/forward loop every parser instance repeats.
type ProtocolLogParser struct {
	unitName string
	src      LogSource
	sink     LogSink
	limiter  *ratelimit.Bucket

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewProtocolLogParser(unitName string, src LogSource, sink LogSink, limiter *ratelimit.Bucket) *ProtocolLogParser {
	return &ProtocolLogParser{unitName: unitName, src: src, sink: sink, limiter: limiter, done: make(chan struct{})}
}

func (p *ProtocolLogParser) Start() error {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	go p.run()
	return nil
}

func (p *ProtocolLogParser) Stop() error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}

func (p *ProtocolLogParser) OnConfigChange(snapshot *config.ChangedConfig) {}

func (p *ProtocolLogParser) run() {
	defer close(p.done)
	log := logrus.WithField("unit", p.unitName)
	log.Debug("protocol log parser starting")
	defer log.Debug("protocol log parser stopped")

	for {
		rec, ok := p.src.Recv(p.ctx)
		if !ok {
			if p.ctx.Err() != nil {
				return
			}
			continue
		}
		if p.limiter != nil && !p.limiter.Allow(1) {
			continue
		}
		if p.sink != nil {
			p.sink(rec)
		}
	}
}
