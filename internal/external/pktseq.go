package external

import (
	"context"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
)

// PacketSequenceSource is the per-dispatcher packet-sequence queue a
// PacketSequenceParser drains.
type PacketSequenceSource interface {
	Recv(ctx context.Context) ([]byte, bool)
}

// PacketSequenceSink forwards a parsed packet-sequence record onward —
// typically the pkt-seq trunk queue's Send.
type PacketSequenceSink func(record []byte)

// PacketSequenceParser drains one dispatcher's packet-sequence queue and
// forwards records to the pkt-seq trunk. The actual sequence-reconstruction
// algorithm is out of scope.
type PacketSequenceParser struct {
	unitName string
	src      PacketSequenceSource
	sink     PacketSequenceSink

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPacketSequenceParser(unitName string, src PacketSequenceSource, sink PacketSequenceSink) *PacketSequenceParser {
	return &PacketSequenceParser{unitName: unitName, src: src, sink: sink, done: make(chan struct{})}
}

func (p *PacketSequenceParser) Start() error {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	go p.run()
	return nil
}

func (p *PacketSequenceParser) Stop() error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}

func (p *PacketSequenceParser) OnConfigChange(snapshot *config.ChangedConfig) {}

func (p *PacketSequenceParser) run() {
	defer close(p.done)
	log := logrus.WithField("unit", p.unitName)
	log.Debug("packet sequence parser starting")
	defer log.Debug("packet sequence parser stopped")

	for {
		rec, ok := p.src.Recv(p.ctx)
		if !ok {
			if p.ctx.Err() != nil {
				return
			}
			continue
		}
		if p.sink != nil {
			p.sink(rec)
		}
	}
}
