package collector

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Record is an opaque per-5-tuple flow record; the actual flow-generation
// algorithm that produces these is out of scope. CollectorPipeline only
// needs a timestamp to drive windowing and a key to drive aggregation.
type Record struct {
	Timestamp time.Time
	Key       string
	Fields    map[string]int64
}

// Sink is whatever a Collector/FlowAggr writes its output into — a trunk
// queue's Send method, abstracted so this package stays generic over the
// concrete queue item type.
type Sink func(Record)

// QuadrupleGenerator reads raw per-5-tuple records off a flow receiver and
// fans them out to the second, minute, and L4-log branches.
type QuadrupleGenerator struct {
	recv      func(ctx context.Context) (Record, bool)
	toSecond  Sink
	toMinute  Sink
	toL4Log   Sink
	metricsOn bool // not read: a branch whose sink is nil is skipped instead
}

// NewQuadrupleGenerator wires one per capture unit.
func NewQuadrupleGenerator(recv func(ctx context.Context) (Record, bool), toSecond, toMinute, toL4Log Sink) *QuadrupleGenerator {
	return &QuadrupleGenerator{recv: recv, toSecond: toSecond, toMinute: toMinute, toL4Log: toL4Log}
}

// Run drains records until ctx is cancelled, fanning each one to every
// configured downstream branch.
func (g *QuadrupleGenerator) Run(ctx context.Context) {
	for {
		rec, ok := g.recv(ctx)
		if !ok {
			return
		}
		if g.toSecond != nil {
			g.toSecond(rec)
		}
		if g.toMinute != nil {
			g.toMinute(rec)
		}
		if g.toL4Log != nil {
			g.toL4Log(rec)
		}
	}
}

// Collector aggregates records into delay-tolerant windows of a fixed
// duration (Second or Minute from Delays) before emitting to the metrics
// trunk. Late records within the tolerable-delay window are still folded
// into their originating window instead of the current one.
type Collector struct {
	window time.Duration
	lru    *lruTable
	out    Sink

	mu      sync.Mutex
	buckets map[int64]map[string]int64 // windowStart(unix) -> key -> count
}

// lruTable is a fixed-capacity connection table; eviction policy itself is
// out of scope, only its capacity sizing is load-bearing here.
type lruTable struct {
	capacity int
	entries  map[string]struct{}
}

func newLRU(capacity int) *lruTable {
	return &lruTable{capacity: capacity, entries: make(map[string]struct{})}
}

func (l *lruTable) touch(key string) {
	if len(l.entries) >= l.capacity {
		for k := range l.entries {
			delete(l.entries, k)
			break
		}
	}
	l.entries[key] = struct{}{}
}

// NewCollector builds a Collector windowed at window, sized per the
// connection_lru_capacity = hash_slots << 3.
func NewCollector(window time.Duration, hashSlots int, out Sink) *Collector {
	return &Collector{
		window:  window,
		lru:     newLRU(ConnectionLRUCapacity(hashSlots)),
		out:     out,
		buckets: make(map[int64]map[string]int64),
	}
}

// windowStart returns the start of t's tolerable-delay-extended window.
func (c *Collector) windowStart(t time.Time) int64 {
	return t.Add(-c.window).Truncate(c.window).Unix()
}

// Add folds rec into its originating window's bucket.
func (c *Collector) Add(rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.touch(rec.Key)
	ws := c.windowStart(rec.Timestamp)
	bucket, ok := c.buckets[ws]
	if !ok {
		bucket = make(map[string]int64)
		c.buckets[ws] = bucket
	}
	for _, v := range rec.Fields {
		bucket[rec.Key] += v
	}
}

// Flush emits every window whose extended delay has elapsed as of now, and
// discards them from the bucket map.
func (c *Collector) Flush(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := now.Add(-(c.window + CommonDelay)).Unix()
	for ws, bucket := range c.buckets {
		if ws > deadline {
			continue
		}
		for key, total := range bucket {
			if c.out != nil {
				c.out(Record{Timestamp: time.Unix(ws, 0), Key: key, Fields: map[string]int64{"value": total}})
			}
		}
		delete(c.buckets, ws)
	}
}

// Run periodically flushes on a ticker until ctx is cancelled.
func (c *Collector) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Flush(time.Now())
			return
		case now := <-ticker.C:
			c.Flush(now)
		}
	}
}

// FlowAggr rolls second-level flows into minute-level L4 log records,
// draining the L4-log branch queue and writing rolled-up records to the
// l4-flow-aggr trunk.
type FlowAggr struct {
	out Sink

	mu     sync.Mutex
	window map[string]int64
}

// NewFlowAggr builds a FlowAggr writing to out.
func NewFlowAggr(out Sink) *FlowAggr {
	return &FlowAggr{out: out, window: make(map[string]int64)}
}

// Add folds one L4-log record into the current minute window.
func (f *FlowAggr) Add(rec Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range rec.Fields {
		f.window[rec.Key] += v
	}
}

// Roll emits the accumulated window as L4 log records and resets it.
func (f *FlowAggr) Roll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, total := range f.window {
		if f.out != nil {
			f.out(Record{Timestamp: time.Now(), Key: key, Fields: map[string]int64{"value": total}})
		}
	}
	f.window = make(map[string]int64)
}

// Run rolls up on a minute ticker until ctx is cancelled.
func (f *FlowAggr) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			f.Roll()
			return
		case <-ticker.C:
			f.Roll()
		}
	}
}

// Pipeline wires one capture unit's full collector chain: QuadrupleGenerator
// plus whichever of {second, minute} Collectors MetricsType enables, plus
// FlowAggr, matching the per-unit structure.
type Pipeline struct {
	Generator *QuadrupleGenerator
	Second    *Collector // nil if MetricsType excludes second
	Minute    *Collector // nil if MetricsType excludes minute
	Aggr      *FlowAggr
}

// Start launches every live stage's goroutine.
func (p *Pipeline) Start(ctx context.Context) {
	go p.Generator.Run(ctx)
	if p.Second != nil {
		go p.Second.Run(ctx, time.Second)
	}
	if p.Minute != nil {
		go p.Minute.Run(ctx, time.Minute)
	}
	if p.Aggr != nil {
		go p.Aggr.Run(ctx)
	}
	logrus.Debug("collector pipeline started")
}
