package graph

import (
	"context"

	"deepflow.io/agent/internal/queue"
)

// byteQueueAdapter adapts a *queue.Queue[[]byte] to sender.Receiver (which
// wants RecvBytes, not Recv) and to external's LogSource/PacketSequenceSource
// (which want Recv already matching) — kept as one small glue type so every
// trunk queue in the graph can feed a UniformSender without a method-name
// collision.
type byteQueueAdapter struct {
	q *queue.Queue[[]byte]
}

func (a byteQueueAdapter) RecvBytes(ctx context.Context) ([]byte, bool) {
	return a.q.Recv(ctx)
}
