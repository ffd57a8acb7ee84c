package alert

import (
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/bus"
)

var codec = sonic.ConfigStd

// QueueSink bridges the notifier to a bounded queue so slow consumers
// (webhooks, files) never stall the decision path. Events are dropped,
// counted and logged when the queue is full.
type QueueSink struct {
	q     *bus.Queue
	drops atomic.Int64
}

// NewQueueSink wraps a queue as an alert sink.
func NewQueueSink(q *bus.Queue) *QueueSink {
	return &QueueSink{q: q}
}

func (s *QueueSink) Notify(e Event) {
	payload, err := codec.Marshal(e)
	if err != nil {
		logs.Errorf("alert encode failed: %v", err)
		return
	}
	if err := s.q.TryPublish(bus.Event{Kind: e.KindName, Payload: payload}); err != nil {
		s.drops.Add(1)
		logs.Warnf("alert %s dropped: %v", e.KindName, err)
	}
}

// Drops returns how many events were lost to backpressure.
func (s *QueueSink) Drops() int64 {
	return s.drops.Load()
}
