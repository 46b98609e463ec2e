package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  map[int64]string
}

func (s *fakeStore) LockBatch(_ context.Context, _ string, batchSize int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(batchSize, len(s.pending))
	batch := s.pending[:n]
	s.pending = s.pending[n:]
	return batch, nil
}

func (s *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[int64]string{}
	}
	s.failed[id] = errMsg
	return nil
}

type fakeProducer struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	failOn map[string]error
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if err, bad := p.failOn[string(m.Key)]; bad {
			return err
		}
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelayDrainDispatchesAndMarksSent(t *testing.T) {
	store := &fakeStore{pending: []Event{
		{ID: 1, AggregateID: "order-1", Type: "OrderPaid", Payload: []byte(`{}`)},
		{ID: 2, AggregateID: "order-2", Type: "PaymentFailed", Payload: []byte(`{}`), Traceparent: "00-aa-bb-01"},
	}}
	prod := &fakeProducer{}
	relay := NewRelay(discard(), store, NewDispatcher(discard(), prod, "checkout.events"), "test-relay")

	relay.drain(context.Background())

	require.Len(t, prod.msgs, 2)
	assert.Equal(t, []int64{1, 2}, store.sent)
	assert.Equal(t, "order-1", string(prod.msgs[0].Key))

	var types, traceparents []string
	for _, h := range prod.msgs[1].Headers {
		switch h.Key {
		case "event_type":
			types = append(types, string(h.Value))
		case "traceparent":
			traceparents = append(traceparents, string(h.Value))
		}
	}
	assert.Equal(t, []string{"PaymentFailed"}, types)
	assert.Equal(t, []string{"00-aa-bb-01"}, traceparents)
}

func TestRelayDrainMarksFailedAndKeepsGoing(t *testing.T) {
	store := &fakeStore{pending: []Event{
		{ID: 1, AggregateID: "order-1", Type: "OrderPaid"},
		{ID: 2, AggregateID: "order-2", Type: "OrderPaid"},
	}}
	prod := &fakeProducer{failOn: map[string]error{"order-1": errors.New("broker down")}}
	relay := NewRelay(discard(), store, NewDispatcher(discard(), prod, "checkout.events"), "test-relay")

	relay.drain(context.Background())

	assert.Equal(t, []int64{2}, store.sent, "the healthy event is still sent")
	assert.Equal(t, "broker down", store.failed[1])
}
