package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustbridge/internal/platform/kafka/producer"
	"trustbridge/internal/platform/metrics"
	id "trustbridge/pkg/domain"
)

type fakeProducer struct {
	mu       sync.Mutex
	messages []*producer.Message
	err      error
	block    chan struct{}
}

func (p *fakeProducer) Produce(ctx context.Context, msg *producer.Message) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *fakeProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func TestPublisherSync(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewPublisher(prod, "trustbridge.ledger")
	entry := &Entry{ID: id.NewLedgerEntryID(), Actor: "alice", ActionType: "REVOKE_CONSENT"}

	require.NoError(t, pub.Emit(context.Background(), entry))
	require.Len(t, prod.messages, 1)

	msg := prod.messages[0]
	assert.Equal(t, "trustbridge.ledger", msg.Topic)
	assert.Equal(t, entry.ID.String(), string(msg.Key))
	assert.Equal(t, EventAppended, msg.Headers["event_type"])
	assert.Equal(t, "REVOKE_CONSENT", msg.Headers["action_type"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "alice", decoded["actor"])
	assert.Equal(t, entry.ID.String(), decoded["id"])
}

func TestPublisherSyncFailureIsCounted(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "api")
	pub := NewPublisher(&fakeProducer{err: errors.New("no brokers")}, "t", WithPublisherMetrics(m))

	err := pub.Emit(context.Background(), &Entry{ID: id.NewLedgerEntryID(), ActionType: "X"})
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerPublishFailures))
}

func TestPublisherAsyncDrainsOnClose(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewPublisher(prod, "t", WithAsyncBuffer(10))

	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), &Entry{ID: id.NewLedgerEntryID(), ActionType: "X"}))
	}
	pub.Close()
	assert.Equal(t, 5, prod.count())
}

func TestPublisherAsyncDropsWhenFull(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "api")
	prod := &fakeProducer{block: make(chan struct{})}
	pub := NewPublisher(prod, "t", WithAsyncBuffer(1), WithPublisherMetrics(m))

	// One message may be held by the worker and one sits in the buffer; the rest are dropped.
	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), &Entry{ID: id.NewLedgerEntryID(), ActionType: "X"}))
	}
	close(prod.block)
	pub.Close()

	delivered := prod.count()
	assert.GreaterOrEqual(t, delivered, 1)
	assert.LessOrEqual(t, delivered, 2)
	assert.Equal(t, float64(5-delivered), testutil.ToFloat64(m.LedgerPublishFailures))
}

func TestPublisherEmitAfterClose(t *testing.T) {
	for name, opts := range map[string][]PublisherOption{
		"sync":  nil,
		"async": {WithAsyncBuffer(4)},
	} {
		t.Run(name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry(), "api")
			prod := &fakeProducer{}
			pub := NewPublisher(prod, "t", append(opts, WithPublisherMetrics(m))...)
			pub.Close()
			pub.Close()

			var err error
			assert.NotPanics(t, func() {
				err = pub.Emit(context.Background(), &Entry{ID: id.NewLedgerEntryID(), ActionType: "X"})
			})
			assert.ErrorIs(t, err, ErrPublisherClosed)
			assert.Equal(t, 0, prod.count())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerPublishFailures))
		})
	}
}

func TestPublisherConcurrentEmitAndClose(t *testing.T) {
	pub := NewPublisher(&fakeProducer{}, "t", WithAsyncBuffer(8))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				err := pub.Emit(context.Background(), &Entry{ID: id.NewLedgerEntryID(), ActionType: "X"})
				if err != nil {
					assert.ErrorIs(t, err, ErrPublisherClosed)
				}
			}
		}()
	}
	pub.Close()
	wg.Wait()
}
