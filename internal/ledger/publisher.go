package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trustbridge/internal/platform/kafka/producer"
	"trustbridge/internal/platform/metrics"
)

// Producer is the subset of the Kafka producer the publisher needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// ErrPublisherClosed is returned by Emit once Close has been called.
var ErrPublisherClosed = errors.New("ledger publisher closed")

// Publisher announces appended entries on a Kafka topic. Publishing is best
// effort: the ledger row is the source of truth.
type Publisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
	events   chan *producer.Message
	wg       sync.WaitGroup
	mu       sync.RWMutex // guards closed and sends on events
	closed   bool
	logger   *slog.Logger
	metrics  *metrics.Metrics
	async    bool
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues events and produces them from a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan *producer.Message, size)
			p.async = true
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func WithPublisherMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

// WithProduceTimeout bounds each produce call.
func WithProduceTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) { p.timeout = d }
}

func NewPublisher(prod Producer, topic string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		producer: prod,
		topic:    topic,
		timeout:  5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for msg := range p.events {
		if err := p.produce(context.Background(), msg); err != nil {
			p.failed(msg, err)
		}
	}
}

// Close stops accepting events and waits for the queue to drain. It is safe
// to call more than once and concurrently with Emit.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.async {
		close(p.events)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Emit publishes entry keyed by its ID.
func (p *Publisher) Emit(ctx context.Context, entry *Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode ledger event: %w", err)
	}
	msg := &producer.Message{
		Topic: p.topic,
		Key:   []byte(entry.ID.String()),
		Value: value,
		Headers: map[string]string{
			"event_type":  EventAppended,
			"action_type": entry.ActionType,
		},
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.metrics.IncrementLedgerPublishFailures()
		return ErrPublisherClosed
	}
	if p.async {
		defer p.mu.RUnlock()
		select {
		case p.events <- msg:
			return nil
		default:
			p.metrics.IncrementLedgerPublishFailures()
			p.logger.Warn("ledger event buffer full, event dropped",
				"ledger_id", entry.ID.String(),
				"action_type", entry.ActionType,
			)
			return nil
		}
	}
	p.mu.RUnlock()

	if err := p.produce(ctx, msg); err != nil {
		p.failed(msg, err)
		return err
	}
	return nil
}

func (p *Publisher) produce(ctx context.Context, msg *producer.Message) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.producer.Produce(ctx, msg)
}

func (p *Publisher) failed(msg *producer.Message, err error) {
	p.metrics.IncrementLedgerPublishFailures()
	p.logger.Error("failed to publish ledger event",
		"error", err,
		"ledger_id", string(msg.Key),
		"topic", msg.Topic,
	)
}
