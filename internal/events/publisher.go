// Package events publishes rebalance and transfer lifecycle events to
// Kafka for downstream accounting and alerting.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

// Event kinds carried on the topic.
const (
	KindRebalanceOutcome  = "rebalance_outcome"
	KindTransferCompleted = "transfer_completed"
)

// Envelope is the wire format for every published event.
type Envelope struct {
	Kind      string          `json:"kind"`
	EmittedAt string          `json:"emitted_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher is the event sink the orchestrator and transfer manager
// report to. Publication is best-effort; failures are logged, never
// propagated into the money path.
type Publisher interface {
	PublishOutcome(outcome model.RebalanceOutcome)
	PublishTransfer(record model.TransferRecord)
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// PublishOutcome discards the event.
func (NopPublisher) PublishOutcome(model.RebalanceOutcome) {}

// PublishTransfer discards the event.
func (NopPublisher) PublishTransfer(model.TransferRecord) {}

// Close is a no-op.
func (NopPublisher) Close() error { return nil }

// KafkaPublisher batches events and writes them to one Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer

	mu    sync.Mutex
	batch []kafka.Message

	batchSize     int
	flushInterval time.Duration
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewKafkaPublisher creates a publisher writing to the given brokers and
// topic, flushing whenever the batch fills or the interval elapses.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	p := &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		batchSize:     100,
		flushInterval: 5 * time.Second,
		done:          make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.flushLoop(ctx)

	logrus.WithFields(logrus.Fields{
		"topic":   topic,
		"brokers": brokers,
	}).Info("Kafka event publisher initialized")
	return p
}

// PublishOutcome enqueues a rebalance outcome event keyed by account.
func (p *KafkaPublisher) PublishOutcome(outcome model.RebalanceOutcome) {
	p.enqueue(KindRebalanceOutcome, outcome.Account.Hex(), outcome)
}

// PublishTransfer enqueues a transfer completion event keyed by sender.
func (p *KafkaPublisher) PublishTransfer(record model.TransferRecord) {
	p.enqueue(KindTransferCompleted, record.Sender.Hex(), record)
}

func (p *KafkaPublisher) enqueue(kind, key string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Warnf("Failed to encode %s event", kind)
		return
	}
	envelope, err := json.Marshal(Envelope{
		Kind:      kind,
		EmittedAt: time.Now().UTC().Format(time.RFC3339),
		Payload:   raw,
	})
	if err != nil {
		logrus.WithError(err).Warnf("Failed to encode %s envelope", kind)
		return
	}

	p.mu.Lock()
	p.batch = append(p.batch, kafka.Message{Key: []byte(key), Value: envelope})
	full := len(p.batch) >= p.batchSize
	p.mu.Unlock()

	if full {
		p.flush()
	}
}

func (p *KafkaPublisher) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()
	defer close(p.done)

	for {
		select {
		case <-ticker.C:
			p.flush()
		case <-ctx.Done():
			return
		}
	}
}

func (p *KafkaPublisher) flush() {
	p.mu.Lock()
	if len(p.batch) == 0 {
		p.mu.Unlock()
		return
	}
	batch := p.batch
	p.batch = nil
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		logrus.WithError(err).Warnf("Failed to publish %d events", len(batch))
		return
	}
	logrus.Debugf("Published %d events", len(batch))
}

// Close flushes the remaining batch and releases the writer.
func (p *KafkaPublisher) Close() error {
	p.cancel()
	<-p.done
	p.flush()
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
