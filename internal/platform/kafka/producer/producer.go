// Package producer wraps franz-go with the producer settings every
// publisher in this service shares: acks from the full ISR, snappy
// compression, and synchronous sends so callers see broker errors.
package producer

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes messages to Kafka.
type Producer struct {
	client *kgo.Client
}

// Config holds producer settings.
type Config struct {
	Brokers  []string
	ClientID string
}

// New creates a Kafka producer. The client connects lazily; broker
// availability surfaces on the first Publish.
func New(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "provenance"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Producer{client: client}, nil
}

// Ping checks broker reachability. Health endpoints use it.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Publish sends one message and waits for the broker to acknowledge it.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
