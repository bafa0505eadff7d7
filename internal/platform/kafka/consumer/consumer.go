// Package consumer wraps franz-go's group consumer behind a small handler
// interface. Offsets are committed only after the handler succeeds, so a
// crash redelivers rather than loses; handlers are expected to be
// idempotent.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed Kafka record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes a consumed message. Returning an error stops the current
// poll without committing the message, so it is redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls Kafka as part of a consumer group and dispatches records to
// a handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// Config holds consumer settings.
type Config struct {
	Brokers  []string
	Group    string
	Topics   []string
	ClientID string
}

// New creates a group consumer. Auto-commit is disabled: Run commits
// explicitly after the handler processes each batch.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if cfg.Group == "" {
		return nil, fmt.Errorf("kafka consumer requires a group")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one topic")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "provenance"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
	}, nil
}

// Run polls until the context is cancelled or the client is closed.
// Processing stops at the first handler error in a poll; everything handled
// before it is still committed, and the failed record is redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, fetchErr := range fetches.Errors() {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", fetchErr.Topic,
				"partition", fetchErr.Partition,
				"error", fetchErr.Err,
			)
		}

		var processed []*kgo.Record
		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			msg := &Message{
				Topic:     record.Topic,
				Partition: record.Partition,
				Offset:    record.Offset,
				Key:       record.Key,
				Value:     record.Value,
				Timestamp: record.Timestamp,
			}

			if err := c.handler.Handle(ctx, msg); err != nil {
				c.logger.ErrorContext(ctx, "message handling failed, will redeliver",
					"topic", record.Topic,
					"partition", record.Partition,
					"offset", record.Offset,
					"error", err,
				)
				break
			}
			processed = append(processed, record)
		}

		if len(processed) > 0 {
			if err := c.client.CommitRecords(ctx, processed...); err != nil {
				c.logger.ErrorContext(ctx, "offset commit failed", "error", err)
			}
		}
	}
}

// Close leaves the group and releases the client. Run returns after Close.
func (c *Consumer) Close() {
	c.client.Close()
}
