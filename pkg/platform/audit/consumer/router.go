package consumer

import (
	"context"
	"log/slog"

	"provenance/internal/platform/kafka/consumer"
)

// TopicHandler processes messages from one audit topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router fans a single consumer group out to per-topic handlers. The audit
// pipeline subscribes to the three category topics with one group and routes
// each message to the handler that owns its table.
type Router struct {
	handlers map[string]TopicHandler
	fallback TopicHandler
	logger   *slog.Logger
}

// NewRouter creates a router. Messages from unregistered topics go to
// fallback when non-nil and are otherwise logged and committed.
func NewRouter(logger *slog.Logger, fallback TopicHandler) *Router {
	return &Router{
		handlers: make(map[string]TopicHandler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register routes a topic to a handler.
func (r *Router) Register(topic string, handler TopicHandler) {
	r.handlers[topic] = handler
}

// Handle dispatches msg by topic.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	if handler, ok := r.handlers[msg.Topic]; ok {
		return handler.Handle(ctx, msg)
	}
	if r.fallback != nil {
		return r.fallback.Handle(ctx, msg)
	}

	r.logger.Warn("no handler registered for topic",
		"topic", msg.Topic,
		"key", string(msg.Key),
	)
	// Returning nil commits the offset so the message is not redelivered.
	return nil
}
