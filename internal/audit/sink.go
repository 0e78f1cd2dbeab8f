package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LogSink writes events to the service log
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("audit")}
}

func (s *LogSink) Deliver(_ context.Context, event Event) error {
	s.log.Info("Audit event", eventFields(event)...)
	return nil
}

// Publisher sends a JSON payload to a routing key
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, payload interface{}) error
}

// QueueSink publishes events to the outbound queue with routing key
// "audit.<kind>", e.g. audit.sale.created.
type QueueSink struct {
	publisher Publisher
}

func NewQueueSink(publisher Publisher) *QueueSink {
	return &QueueSink{publisher: publisher}
}

func (s *QueueSink) Deliver(ctx context.Context, event Event) error {
	if err := s.publisher.PublishJSON(ctx, "audit."+string(event.Kind), event); err != nil {
		return fmt.Errorf("failed to publish audit event %s: %w", event.ID, err)
	}
	return nil
}
