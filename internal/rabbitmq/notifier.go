package rabbitmq

import (
	"context"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// NotificationEnvelope wraps a per-recipient message notification.
type NotificationEnvelope struct {
	SchemaVersion int                 `json:"schema_version"`
	EventType     string              `json:"event_type"`
	OccurredAt    string              `json:"occurred_at"`
	Service       string              `json:"service"`
	Payload       models.Notification `json:"payload"`
}

// Notifier hands message notifications to the push pipeline over AMQP.
type Notifier struct {
	publisher  Publisher
	routingKey string
	service    string
	now        func() time.Time
}

// NewNotifier builds a Notifier publishing on routingKey.
func NewNotifier(publisher Publisher, routingKey, service string) *Notifier {
	return &Notifier{
		publisher:  publisher,
		routingKey: routingKey,
		service:    service,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Notify publishes one notification. The caller decides what to do on error.
func (n *Notifier) Notify(ctx context.Context, note models.Notification) error {
	envelope := NotificationEnvelope{
		SchemaVersion: 1,
		EventType:     "chat_notification",
		OccurredAt:    n.now().Format(time.RFC3339Nano),
		Service:       n.service,
		Payload:       note,
	}
	if err := n.publisher.Publish(ctx, n.routingKey, envelope); err != nil {
		observability.IncAMQPPublishError()
		return err
	}
	return nil
}
