package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

type capturePublisher struct {
	routingKey string
	event      any
	err        error
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, event any) error {
	p.routingKey = routingKey
	p.event = event
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func TestNotifierPublishesEnvelope(t *testing.T) {
	pub := &capturePublisher{}
	n := NewNotifier(pub, "notifications.message", "messaging-service")
	n.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	note := models.Notification{RecipientID: "b", Kind: "message", FromUserID: "a", ChatID: "c1", MessageID: "m1", ContentPreview: "hi"}
	require.NoError(t, n.Notify(context.Background(), note))

	assert.Equal(t, "notifications.message", pub.routingKey)
	envelope, ok := pub.event.(NotificationEnvelope)
	require.True(t, ok)
	assert.Equal(t, "chat_notification", envelope.EventType)
	assert.Equal(t, "2026-01-02T03:04:05Z", envelope.OccurredAt)
	assert.Equal(t, note, envelope.Payload)
}

func TestNotifierReturnsPublishError(t *testing.T) {
	pub := &capturePublisher{err: errors.New("channel closed")}
	n := NewNotifier(pub, "notifications.message", "messaging-service")

	err := n.Notify(context.Background(), models.Notification{RecipientID: "b"})
	assert.EqualError(t, err, "channel closed")
}

func TestNewPublisherFallsBackToNoop(t *testing.T) {
	p := NewPublisher("", "chat.events")
	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	assert.NoError(t, p.Publish(context.Background(), "notifications.message", NotificationEnvelope{}))
	assert.NoError(t, p.Close())
}
