package repositories

import (
	"context"
	"errors"
	"sort"

	"messaging-service/internal/models"
	"messaging-service/internal/store"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) error
	GetMessage(ctx context.Context, chatID, messageID string) (models.Message, error)
	UpdateMessage(ctx context.Context, chatID, messageID string, fn func(msg *models.Message) error) (models.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

// MessageRepo keeps each message under its chat's subtree.
type MessageRepo struct {
	store store.Store
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(s store.Store) *MessageRepo {
	return &MessageRepo{store: s}
}

// CreateMessage appends a message to the chat's log.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) error {
	return store.CreateJSON(ctx, r.store, messagePath(msg.ChatID, msg.ID), msg)
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, chatID, messageID string) (models.Message, error) {
	msg, _, err := store.GetJSON[models.Message](ctx, r.store, messagePath(chatID, messageID))
	if errors.Is(err, store.ErrNotFound) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateMessage applies fn to the stored message atomically.
func (r *MessageRepo) UpdateMessage(ctx context.Context, chatID, messageID string, fn func(msg *models.Message) error) (models.Message, error) {
	return store.Update(ctx, r.store, messagePath(chatID, messageID), func(cur models.Message, exists bool) (models.Message, error) {
		if !exists {
			return cur, ErrMessageNotFound
		}
		if err := fn(&cur); err != nil {
			return cur, err
		}
		return cur, nil
	})
}

// ListMessages returns the chat log ordered by creation time, then id.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	msgs, err := store.ListJSON[models.Message](ctx, r.store, MessagesPath(chatID))
	if err != nil {
		return nil, err
	}
	SortMessages(msgs)
	return msgs, nil
}

// SortMessages orders messages by (CreatedAt, ID).
func SortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}
