package repositories

import (
	"context"
	"errors"

	"messaging-service/internal/models"
	"messaging-service/internal/store"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	CreateChat(ctx context.Context, chat models.Chat) error
	UpdateChat(ctx context.Context, chatID string, fn func(chat *models.Chat) error) (models.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	ClaimPrivatePair(ctx context.Context, userA, userB, chatID string) (string, bool, error)
	FindPrivateChat(ctx context.Context, userA, userB string) (string, error)
}

// ChatRepo stores chats as documents in the content store.
type ChatRepo struct {
	store store.Store
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(s store.Store) *ChatRepo {
	return &ChatRepo{store: s}
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	chat, _, err := store.GetJSON[models.Chat](ctx, r.store, chatPath(chatID))
	if errors.Is(err, store.ErrNotFound) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// CreateChat stores a new chat. The id must be unused.
func (r *ChatRepo) CreateChat(ctx context.Context, chat models.Chat) error {
	return store.CreateJSON(ctx, r.store, chatPath(chat.ID), chat)
}

// UpdateChat applies fn to the current chat atomically; fn may run more than once.
func (r *ChatRepo) UpdateChat(ctx context.Context, chatID string, fn func(chat *models.Chat) error) (models.Chat, error) {
	return store.Update(ctx, r.store, chatPath(chatID), func(cur models.Chat, exists bool) (models.Chat, error) {
		if !exists {
			return cur, ErrChatNotFound
		}
		if err := fn(&cur); err != nil {
			return cur, err
		}
		return cur, nil
	})
}

// DeleteChat removes a chat document.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID string) error {
	return r.store.Remove(ctx, chatPath(chatID))
}

// ClaimPrivatePair records chatID as the private chat between two users unless
// one is already recorded. It returns the recorded id and whether this call
// made the claim.
func (r *ChatRepo) ClaimPrivatePair(ctx context.Context, userA, userB, chatID string) (string, bool, error) {
	path := pairPath(userA, userB)
	err := store.CreateJSON(ctx, r.store, path, chatID)
	if err == nil {
		return chatID, true, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return "", false, err
	}
	existing, _, err := store.GetJSON[string](ctx, r.store, path)
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

// FindPrivateChat returns the id of an existing private chat between two users.
func (r *ChatRepo) FindPrivateChat(ctx context.Context, userA, userB string) (string, error) {
	id, _, err := store.GetJSON[string](ctx, r.store, pairPath(userA, userB))
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrChatNotFound
	}
	return id, err
}
