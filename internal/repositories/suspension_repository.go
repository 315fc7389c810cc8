package repositories

import (
	"context"
	"errors"

	"messaging-service/internal/models"
	"messaging-service/internal/store"
)

var ErrSuspensionNotFound = errors.New("suspension not found")

// SuspensionRepository tracks temporary kicks awaiting restoration.
type SuspensionRepository interface {
	SaveSuspension(ctx context.Context, s models.TemporarySuspension) error
	GetSuspension(ctx context.Context, chatID, userID string) (models.TemporarySuspension, error)
	DeleteSuspension(ctx context.Context, chatID, userID string) error
	ListSuspensions(ctx context.Context) ([]models.TemporarySuspension, error)
}

// SuspensionRepo is a content-store implementation of SuspensionRepository.
type SuspensionRepo struct {
	store store.Store
}

// NewSuspensionRepo constructs a SuspensionRepo.
func NewSuspensionRepo(s store.Store) *SuspensionRepo {
	return &SuspensionRepo{store: s}
}

func (r *SuspensionRepo) SaveSuspension(ctx context.Context, s models.TemporarySuspension) error {
	return store.SetJSON(ctx, r.store, suspensionPath(s.ChatID, s.UserID), s)
}

func (r *SuspensionRepo) GetSuspension(ctx context.Context, chatID, userID string) (models.TemporarySuspension, error) {
	s, _, err := store.GetJSON[models.TemporarySuspension](ctx, r.store, suspensionPath(chatID, userID))
	if errors.Is(err, store.ErrNotFound) {
		return models.TemporarySuspension{}, ErrSuspensionNotFound
	}
	return s, err
}

func (r *SuspensionRepo) DeleteSuspension(ctx context.Context, chatID, userID string) error {
	return r.store.Remove(ctx, suspensionPath(chatID, userID))
}

// ListSuspensions returns every active suspension across all chats.
func (r *SuspensionRepo) ListSuspensions(ctx context.Context) ([]models.TemporarySuspension, error) {
	return store.ListJSON[models.TemporarySuspension](ctx, r.store, "suspensions")
}
