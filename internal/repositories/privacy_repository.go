package repositories

import (
	"context"
	"errors"

	"messaging-service/internal/models"
	"messaging-service/internal/store"
)

// PrivacyRepository stores per-user visibility toggles.
type PrivacyRepository interface {
	GetPrivacy(ctx context.Context, userID string) (models.PrivacySetting, error)
	SavePrivacy(ctx context.Context, setting models.PrivacySetting) error
}

// PrivacyRepo is a content-store implementation of PrivacyRepository.
type PrivacyRepo struct {
	store store.Store
}

// NewPrivacyRepo constructs a PrivacyRepo.
func NewPrivacyRepo(s store.Store) *PrivacyRepo {
	return &PrivacyRepo{store: s}
}

// GetPrivacy returns the user's setting, or the defaults if none was saved.
func (r *PrivacyRepo) GetPrivacy(ctx context.Context, userID string) (models.PrivacySetting, error) {
	setting, _, err := store.GetJSON[models.PrivacySetting](ctx, r.store, privacyPath(userID))
	if errors.Is(err, store.ErrNotFound) {
		return models.PrivacySetting{UserID: userID}, nil
	}
	return setting, err
}

func (r *PrivacyRepo) SavePrivacy(ctx context.Context, setting models.PrivacySetting) error {
	return store.SetJSON(ctx, r.store, privacyPath(setting.UserID), setting)
}
