package repositories

import (
	"context"
	"errors"

	"messaging-service/internal/models"
	"messaging-service/internal/store"
)

var (
	ErrInviteNotFound = errors.New("invite link not found")
	ErrCodeTaken      = errors.New("invite code already in use")
)

// InviteRepository stores invite links keyed by code, which keeps codes unique.
type InviteRepository interface {
	CreateInvite(ctx context.Context, link models.InviteLink) error
	GetInvite(ctx context.Context, code string) (models.InviteLink, error)
	UpdateInvite(ctx context.Context, code string, fn func(link *models.InviteLink) error) (models.InviteLink, error)
}

// InviteRepo is a content-store implementation of InviteRepository.
type InviteRepo struct {
	store store.Store
}

// NewInviteRepo constructs an InviteRepo.
func NewInviteRepo(s store.Store) *InviteRepo {
	return &InviteRepo{store: s}
}

func (r *InviteRepo) CreateInvite(ctx context.Context, link models.InviteLink) error {
	err := store.CreateJSON(ctx, r.store, invitePath(link.Code), link)
	if errors.Is(err, store.ErrConflict) {
		return ErrCodeTaken
	}
	return err
}

func (r *InviteRepo) GetInvite(ctx context.Context, code string) (models.InviteLink, error) {
	link, _, err := store.GetJSON[models.InviteLink](ctx, r.store, invitePath(code))
	if errors.Is(err, store.ErrNotFound) {
		return models.InviteLink{}, ErrInviteNotFound
	}
	return link, err
}

// UpdateInvite applies fn atomically; concurrent redemptions serialize here.
func (r *InviteRepo) UpdateInvite(ctx context.Context, code string, fn func(link *models.InviteLink) error) (models.InviteLink, error) {
	return store.Update(ctx, r.store, invitePath(code), func(cur models.InviteLink, exists bool) (models.InviteLink, error) {
		if !exists {
			return cur, ErrInviteNotFound
		}
		if err := fn(&cur); err != nil {
			return cur, err
		}
		return cur, nil
	})
}
