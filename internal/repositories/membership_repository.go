package repositories

import (
	"context"
	"errors"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/store"
)

var ErrMembershipNotFound = errors.New("membership record not found")

// MembershipRepository stores per-user chat bookkeeping.
type MembershipRepository interface {
	SaveMembership(ctx context.Context, rec models.MembershipRecord) error
	GetMembership(ctx context.Context, userID, chatID string) (models.MembershipRecord, error)
	DeleteMembership(ctx context.Context, userID, chatID string) error
	TouchLastRead(ctx context.Context, userID, chatID string, at time.Time) error
}

// MembershipRepo is a content-store implementation of MembershipRepository.
type MembershipRepo struct {
	store store.Store
}

// NewMembershipRepo constructs a MembershipRepo.
func NewMembershipRepo(s store.Store) *MembershipRepo {
	return &MembershipRepo{store: s}
}

func (r *MembershipRepo) SaveMembership(ctx context.Context, rec models.MembershipRecord) error {
	return store.SetJSON(ctx, r.store, membershipPath(rec.UserID, rec.ChatID), rec)
}

func (r *MembershipRepo) GetMembership(ctx context.Context, userID, chatID string) (models.MembershipRecord, error) {
	rec, _, err := store.GetJSON[models.MembershipRecord](ctx, r.store, membershipPath(userID, chatID))
	if errors.Is(err, store.ErrNotFound) {
		return models.MembershipRecord{}, ErrMembershipNotFound
	}
	return rec, err
}

func (r *MembershipRepo) DeleteMembership(ctx context.Context, userID, chatID string) error {
	return r.store.Remove(ctx, membershipPath(userID, chatID))
}

// TouchLastRead advances LastReadAt, creating the record if it is missing.
func (r *MembershipRepo) TouchLastRead(ctx context.Context, userID, chatID string, at time.Time) error {
	_, err := store.Update(ctx, r.store, membershipPath(userID, chatID), func(cur models.MembershipRecord, exists bool) (models.MembershipRecord, error) {
		if !exists {
			cur = models.MembershipRecord{ChatID: chatID, UserID: userID, JoinedAt: at}
		}
		if at.After(cur.LastReadAt) {
			cur.LastReadAt = at
		}
		return cur, nil
	})
	return err
}
