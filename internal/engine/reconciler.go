package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

var errAlreadyParticipant = errors.New("already a participant")

// ReconcileReport summarizes one reconciler sweep.
type ReconcileReport struct {
	Scanned  int `json:"scanned"`
	Restored int `json:"restored"`
	Failed   int `json:"failed"`
}

// Reconcile restores every temporarily kicked member whose window has
// elapsed. Overlapping runs are safe: a user who is already back counts as
// restored and gets no second announcement.
func (e *Engine) Reconcile(ctx context.Context) (report ReconcileReport, err error) {
	ctx, span := startSpan(ctx, "engine.Reconcile")
	defer func() { endSpan(span, err) }()
	start := time.Now()
	defer func() { observability.ObserveReconcile(time.Since(start)) }()

	suspensions, err := e.suspensions.ListSuspensions(ctx)
	if err != nil {
		return report, err
	}

	now := e.clock.Now()
	for _, s := range suspensions {
		report.Scanned++
		if !s.Due(now) {
			continue
		}
		if err := e.restore(ctx, s, now); err != nil {
			report.Failed++
			log.Printf("restore failed chat_id=%s user_id=%s: %v", s.ChatID, s.UserID, err)
			continue
		}
		report.Restored++
	}
	return report, nil
}

func (e *Engine) restore(ctx context.Context, s models.TemporarySuspension, now time.Time) error {
	_, err := e.chats.UpdateChat(ctx, s.ChatID, func(c *models.Chat) error {
		if c.IsParticipant(s.UserID) {
			return errAlreadyParticipant
		}
		c.Participants = append(c.Participants, s.UserID)
		adoptIfLeaderless(c, s.UserID)
		return nil
	})
	added := err == nil
	switch {
	case errors.Is(err, repositories.ErrChatNotFound):
		return e.suspensions.DeleteSuspension(ctx, s.ChatID, s.UserID)
	case err != nil && !errors.Is(err, errAlreadyParticipant):
		return err
	}

	rec := newMembership(s.ChatID, s.UserID, now)
	if existing, err := e.memberships.GetMembership(ctx, s.UserID, s.ChatID); err == nil {
		rec.JoinedAt = existing.JoinedAt
	} else if !errors.Is(err, repositories.ErrMembershipNotFound) {
		return err
	}
	if err := e.memberships.SaveMembership(ctx, rec); err != nil {
		return err
	}

	if added {
		observability.IncSuspensionRestored()
		e.sendSystem(ctx, s.ChatID, fmt.Sprintf("%s was restored to the group", s.UserID))
		e.emitAudit(ctx, "INFO", "temporary suspension lifted", s.ChatID, s.UserID)
	}
	return e.suspensions.DeleteSuspension(ctx, s.ChatID, s.UserID)
}
