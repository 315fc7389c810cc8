package engine

import (
	"context"
	"fmt"
	"log"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// enforce applies the group's violation policy to offenderID. Admins are
// never kicked by automated enforcement; their message is still rejected.
func (e *Engine) enforce(ctx context.Context, chat models.Chat, offenderID, word string) error {
	if chat.IsAdmin(offenderID) {
		e.emitAudit(ctx, "WARN", fmt.Sprintf("admin message rejected for banned word %q", word), chat.ID, offenderID)
		return nil
	}

	enforcer := lowestID(chat.AdminIDs)
	reason := fmt.Sprintf("used banned word %q", word)

	switch chat.ViolationPolicy.Kind {
	case models.PolicyTemporaryKick:
		if err := e.suspend(ctx, chat, offenderID, enforcer, reason); err != nil {
			return err
		}
	default:
		if _, err := e.removeMember(ctx, chat.ID, offenderID, enforcer); err != nil {
			if IsReason(err, NotAParticipant) {
				return nil
			}
			return err
		}
		e.sendSystem(ctx, chat.ID, fmt.Sprintf("%s was removed from the group: %s", offenderID, reason))
	}

	policy := string(chat.ViolationPolicy.Kind)
	if policy == "" {
		policy = string(models.PolicyPermanentKick)
	}
	observability.IncModerationAction(policy)
	e.emitAudit(ctx, "WARN", fmt.Sprintf("%s applied by %s: %s", policy, enforcer, reason), chat.ID, offenderID)
	log.Printf("moderation action chat_id=%s user_id=%s policy=%s enforcer=%s", chat.ID, offenderID, policy, enforcer)
	return nil
}

// suspend removes offenderID from participants until the policy window
// elapses. The membership record is kept for restoration.
func (e *Engine) suspend(ctx context.Context, chat models.Chat, offenderID, enforcer, reason string) error {
	now := e.clock.Now()
	policy := chat.ViolationPolicy

	if _, err := e.chats.UpdateChat(ctx, chat.ID, func(c *models.Chat) error {
		if !c.IsParticipant(offenderID) {
			return reject(NotAParticipant, "%s is not a participant", offenderID)
		}
		c.Participants = removeID(c.Participants, offenderID)
		c.AdminIDs = removeID(c.AdminIDs, offenderID)
		return nil
	}); err != nil {
		if IsReason(err, NotAParticipant) {
			return nil
		}
		return chatErr(err)
	}

	suspension := models.TemporarySuspension{
		UserID:      offenderID,
		ChatID:      chat.ID,
		KickedAt:    now,
		KickedUntil: now.Add(policy.Duration()),
		KickedBy:    enforcer,
		Reason:      reason,
	}
	if err := e.suspensions.SaveSuspension(ctx, suspension); err != nil {
		return err
	}
	e.sendSystem(ctx, chat.ID, fmt.Sprintf("%s was removed for %d hours: %s", offenderID, policy.DurationHours, reason))
	return nil
}
