package engine

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

const (
	inviteCodeBytes   = 12
	maxCodeCollisions = 5
)

// InviteOptions are the optional limits of a new invite link.
type InviteOptions struct {
	ExpiresAt *time.Time
	MaxUses   *int
}

// CreateInviteLink issues a new invite code for a group.
func (e *Engine) CreateInviteLink(ctx context.Context, chatID, adminID string, opts InviteOptions) (link models.InviteLink, err error) {
	ctx, span := startSpan(ctx, "engine.CreateInviteLink", attribute.String("chat.id", chatID))
	defer func() { endSpan(span, err) }()

	now := e.clock.Now()
	if opts.MaxUses != nil && *opts.MaxUses < 1 {
		return models.InviteLink{}, reject(InvalidInput, "max uses must be positive")
	}
	if opts.ExpiresAt != nil && !opts.ExpiresAt.After(now) {
		return models.InviteLink{}, reject(InvalidInput, "expiry must be in the future")
	}

	chat, err := e.loadChat(ctx, chatID)
	if err != nil {
		return models.InviteLink{}, err
	}
	if err := requireGroupAdmin(chat, adminID); err != nil {
		return models.InviteLink{}, err
	}

	link = models.InviteLink{
		ID:        newID(),
		ChatID:    chatID,
		CreatedBy: adminID,
		CreatedAt: now,
		ExpiresAt: opts.ExpiresAt,
		MaxUses:   opts.MaxUses,
		Active:    true,
	}
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeCollisions {
			return models.InviteLink{}, fmt.Errorf("generate invite code: %w", repositories.ErrCodeTaken)
		}
		if link.Code, err = newInviteCode(); err != nil {
			return models.InviteLink{}, err
		}
		err = e.invites.CreateInvite(ctx, link)
		if errors.Is(err, repositories.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return models.InviteLink{}, err
		}
		break
	}

	if _, err := e.chats.UpdateChat(ctx, chatID, func(c *models.Chat) error {
		c.InviteCode = link.Code
		return nil
	}); err != nil {
		return models.InviteLink{}, chatErr(err)
	}
	e.emitAudit(ctx, "INFO", "invite link created", chatID, adminID)
	return link, nil
}

// Redeem admits userID to the group behind code. The usage counter is bumped
// with a compare-and-swap that re-checks expiry and the cap, so concurrent
// redemptions can never push CurrentUses past MaxUses.
func (e *Engine) Redeem(ctx context.Context, code, userID string) (chat models.Chat, err error) {
	ctx, span := startSpan(ctx, "engine.Redeem")
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			if c, ok := Reason(err); ok {
				outcome = string(c)
			}
		}
		observability.IncInviteRedemption(outcome)
		endSpan(span, err)
	}()

	code = strings.TrimSpace(code)
	if code == "" || strings.Contains(code, "/") {
		return models.Chat{}, reject(InvalidInput, "invalid invite code")
	}
	if !validUserID(userID) {
		return models.Chat{}, reject(InvalidInput, "invalid user id")
	}

	link, err := e.invites.GetInvite(ctx, code)
	if err != nil {
		return models.Chat{}, inviteErr(err)
	}
	if revoked(link) {
		return models.Chat{}, reject(Inactive, "invite link is no longer active")
	}
	span.SetAttributes(attribute.String("chat.id", link.ChatID))

	current, err := e.loadChat(ctx, link.ChatID)
	if err != nil {
		return models.Chat{}, err
	}
	if current.IsParticipant(userID) {
		return models.Chat{}, reject(AlreadyMember, "%s is already a participant", userID)
	}
	if _, err := e.suspensions.GetSuspension(ctx, link.ChatID, userID); err == nil {
		return models.Chat{}, reject(NotAuthorized, "%s is temporarily suspended from this group", userID)
	} else if !errors.Is(err, repositories.ErrSuspensionNotFound) {
		return models.Chat{}, err
	}

	now := e.clock.Now()
	if _, err := e.invites.UpdateInvite(ctx, code, func(l *models.InviteLink) error {
		if revoked(*l) {
			return reject(Inactive, "invite link is no longer active")
		}
		if l.Expired(now) {
			return reject(Expired, "invite link has expired")
		}
		if l.Exhausted() {
			return reject(Exhausted, "invite link has reached its usage limit")
		}
		l.CurrentUses++
		if l.Exhausted() {
			l.Active = false
			l.DeactivatedReason = models.DeactivatedExhausted
		}
		return nil
	}); err != nil {
		if IsReason(err, Expired) {
			e.deactivateExpired(ctx, code, now)
		}
		return models.Chat{}, inviteErr(err)
	}

	chat, err = e.chats.UpdateChat(ctx, link.ChatID, func(c *models.Chat) error {
		if c.IsParticipant(userID) {
			return reject(AlreadyMember, "%s is already a participant", userID)
		}
		c.Participants = append(c.Participants, userID)
		adoptIfLeaderless(c, userID)
		return nil
	})
	if err != nil {
		e.releaseUse(ctx, code)
		return models.Chat{}, chatErr(err)
	}

	if err := e.memberships.SaveMembership(ctx, newMembership(link.ChatID, userID, now)); err != nil {
		return models.Chat{}, err
	}
	e.sendSystem(ctx, link.ChatID, fmt.Sprintf("%s joined via invite link", userID))
	return chat, nil
}

// RevokeInviteLink deactivates a link on behalf of a group admin.
func (e *Engine) RevokeInviteLink(ctx context.Context, code, adminID string) (link models.InviteLink, err error) {
	ctx, span := startSpan(ctx, "engine.RevokeInviteLink")
	defer func() { endSpan(span, err) }()

	link, err = e.invites.GetInvite(ctx, code)
	if err != nil {
		return models.InviteLink{}, inviteErr(err)
	}
	chat, err := e.loadChat(ctx, link.ChatID)
	if err != nil {
		return models.InviteLink{}, err
	}
	if err := requireGroupAdmin(chat, adminID); err != nil {
		return models.InviteLink{}, err
	}

	link, err = e.invites.UpdateInvite(ctx, code, func(l *models.InviteLink) error {
		l.Active = false
		l.DeactivatedReason = models.DeactivatedRevoked
		return nil
	})
	if err != nil {
		return models.InviteLink{}, inviteErr(err)
	}
	if _, err := e.chats.UpdateChat(ctx, link.ChatID, func(c *models.Chat) error {
		if c.InviteCode == code {
			c.InviteCode = ""
		}
		return nil
	}); err != nil {
		return models.InviteLink{}, chatErr(err)
	}
	e.emitAudit(ctx, "INFO", "invite link revoked", link.ChatID, adminID)
	return link, nil
}

// releaseUse gives back a use taken by a redemption whose participant add failed.
func (e *Engine) releaseUse(ctx context.Context, code string) {
	if _, err := e.invites.UpdateInvite(ctx, code, func(l *models.InviteLink) error {
		if l.CurrentUses > 0 {
			l.CurrentUses--
		}
		if l.DeactivatedReason == models.DeactivatedExhausted && !l.Exhausted() {
			l.Active = true
			l.DeactivatedReason = ""
		}
		return nil
	}); err != nil {
		log.Printf("release invite use failed code=%s: %v", code, err)
	}
}

func (e *Engine) deactivateExpired(ctx context.Context, code string, now time.Time) {
	if _, err := e.invites.UpdateInvite(ctx, code, func(l *models.InviteLink) error {
		if l.Active && l.Expired(now) {
			l.Active = false
			l.DeactivatedReason = models.DeactivatedExpired
		}
		return nil
	}); err != nil {
		log.Printf("deactivate expired invite failed code=%s: %v", code, err)
	}
}

// revoked reports whether the link was switched off for a reason other than
// expiry or exhaustion, which are reported with their own codes.
func revoked(l models.InviteLink) bool {
	return !l.Active && l.DeactivatedReason != models.DeactivatedExpired && l.DeactivatedReason != models.DeactivatedExhausted
}

func inviteErr(err error) error {
	if errors.Is(err, repositories.ErrInviteNotFound) {
		return reject(NotFound, "invite link not found")
	}
	return err
}

func newInviteCode() (string, error) {
	buf := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
