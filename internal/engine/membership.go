package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"messaging-service/internal/models"
	"messaging-service/internal/moderation"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
)

// GroupMeta configures a new group chat.
type GroupMeta struct {
	Name               string
	BannedWords        []string
	ViolationPolicy    models.ViolationPolicy
	PostSharingEnabled *bool
}

// GroupSettings is a partial update of a group's configuration.
type GroupSettings struct {
	Name               *string
	BannedWords        *[]string
	ViolationPolicy    *models.ViolationPolicy
	PostSharingEnabled *bool
}

// CreateChat creates a chat. A private chat between a pair that already has
// one returns the existing chat instead of a new one.
func (e *Engine) CreateChat(ctx context.Context, kind models.ChatKind, participantIDs []string, meta *GroupMeta) (chat models.Chat, err error) {
	ctx, span := startSpan(ctx, "engine.CreateChat", attribute.String("chat.kind", string(kind)))
	defer func() { endSpan(span, err) }()

	ids := make([]string, 0, len(participantIDs))
	seen := make(map[string]struct{}, len(participantIDs))
	for _, id := range participantIDs {
		id = strings.TrimSpace(id)
		if !validUserID(id) {
			return models.Chat{}, reject(InvalidInput, "invalid participant id %q", id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	switch kind {
	case models.ChatPrivate:
		if len(ids) != 2 {
			return models.Chat{}, reject(InvalidInput, "private chats need exactly two distinct participants")
		}
		return e.createPrivate(ctx, ids[0], ids[1])
	case models.ChatGroup:
		if len(ids) == 0 {
			return models.Chat{}, reject(InvalidInput, "group chats need at least one participant")
		}
		if meta == nil {
			meta = &GroupMeta{}
		}
		policy, err := normalizePolicy(meta.ViolationPolicy)
		if err != nil {
			return models.Chat{}, err
		}
		return e.createGroup(ctx, ids, *meta, policy)
	default:
		return models.Chat{}, reject(InvalidInput, "unknown chat kind %q", kind)
	}
}

func (e *Engine) createPrivate(ctx context.Context, userA, userB string) (models.Chat, error) {
	existingID, err := e.chats.FindPrivateChat(ctx, userA, userB)
	if err == nil {
		return e.loadChat(ctx, existingID)
	}
	if !errors.Is(err, repositories.ErrChatNotFound) {
		return models.Chat{}, err
	}

	now := e.clock.Now()
	draft := models.Chat{
		ID:           newID(),
		Kind:         models.ChatPrivate,
		Participants: []string{userA, userB},
		CreatedAt:    now,
	}
	if err := e.chats.CreateChat(ctx, draft); err != nil {
		return models.Chat{}, err
	}

	id, claimed, err := e.chats.ClaimPrivatePair(ctx, userA, userB, draft.ID)
	if err != nil {
		return models.Chat{}, err
	}
	if !claimed {
		// Another request created the pair first.
		if err := e.chats.DeleteChat(ctx, draft.ID); err != nil {
			return models.Chat{}, err
		}
		return e.loadChat(ctx, id)
	}

	for _, userID := range draft.Participants {
		if err := e.memberships.SaveMembership(ctx, newMembership(draft.ID, userID, now)); err != nil {
			return models.Chat{}, err
		}
	}
	return draft, nil
}

func (e *Engine) createGroup(ctx context.Context, ids []string, meta GroupMeta, policy models.ViolationPolicy) (models.Chat, error) {
	now := e.clock.Now()
	postSharing := true
	if meta.PostSharingEnabled != nil {
		postSharing = *meta.PostSharingEnabled
	}
	chat := models.Chat{
		ID:                 newID(),
		Kind:               models.ChatGroup,
		Name:               strings.TrimSpace(meta.Name),
		Participants:       ids,
		AdminIDs:           []string{ids[0]},
		BannedWords:        moderation.NormalizeWords(meta.BannedWords),
		ViolationPolicy:    policy,
		PostSharingEnabled: postSharing,
		CreatedAt:          now,
	}
	if err := e.chats.CreateChat(ctx, chat); err != nil {
		return models.Chat{}, err
	}
	for _, userID := range ids {
		if err := e.memberships.SaveMembership(ctx, newMembership(chat.ID, userID, now)); err != nil {
			return models.Chat{}, err
		}
	}
	e.sendSystem(ctx, chat.ID, fmt.Sprintf("%s created the group", ids[0]))
	return chat, nil
}

// AddParticipant adds userID to a group on behalf of one of its admins.
func (e *Engine) AddParticipant(ctx context.Context, chatID, userID, actingAdminID string) (chat models.Chat, err error) {
	ctx, span := startSpan(ctx, "engine.AddParticipant", attribute.String("chat.id", chatID))
	defer func() { endSpan(span, err) }()

	if !validUserID(userID) || !validUserID(actingAdminID) {
		return models.Chat{}, reject(InvalidInput, "invalid user id")
	}

	now := e.clock.Now()
	chat, err = e.chats.UpdateChat(ctx, chatID, func(c *models.Chat) error {
		if err := requireGroupAdmin(*c, actingAdminID); err != nil {
			return err
		}
		if c.IsParticipant(userID) {
			return reject(AlreadyMember, "%s is already a participant", userID)
		}
		c.Participants = append(c.Participants, userID)
		return nil
	})
	if err != nil {
		return models.Chat{}, chatErr(err)
	}

	if err := e.memberships.SaveMembership(ctx, newMembership(chatID, userID, now)); err != nil {
		return models.Chat{}, err
	}
	// A manual re-add supersedes any pending temporary kick.
	if err := e.suspensions.DeleteSuspension(ctx, chatID, userID); err != nil {
		return models.Chat{}, err
	}
	e.sendSystem(ctx, chatID, fmt.Sprintf("%s was added by %s", userID, actingAdminID))
	return chat, nil
}

// RemoveParticipant removes userID from a group on behalf of an admin. An
// admin removing themselves is treated as Leave.
func (e *Engine) RemoveParticipant(ctx context.Context, chatID, userID, actingAdminID string) (chat models.Chat, err error) {
	if userID == actingAdminID {
		return e.Leave(ctx, chatID, userID)
	}

	ctx, span := startSpan(ctx, "engine.RemoveParticipant", attribute.String("chat.id", chatID))
	defer func() { endSpan(span, err) }()

	if !validUserID(userID) || !validUserID(actingAdminID) {
		return models.Chat{}, reject(InvalidInput, "invalid user id")
	}

	chat, err = e.removeMember(ctx, chatID, userID, actingAdminID)
	if err != nil {
		return models.Chat{}, err
	}
	e.sendSystem(ctx, chatID, fmt.Sprintf("%s was removed by %s", userID, actingAdminID))
	return chat, nil
}

// removeMember drops userID from participants and admins and deletes their
// membership record.
func (e *Engine) removeMember(ctx context.Context, chatID, userID, actingAdminID string) (models.Chat, error) {
	chat, err := e.chats.UpdateChat(ctx, chatID, func(c *models.Chat) error {
		if err := requireGroupAdmin(*c, actingAdminID); err != nil {
			return err
		}
		if !c.IsParticipant(userID) {
			return reject(NotAParticipant, "%s is not a participant", userID)
		}
		c.Participants = removeID(c.Participants, userID)
		c.AdminIDs = removeID(c.AdminIDs, userID)
		return nil
	})
	if err != nil {
		return models.Chat{}, chatErr(err)
	}
	if err := e.memberships.DeleteMembership(ctx, userID, chatID); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// Leave removes userID from a group at their own request. When the last admin
// leaves, the longest-standing remaining member is promoted. When the last
// member leaves, the group remains with no participants and no admins; the
// first user to rejoin it through an invite link or a lifted suspension
// becomes its admin.
func (e *Engine) Leave(ctx context.Context, chatID, userID string) (chat models.Chat, err error) {
	ctx, span := startSpan(ctx, "engine.Leave", attribute.String("chat.id", chatID))
	defer func() { endSpan(span, err) }()

	if !validUserID(userID) {
		return models.Chat{}, reject(InvalidInput, "invalid user id")
	}

	current, err := e.loadChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	joined := e.joinTimes(ctx, current)

	var promoted string
	chat, err = e.chats.UpdateChat(ctx, chatID, func(c *models.Chat) error {
		promoted = ""
		if c.Kind != models.ChatGroup {
			return reject(InvalidInput, "private chats cannot be left")
		}
		if !c.IsParticipant(userID) {
			return reject(NotAParticipant, "%s is not a participant", userID)
		}
		c.Participants = removeID(c.Participants, userID)
		c.AdminIDs = removeID(c.AdminIDs, userID)
		if len(c.AdminIDs) == 0 && len(c.Participants) > 0 {
			promoted = oldestMember(c.Participants, joined)
			c.AdminIDs = []string{promoted}
		}
		return nil
	})
	if err != nil {
		return models.Chat{}, chatErr(err)
	}

	if err := e.memberships.DeleteMembership(ctx, userID, chatID); err != nil {
		return models.Chat{}, err
	}
	e.sendSystem(ctx, chatID, fmt.Sprintf("%s left the group", userID))
	if promoted != "" {
		e.sendSystem(ctx, chatID, fmt.Sprintf("%s is now an admin", promoted))
	}
	return chat, nil
}

// PromoteAdmin grants admin rights to an existing participant.
func (e *Engine) PromoteAdmin(ctx context.Context, chatID, userID, actingAdminID string) (chat models.Chat, err error) {
	ctx, span := startSpan(ctx, "engine.PromoteAdmin", attribute.String("chat.id", chatID))
	defer func() { endSpan(span, err) }()

	if !validUserID(userID) || !validUserID(actingAdminID) {
		return models.Chat{}, reject(InvalidInput, "invalid user id")
	}

	changed := false
	chat, err = e.chats.UpdateChat(ctx, chatID, func(c *models.Chat) error {
		changed = false
		if err := requireGroupAdmin(*c, actingAdminID); err != nil {
			return err
		}
		if !c.IsParticipant(userID) {
			return reject(NotAParticipant, "%s is not a participant", userID)
		}
		if c.IsAdmin(userID) {
			return store.ErrAbort
		}
		c.AdminIDs = append(c.AdminIDs, userID)
		changed = true
		return nil
	})
	if err != nil {
		return models.Chat{}, chatErr(err)
	}
	if changed {
		e.sendSystem(ctx, chatID, fmt.Sprintf("%s is now an admin", userID))
	}
	return chat, nil
}

// UpdateGroupSettings changes a group's name, banned words, violation policy
// or post sharing flag.
func (e *Engine) UpdateGroupSettings(ctx context.Context, chatID, actingAdminID string, settings GroupSettings) (chat models.Chat, err error) {
	ctx, span := startSpan(ctx, "engine.UpdateGroupSettings", attribute.String("chat.id", chatID))
	defer func() { endSpan(span, err) }()

	var policy models.ViolationPolicy
	if settings.ViolationPolicy != nil {
		if policy, err = normalizePolicy(*settings.ViolationPolicy); err != nil {
			return models.Chat{}, err
		}
	}
	var words []string
	if settings.BannedWords != nil {
		words = moderation.NormalizeWords(*settings.BannedWords)
	}

	chat, err = e.chats.UpdateChat(ctx, chatID, func(c *models.Chat) error {
		if err := requireGroupAdmin(*c, actingAdminID); err != nil {
			return err
		}
		if settings.Name != nil {
			c.Name = strings.TrimSpace(*settings.Name)
		}
		if settings.BannedWords != nil {
			c.BannedWords = words
		}
		if settings.ViolationPolicy != nil {
			c.ViolationPolicy = policy
		}
		if settings.PostSharingEnabled != nil {
			c.PostSharingEnabled = *settings.PostSharingEnabled
		}
		return nil
	})
	if err != nil {
		return models.Chat{}, chatErr(err)
	}
	e.emitAudit(ctx, "INFO", "group settings updated", chatID, actingAdminID)
	return chat, nil
}

// adoptIfLeaderless makes userID the admin of a group that has none.
func adoptIfLeaderless(c *models.Chat, userID string) {
	if c.Kind == models.ChatGroup && len(c.AdminIDs) == 0 {
		c.AdminIDs = []string{userID}
	}
}

func requireGroupAdmin(c models.Chat, userID string) error {
	if c.Kind != models.ChatGroup {
		return reject(InvalidInput, "private chats have fixed participants")
	}
	if !c.IsAdmin(userID) {
		return reject(NotAuthorized, "%s is not an admin of this group", userID)
	}
	return nil
}

func normalizePolicy(p models.ViolationPolicy) (models.ViolationPolicy, error) {
	switch p.Kind {
	case "", models.PolicyPermanentKick:
		return models.ViolationPolicy{Kind: models.PolicyPermanentKick}, nil
	case models.PolicyTemporaryKick:
		if p.DurationHours <= 0 {
			return models.ViolationPolicy{}, reject(InvalidInput, "temporary kick needs a positive duration")
		}
		return p, nil
	default:
		return models.ViolationPolicy{}, reject(InvalidInput, "unknown violation policy %q", p.Kind)
	}
}

func newMembership(chatID, userID string, now time.Time) models.MembershipRecord {
	return models.MembershipRecord{ChatID: chatID, UserID: userID, JoinedAt: now, LastReadAt: now}
}

// joinTimes collects known join times for a chat's participants. Missing
// records are skipped.
func (e *Engine) joinTimes(ctx context.Context, chat models.Chat) map[string]time.Time {
	out := make(map[string]time.Time, len(chat.Participants))
	for _, id := range chat.Participants {
		rec, err := e.memberships.GetMembership(ctx, id, chat.ID)
		if err != nil {
			continue
		}
		out[id] = rec.JoinedAt
	}
	return out
}

// oldestMember picks the earliest joiner; unknown join times sort last and
// ties keep participant order.
func oldestMember(participants []string, joined map[string]time.Time) string {
	best := ""
	var bestAt time.Time
	bestKnown := false
	for _, id := range participants {
		at, known := joined[id]
		switch {
		case best == "":
			best, bestAt, bestKnown = id, at, known
		case known && (!bestKnown || at.Before(bestAt)):
			best, bestAt, bestKnown = id, at, known
		}
	}
	return best
}
