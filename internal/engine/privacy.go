package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"messaging-service/internal/models"
)

// SetPrivacy stores a user's member-list visibility.
func (e *Engine) SetPrivacy(ctx context.Context, userID string, hideFromMemberList bool) (models.PrivacySetting, error) {
	if !validUserID(userID) {
		return models.PrivacySetting{}, reject(InvalidInput, "invalid user id")
	}
	setting := models.PrivacySetting{
		UserID:             userID,
		HideFromMemberList: hideFromMemberList,
		UpdatedAt:          e.clock.Now(),
	}
	if err := e.privacy.SavePrivacy(ctx, setting); err != nil {
		return models.PrivacySetting{}, err
	}
	return setting, nil
}

// ListMembers lists participants as visible to viewerID. Members who hide
// themselves are shown only to themselves and to admins.
func (e *Engine) ListMembers(ctx context.Context, chatID, viewerID string) (members []models.Member, err error) {
	ctx, span := startSpan(ctx, "engine.ListMembers", attribute.String("chat.id", chatID))
	defer func() { endSpan(span, err) }()

	chat, err := e.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(viewerID) {
		return nil, reject(NotAParticipant, "%s is not a participant", viewerID)
	}

	viewerIsAdmin := chat.IsAdmin(viewerID)
	members = make([]models.Member, 0, len(chat.Participants))
	for _, id := range chat.Participants {
		if id != viewerID && !viewerIsAdmin {
			setting, err := e.privacy.GetPrivacy(ctx, id)
			if err != nil {
				return nil, err
			}
			if setting.HideFromMemberList {
				continue
			}
		}
		member := models.Member{UserID: id, IsAdmin: chat.IsAdmin(id)}
		if rec, err := e.memberships.GetMembership(ctx, id, chatID); err == nil {
			joined := rec.JoinedAt
			member.JoinedAt = &joined
		}
		members = append(members, member)
	}
	return members, nil
}
