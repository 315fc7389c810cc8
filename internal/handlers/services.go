package handlers

import (
	"context"

	"messaging-service/internal/engine"
	"messaging-service/internal/models"
)

// ChatService covers chat membership and member-list privacy.
type ChatService interface {
	CreateChat(ctx context.Context, kind models.ChatKind, participantIDs []string, meta *engine.GroupMeta) (models.Chat, error)
	ListMembers(ctx context.Context, chatID, viewerID string) ([]models.Member, error)
	AddParticipant(ctx context.Context, chatID, userID, actingAdminID string) (models.Chat, error)
	RemoveParticipant(ctx context.Context, chatID, userID, actingAdminID string) (models.Chat, error)
	Leave(ctx context.Context, chatID, userID string) (models.Chat, error)
	PromoteAdmin(ctx context.Context, chatID, userID, actingAdminID string) (models.Chat, error)
	UpdateGroupSettings(ctx context.Context, chatID, actingAdminID string, settings engine.GroupSettings) (models.Chat, error)
	SetPrivacy(ctx context.Context, userID string, hideFromMemberList bool) (models.PrivacySetting, error)
}

// MessageService covers the message pipeline.
type MessageService interface {
	Send(ctx context.Context, chatID, senderID string, payload engine.Payload) (models.Message, error)
	Edit(ctx context.Context, chatID, messageID, newContent, requesterID string) (models.Message, error)
	Delete(ctx context.Context, chatID, messageID, requesterID string) (models.Message, error)
	ListMessages(ctx context.Context, chatID, requesterID string) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID, userID string) error
}

// InviteService covers invite links.
type InviteService interface {
	CreateInviteLink(ctx context.Context, chatID, adminID string, opts engine.InviteOptions) (models.InviteLink, error)
	Redeem(ctx context.Context, code, userID string) (models.Chat, error)
	RevokeInviteLink(ctx context.Context, code, adminID string) (models.InviteLink, error)
}

// Reconciler restores due temporary suspensions.
type Reconciler interface {
	Reconcile(ctx context.Context) (engine.ReconcileReport, error)
}
