package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/engine"
	"messaging-service/internal/models"
)

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) CreateChat(ctx context.Context, kind models.ChatKind, participantIDs []string, meta *engine.GroupMeta) (models.Chat, error) {
	args := m.Called(ctx, kind, participantIDs, meta)
	return chatArg(args, 0), args.Error(1)
}

func (m *ChatServiceMock) ListMembers(ctx context.Context, chatID, viewerID string) ([]models.Member, error) {
	args := m.Called(ctx, chatID, viewerID)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *ChatServiceMock) AddParticipant(ctx context.Context, chatID, userID, actingAdminID string) (models.Chat, error) {
	args := m.Called(ctx, chatID, userID, actingAdminID)
	return chatArg(args, 0), args.Error(1)
}

func (m *ChatServiceMock) RemoveParticipant(ctx context.Context, chatID, userID, actingAdminID string) (models.Chat, error) {
	args := m.Called(ctx, chatID, userID, actingAdminID)
	return chatArg(args, 0), args.Error(1)
}

func (m *ChatServiceMock) Leave(ctx context.Context, chatID, userID string) (models.Chat, error) {
	args := m.Called(ctx, chatID, userID)
	return chatArg(args, 0), args.Error(1)
}

func (m *ChatServiceMock) PromoteAdmin(ctx context.Context, chatID, userID, actingAdminID string) (models.Chat, error) {
	args := m.Called(ctx, chatID, userID, actingAdminID)
	return chatArg(args, 0), args.Error(1)
}

func (m *ChatServiceMock) UpdateGroupSettings(ctx context.Context, chatID, actingAdminID string, settings engine.GroupSettings) (models.Chat, error) {
	args := m.Called(ctx, chatID, actingAdminID, settings)
	return chatArg(args, 0), args.Error(1)
}

func (m *ChatServiceMock) SetPrivacy(ctx context.Context, userID string, hideFromMemberList bool) (models.PrivacySetting, error) {
	args := m.Called(ctx, userID, hideFromMemberList)
	var setting models.PrivacySetting
	if val := args.Get(0); val != nil {
		setting = val.(models.PrivacySetting)
	}
	return setting, args.Error(1)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) Send(ctx context.Context, chatID, senderID string, payload engine.Payload) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, payload)
	return messageArg(args, 0), args.Error(1)
}

func (m *MessageServiceMock) Edit(ctx context.Context, chatID, messageID, newContent, requesterID string) (models.Message, error) {
	args := m.Called(ctx, chatID, messageID, newContent, requesterID)
	return messageArg(args, 0), args.Error(1)
}

func (m *MessageServiceMock) Delete(ctx context.Context, chatID, messageID, requesterID string) (models.Message, error) {
	args := m.Called(ctx, chatID, messageID, requesterID)
	return messageArg(args, 0), args.Error(1)
}

func (m *MessageServiceMock) ListMessages(ctx context.Context, chatID, requesterID string) ([]models.Message, error) {
	args := m.Called(ctx, chatID, requesterID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageServiceMock) MarkRead(ctx context.Context, chatID, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

type InviteServiceMock struct {
	mock.Mock
}

func (m *InviteServiceMock) CreateInviteLink(ctx context.Context, chatID, adminID string, opts engine.InviteOptions) (models.InviteLink, error) {
	args := m.Called(ctx, chatID, adminID, opts)
	return inviteArg(args, 0), args.Error(1)
}

func (m *InviteServiceMock) Redeem(ctx context.Context, code, userID string) (models.Chat, error) {
	args := m.Called(ctx, code, userID)
	return chatArg(args, 0), args.Error(1)
}

func (m *InviteServiceMock) RevokeInviteLink(ctx context.Context, code, adminID string) (models.InviteLink, error) {
	args := m.Called(ctx, code, adminID)
	return inviteArg(args, 0), args.Error(1)
}

type ReconcilerMock struct {
	mock.Mock
}

func (m *ReconcilerMock) Reconcile(ctx context.Context) (engine.ReconcileReport, error) {
	args := m.Called(ctx)
	var report engine.ReconcileReport
	if val := args.Get(0); val != nil {
		report = val.(engine.ReconcileReport)
	}
	return report, args.Error(1)
}

func chatArg(args mock.Arguments, i int) models.Chat {
	if val := args.Get(i); val != nil {
		return val.(models.Chat)
	}
	return models.Chat{}
}

func messageArg(args mock.Arguments, i int) models.Message {
	if val := args.Get(i); val != nil {
		return val.(models.Message)
	}
	return models.Message{}
}

func inviteArg(args mock.Arguments, i int) models.InviteLink {
	if val := args.Get(i); val != nil {
		return val.(models.InviteLink)
	}
	return models.InviteLink{}
}
