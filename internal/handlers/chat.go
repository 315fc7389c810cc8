package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/engine"
	"messaging-service/internal/models"
)

// ChatHandler manages chat and membership endpoints.
type ChatHandler struct {
	chats ChatService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type createChatRequest struct {
	Kind               models.ChatKind         `json:"kind" binding:"required"`
	ParticipantIDs     []string                `json:"participant_ids"`
	Name               string                  `json:"name"`
	BannedWords        []string                `json:"banned_words"`
	ViolationPolicy    *models.ViolationPolicy `json:"violation_policy"`
	PostSharingEnabled *bool                   `json:"post_sharing_enabled"`
}

// CreateChat creates a private or group chat. The caller is always a
// participant and becomes the admin of a new group.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ids := append([]string{userIDFromContext(c)}, req.ParticipantIDs...)
	var meta *engine.GroupMeta
	if req.Kind == models.ChatGroup {
		meta = &engine.GroupMeta{
			Name:               req.Name,
			BannedWords:        req.BannedWords,
			PostSharingEnabled: req.PostSharingEnabled,
		}
		if req.ViolationPolicy != nil {
			meta.ViolationPolicy = *req.ViolationPolicy
		}
	}

	chat, err := h.chats.CreateChat(c.Request.Context(), req.Kind, ids, meta)
	respond(c, http.StatusCreated, chat, err)
}

// ListMembers returns the members visible to the caller.
func (h *ChatHandler) ListMembers(c *gin.Context) {
	members, err := h.chats.ListMembers(c.Request.Context(), c.Param("chat_id"), userIDFromContext(c))
	respond(c, http.StatusOK, gin.H{"members": members}, err)
}

type userRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AddParticipant adds a user to a group.
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	chat, err := h.chats.AddParticipant(c.Request.Context(), c.Param("chat_id"), req.UserID, userIDFromContext(c))
	respond(c, http.StatusOK, chat, err)
}

// RemoveParticipant removes a user from a group.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	chat, err := h.chats.RemoveParticipant(c.Request.Context(), c.Param("chat_id"), c.Param("user_id"), userIDFromContext(c))
	respond(c, http.StatusOK, chat, err)
}

// Leave removes the caller from a group.
func (h *ChatHandler) Leave(c *gin.Context) {
	chat, err := h.chats.Leave(c.Request.Context(), c.Param("chat_id"), userIDFromContext(c))
	respond(c, http.StatusOK, chat, err)
}

// PromoteAdmin grants admin rights to a participant.
func (h *ChatHandler) PromoteAdmin(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	chat, err := h.chats.PromoteAdmin(c.Request.Context(), c.Param("chat_id"), req.UserID, userIDFromContext(c))
	respond(c, http.StatusOK, chat, err)
}

type settingsRequest struct {
	Name               *string                 `json:"name"`
	BannedWords        *[]string               `json:"banned_words"`
	ViolationPolicy    *models.ViolationPolicy `json:"violation_policy"`
	PostSharingEnabled *bool                   `json:"post_sharing_enabled"`
}

// UpdateSettings applies a partial update to a group's settings.
func (h *ChatHandler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	chat, err := h.chats.UpdateGroupSettings(c.Request.Context(), c.Param("chat_id"), userIDFromContext(c), engine.GroupSettings{
		Name:               req.Name,
		BannedWords:        req.BannedWords,
		ViolationPolicy:    req.ViolationPolicy,
		PostSharingEnabled: req.PostSharingEnabled,
	})
	respond(c, http.StatusOK, chat, err)
}

// SetPrivacy stores the caller's member-list visibility.
func (h *ChatHandler) SetPrivacy(c *gin.Context) {
	var req struct {
		HideFromMemberList *bool `json:"hide_from_member_list" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	setting, err := h.chats.SetPrivacy(c.Request.Context(), userIDFromContext(c), *req.HideFromMemberList)
	respond(c, http.StatusOK, setting, err)
}
