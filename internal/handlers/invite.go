package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/engine"
)

// InviteHandler manages invite link endpoints.
type InviteHandler struct {
	invites InviteService
}

// NewInviteHandler builds an InviteHandler.
func NewInviteHandler(invites InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

// CreateInvite issues an invite link for a group.
func (h *InviteHandler) CreateInvite(c *gin.Context) {
	var req struct {
		ExpiresAt *time.Time `json:"expires_at"`
		MaxUses   *int       `json:"max_uses"`
	}
	// An empty body means an unlimited link.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	link, err := h.invites.CreateInviteLink(c.Request.Context(), c.Param("chat_id"), userIDFromContext(c), engine.InviteOptions{
		ExpiresAt: req.ExpiresAt,
		MaxUses:   req.MaxUses,
	})
	respond(c, http.StatusCreated, link, err)
}

// Redeem joins the caller to the group behind a code.
func (h *InviteHandler) Redeem(c *gin.Context) {
	chat, err := h.invites.Redeem(c.Request.Context(), c.Param("code"), userIDFromContext(c))
	respond(c, http.StatusOK, chat, err)
}

// Revoke deactivates an invite link.
func (h *InviteHandler) Revoke(c *gin.Context) {
	link, err := h.invites.RevokeInviteLink(c.Request.Context(), c.Param("code"), userIDFromContext(c))
	respond(c, http.StatusOK, link, err)
}
