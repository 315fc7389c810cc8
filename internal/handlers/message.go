package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/engine"
	"messaging-service/internal/models"
)

// MessageHandler manages message endpoints.
type MessageHandler struct {
	messages MessageService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// ListMessages returns a chat's messages in order.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	msgs, err := h.messages.ListMessages(c.Request.Context(), c.Param("chat_id"), userIDFromContext(c))
	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, m.View())
	}
	respond(c, http.StatusOK, gin.H{"messages": views}, err)
}

type sendRequest struct {
	Content      string             `json:"content"`
	Kind         models.MessageKind `json:"kind"`
	ReplyTo      string             `json:"reply_to"`
	MediaRef     string             `json:"media_ref"`
	SharedPostID string             `json:"shared_post_id"`
}

// PostMessage sends a message as the caller.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), c.Param("chat_id"), userIDFromContext(c), engine.Payload{
		Content:      req.Content,
		Kind:         req.Kind,
		ReplyTo:      req.ReplyTo,
		MediaRef:     req.MediaRef,
		SharedPostID: req.SharedPostID,
	})
	respond(c, http.StatusCreated, msg.View(), err)
}

// EditMessage replaces the text of one of the caller's messages.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.messages.Edit(c.Request.Context(), c.Param("chat_id"), c.Param("message_id"), req.Content, userIDFromContext(c))
	respond(c, http.StatusOK, msg.View(), err)
}

// DeleteMessage soft-deletes one of the caller's messages.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	msg, err := h.messages.Delete(c.Request.Context(), c.Param("chat_id"), c.Param("message_id"), userIDFromContext(c))
	respond(c, http.StatusOK, msg.View(), err)
}

// MarkRead records that the caller has read the chat.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	err := h.messages.MarkRead(c.Request.Context(), c.Param("chat_id"), userIDFromContext(c))
	respond(c, http.StatusOK, nil, err)
}
