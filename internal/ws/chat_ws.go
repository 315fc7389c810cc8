package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// ConnInfo identifies one websocket connection in logs.
type ConnInfo struct {
	ConnID      string
	UserID      string
	ChatID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// ChatWebSocketHandler streams a chat's messages to a participant.
type ChatWebSocketHandler struct {
	hub   *Hub
	chats repositories.ChatRepository
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, chats repositories.ChatRepository) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, chats: chats}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client with the hub.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID := c.Param("chat_id")

	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	// Identity is set by the gateway middleware; nothing in the URL is trusted.
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user id"})
		return
	}

	chat, err := h.chats.GetChat(ctx, chatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat lookup failed"})
		return
	}
	if !chat.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		ChatID:      chatID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	cl := newClient(conn, info)
	if err := h.hub.join(cl); err != nil {
		log.Printf("websocket subscribe failed chat_id=%s: %v", chatID, err)
		_ = conn.Close()
		return
	}
	go cl.writePump()

	ready, _ := json.Marshal(models.ChatEvent{Type: "connected"})
	h.hub.enqueue(cl, ready)

	observability.IncWSActive()
	log.Printf("ws_connect conn_id=%s user_id=%s chat_id=%s ip=%s", info.ConnID, info.UserID, chatID, info.IP)

	go func() {
		var closeReason string
		defer func() {
			h.hub.leave(cl)
			observability.DecWSActive()
			log.Printf("ws_disconnect conn_id=%s user_id=%s chat_id=%s duration_ms=%d reason=%q", info.ConnID, info.UserID, chatID, time.Since(info.ConnectedAt).Milliseconds(), closeReason)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("ws_error conn_id=%s chat_id=%s: %v", info.ConnID, chatID, err)
				}
				return
			}
		}
	}()
}
