package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
)

// Hub fans store changes under each chat's message subtree out to the
// websocket clients watching that chat. A room subscribes to the store when
// its first client joins and unsubscribes when the last one leaves.
type Hub struct {
	store store.Store
	chats repositories.ChatRepository

	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	clients     map[*client]struct{}
	unsubscribe func()
}

type client struct {
	conn *websocket.Conn
	info ConnInfo
	send chan []byte
}

// NewHub creates an empty hub reading from s.
func NewHub(s store.Store, chats repositories.ChatRepository) *Hub {
	return &Hub{
		store: s,
		chats: chats,
		rooms: make(map[string]*room),
	}
}

func newClient(conn *websocket.Conn, info ConnInfo) *client {
	return &client{conn: conn, info: info, send: make(chan []byte, sendBuffer)}
}

// join registers c in its chat's room.
func (h *Hub) join(c *client) error {
	chatID := c.info.ChatID
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[chatID]
	if !ok {
		unsubscribe, err := h.store.Subscribe(context.Background(), repositories.MessagesPath(chatID), func(change store.Change) {
			h.dispatch(chatID, change)
		})
		if err != nil {
			return err
		}
		r = &room{clients: make(map[*client]struct{}), unsubscribe: unsubscribe}
		h.rooms[chatID] = r
	}
	r.clients[c] = struct{}{}
	return nil
}

// leave unregisters c and closes its send queue. It is safe to call twice.
func (h *Hub) leave(c *client) {
	chatID := c.info.ChatID
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[chatID]
	if !ok {
		return
	}
	if _, member := r.clients[c]; !member {
		return
	}
	delete(r.clients, c)
	close(c.send)
	if len(r.clients) == 0 {
		r.unsubscribe()
		delete(h.rooms, chatID)
	}
}

// Clients reports how many connections are watching chatID.
func (h *Hub) Clients(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[chatID]; ok {
		return len(r.clients)
	}
	return 0
}

func (h *Hub) snapshot(chatID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[chatID]
	if !ok {
		return nil
	}
	out := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

// dispatch pushes one message write to the room. Connections whose user is
// no longer a participant are dropped instead of served.
func (h *Hub) dispatch(chatID string, change store.Change) {
	if change.Removed {
		return
	}
	var msg models.Message
	if err := json.Unmarshal(change.Value, &msg); err != nil {
		log.Printf("websocket decode error chat_id=%s path=%s: %v", chatID, change.Path, err)
		return
	}

	eventType := "message"
	if msg.IsEdited || msg.IsDeleted() {
		eventType = "message_updated"
	}
	view := msg.View()
	payload, err := json.Marshal(models.ChatEvent{Type: eventType, Message: &view})
	if err != nil {
		log.Printf("websocket encode error chat_id=%s: %v", chatID, err)
		return
	}

	clients := h.snapshot(chatID)
	if len(clients) == 0 {
		return
	}
	chat, err := h.chats.GetChat(context.Background(), chatID)
	if err != nil {
		log.Printf("websocket chat lookup failed chat_id=%s: %v", chatID, err)
		return
	}
	for _, c := range clients {
		if !chat.IsParticipant(c.info.UserID) {
			log.Printf("websocket closing conn_id=%s user_id=%s chat_id=%s: no longer a participant", c.info.ConnID, c.info.UserID, chatID)
			h.leave(c)
			continue
		}
		h.enqueue(c, payload)
	}
}

// enqueue hands payload to c without blocking the writer that produced it.
func (h *Hub) enqueue(c *client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[c.info.ChatID]
	if !ok {
		return
	}
	if _, member := r.clients[c]; !member {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Printf("websocket slow consumer conn_id=%s chat_id=%s, dropping", c.info.ConnID, c.info.ChatID)
		go h.leave(c)
	}
}

// writePump serializes writes to the connection until the send queue closes.
func (c *client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error conn_id=%s: %v", c.info.ConnID, err)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
