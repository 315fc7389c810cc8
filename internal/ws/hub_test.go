package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
)

type wsFixture struct {
	server   *httptest.Server
	hub      *Hub
	chats    *repositories.ChatRepo
	messages *repositories.MessageRepo
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.NewMemory()
	f := &wsFixture{
		chats:    repositories.NewChatRepo(s),
		messages: repositories.NewMessageRepo(s),
	}
	f.hub = NewHub(s, f.chats)
	router := gin.New()
	router.GET("/ws/chats/:chat_id", middleware.IdentityMiddleware(), NewChatWebSocketHandler(f.hub, f.chats).Handle)
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)

	require.NoError(t, f.chats.CreateChat(context.Background(), models.Chat{
		ID:           "chat-1",
		Kind:         models.ChatGroup,
		Participants: []string{"alice", "bob"},
		AdminIDs:     []string{"alice"},
	}))
	return f
}

func (f *wsFixture) dial(t *testing.T, userID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	return f.dialURL(t, "/ws/chats/chat-1", userID)
}

func (f *wsFixture) dialURL(t *testing.T, path, userID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if userID != "" {
		header.Set(middleware.UserIDHeader, userID)
	}
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + path
	return websocket.DefaultDialer.Dial(url, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ChatEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event models.ChatEvent
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestParticipantReceivesNewAndUpdatedMessages(t *testing.T) {
	f := newWSFixture(t)
	conn, _, err := f.dial(t, "bob")
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "connected", readEvent(t, conn).Type)

	ctx := context.Background()
	msg := models.Message{ID: "m1", ChatID: "chat-1", SenderID: "alice", Content: models.Live("hi bob"), Kind: models.KindText, CreatedAt: time.Now()}
	require.NoError(t, f.messages.CreateMessage(ctx, msg))

	event := readEvent(t, conn)
	assert.Equal(t, "message", event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, "hi bob", event.Message.Content)

	_, err = f.messages.UpdateMessage(ctx, "chat-1", "m1", func(m *models.Message) error {
		m.Content = models.Deleted()
		return nil
	})
	require.NoError(t, err)

	event = readEvent(t, conn)
	assert.Equal(t, "message_updated", event.Type)
	assert.True(t, event.Message.IsDeleted)
	assert.Equal(t, models.Tombstone, event.Message.Content)
}

func TestNonParticipantIsRefused(t *testing.T) {
	f := newWSFixture(t)
	_, resp, err := f.dial(t, "mallory")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = f.dial(t, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestQueryIdentityIsIgnored(t *testing.T) {
	f := newWSFixture(t)

	_, resp, err := f.dialURL(t, "/ws/chats/chat-1?user_id=alice", "mallory")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = f.dialURL(t, "/ws/chats/chat-1?user_id=alice", "")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, f.hub.Clients("chat-1"))
}

func TestRemovedParticipantIsDisconnected(t *testing.T) {
	f := newWSFixture(t)
	conn, _, err := f.dial(t, "bob")
	require.NoError(t, err)
	defer conn.Close()
	readEvent(t, conn)

	ctx := context.Background()
	_, err = f.chats.UpdateChat(ctx, "chat-1", func(c *models.Chat) error {
		c.Participants = []string{"alice"}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, f.messages.CreateMessage(ctx, models.Message{ID: "m2", ChatID: "chat-1", SenderID: "alice", Content: models.Live("bye"), Kind: models.KindText}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)
	assert.Eventually(t, func() bool { return f.hub.Clients("chat-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubUnsubscribesWhenRoomEmpties(t *testing.T) {
	f := newWSFixture(t)
	conn, _, err := f.dial(t, "alice")
	require.NoError(t, err)
	readEvent(t, conn)
	assert.Equal(t, 1, f.hub.Clients("chat-1"))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return f.hub.Clients("chat-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
