package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"messaging-service/internal/clock"
	"messaging-service/internal/models"
	"messaging-service/internal/store"
)

var testStart = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, note models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return n.err
}

func (n *recordingNotifier) notifications() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.sent...)
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAuditor) Emit(_ context.Context, level, text, chatID, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, level+" "+text)
}

type fixture struct {
	engine   *Engine
	clock    *clock.Fake
	store    *store.Memory
	notifier *recordingNotifier
	audit    *recordingAuditor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clock.NewFake(testStart),
		store:    store.NewMemory(),
		notifier: &recordingNotifier{},
		audit:    &recordingAuditor{},
	}
	f.engine = New(f.store, WithClock(f.clock), WithNotifier(f.notifier), WithAuditor(f.audit))
	return f
}

func (f *fixture) group(t *testing.T, meta GroupMeta, ids ...string) models.Chat {
	t.Helper()
	chat, err := f.engine.CreateChat(context.Background(), models.ChatGroup, ids, &meta)
	require.NoError(t, err)
	return chat
}

func (f *fixture) chat(t *testing.T, id string) models.Chat {
	t.Helper()
	chat, err := f.engine.chats.GetChat(context.Background(), id)
	require.NoError(t, err)
	requireAdminsSubset(t, chat)
	return chat
}

// userMessages returns the non-system messages of a chat.
func (f *fixture) userMessages(t *testing.T, chatID string) []models.Message {
	t.Helper()
	msgs, err := f.engine.messages.ListMessages(context.Background(), chatID)
	require.NoError(t, err)
	var out []models.Message
	for _, m := range msgs {
		if !m.IsSystem() {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) systemTexts(t *testing.T, chatID string) []string {
	t.Helper()
	msgs, err := f.engine.messages.ListMessages(context.Background(), chatID)
	require.NoError(t, err)
	var out []string
	for _, m := range msgs {
		if m.IsSystem() {
			out = append(out, m.Content.Text())
		}
	}
	return out
}

func requireReason(t *testing.T, err error, code ReasonCode) {
	t.Helper()
	require.Error(t, err)
	got, ok := Reason(err)
	require.True(t, ok, "expected rejection %s, got %v", code, err)
	require.Equal(t, code, got)
}

func requireAdminsSubset(t *testing.T, chat models.Chat) {
	t.Helper()
	for _, admin := range chat.AdminIDs {
		require.Contains(t, chat.Participants, admin, "admin %s must be a participant", admin)
	}
	if chat.Kind == models.ChatPrivate {
		require.Len(t, chat.Participants, 2)
		require.Empty(t, chat.AdminIDs)
	}
}

func TestNewResult(t *testing.T) {
	res, err := NewResult("data", nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "data", res.Data)

	res, err = NewResult(nil, reject(Exhausted, "full"))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, Exhausted, res.Error)

	boom := errors.New("store unreachable")
	_, err = NewResult(nil, boom)
	require.ErrorIs(t, err, boom)
}
