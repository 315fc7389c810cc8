package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
	"messaging-service/internal/store"
)

func TestClaimPrivatePairIsOrderInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo(store.NewMemory())

	id, claimed, err := repo.ClaimPrivatePair(ctx, "bob", "alice", "chat-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "chat-1", id)

	id, claimed, err = repo.ClaimPrivatePair(ctx, "alice", "bob", "chat-2")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "chat-1", id)

	found, err := repo.FindPrivateChat(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", found)
}

func TestPrivatePairsWithColonsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo(store.NewMemory())

	_, claimed, err := repo.ClaimPrivatePair(ctx, "a:b", "c", "chat-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	id, claimed, err := repo.ClaimPrivatePair(ctx, "a", "b:c", "chat-2")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "chat-2", id)

	found, err := repo.FindPrivateChat(ctx, "b:c", "a")
	require.NoError(t, err)
	assert.Equal(t, "chat-2", found)
}

func TestUpdateChatMissing(t *testing.T) {
	repo := NewChatRepo(store.NewMemory())
	_, err := repo.UpdateChat(context.Background(), "nope", func(*models.Chat) error { return nil })
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestListMessagesOrdersByTimeThenID(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(store.NewMemory())
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateMessage(ctx, models.Message{ID: "b", ChatID: "c", CreatedAt: at, Content: models.Live("2")}))
	require.NoError(t, repo.CreateMessage(ctx, models.Message{ID: "a", ChatID: "c", CreatedAt: at, Content: models.Live("1")}))
	require.NoError(t, repo.CreateMessage(ctx, models.Message{ID: "0", ChatID: "c", CreatedAt: at.Add(time.Second), Content: models.Live("3")}))

	msgs, err := repo.ListMessages(ctx, "c")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"a", "b", "0"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestTouchLastReadCreatesAndAdvances(t *testing.T) {
	ctx := context.Background()
	repo := NewMembershipRepo(store.NewMemory())
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.TouchLastRead(ctx, "u1", "c1", at))
	require.NoError(t, repo.TouchLastRead(ctx, "u1", "c1", at.Add(-time.Minute)))

	rec, err := repo.GetMembership(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, at, rec.JoinedAt)
	assert.Equal(t, at, rec.LastReadAt)
}

func TestPrivacyDefaults(t *testing.T) {
	repo := NewPrivacyRepo(store.NewMemory())
	setting, err := repo.GetPrivacy(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", setting.UserID)
	assert.False(t, setting.HideFromMemberList)
}
