package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
)

func TestSendValidatesBeforeTouchingTheStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		payload Payload
	}{
		{"empty text", Payload{Content: "   "}},
		{"unknown kind", Payload{Content: "hi", Kind: "sticker"}},
		{"image without media", Payload{Kind: models.KindImage}},
		{"post share without post", Payload{Kind: models.KindPostShare}},
		{"too long", Payload{Content: strings.Repeat("x", MaxContentLength+1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Send(ctx, "no-such-chat", "alice", tc.payload)
			requireReason(t, err, InvalidInput)
		})
	}
}

func TestSendRejectsUnknownChatAndOutsiders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, GroupMeta{}, "a", "b")

	_, err := f.engine.Send(ctx, "missing", "a", Payload{Content: "hi"})
	requireReason(t, err, NotFound)
	_, err = f.engine.Send(ctx, chat.ID, "outsider", Payload{Content: "hi"})
	requireReason(t, err, NotAParticipant)
	assert.Empty(t, f.userMessages(t, chat.ID))
}

func TestSendPersistsAndFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, GroupMeta{}, "a", "b", "c")

	f.clock.Advance(time.Minute)
	long := strings.Repeat("é", 60)
	msg, err := f.engine.Send(ctx, chat.ID, "a", Payload{Content: long})
	require.NoError(t, err)
	assert.Equal(t, models.KindText, msg.Kind)
	assert.Equal(t, testStart.Add(time.Minute), msg.CreatedAt)

	stored := f.userMessages(t, chat.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, msg.ID, stored[0].ID)

	notes := f.notifier.notifications()
	require.Len(t, notes, 2)
	recipients := []string{notes[0].RecipientID, notes[1].RecipientID}
	assert.ElementsMatch(t, []string{"b", "c"}, recipients)
	for _, n := range notes {
		assert.Equal(t, "a", n.FromUserID)
		assert.Equal(t, msg.ID, n.MessageID)
		assert.Equal(t, strings.Repeat("é", previewLength)+"...", n.ContentPreview)
	}

	updated := f.chat(t, chat.ID)
	assert.Equal(t, msg.CreatedAt, updated.LastMessageAt)
	rec, err := f.engine.memberships.GetMembership(ctx, "a", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.CreatedAt, rec.LastReadAt)
}

func TestSystemMessagesProduceNoNotifications(t *testing.T) {
	f := newFixture(t)
	chat := f.group(t, GroupMeta{}, "a", "b")

	_, err := f.engine.Send(context.Background(), chat.ID, models.SystemSender, Payload{Content: "maintenance"})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.notifications())
}

func TestNotificationFailureDoesNotFailSend(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	chat, err := f.engine.CreateChat(context.Background(), models.ChatPrivate, []string{"a", "b"}, nil)
	require.NoError(t, err)

	msg, err := f.engine.Send(context.Background(), chat.ID, "a", Payload{Content: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Len(t, f.userMessages(t, chat.ID), 1)
}

func TestMediaAndPostSharePreviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.engine.CreateChat(ctx, models.ChatPrivate, []string{"a", "b"}, nil)
	require.NoError(t, err)

	_, err = f.engine.Send(ctx, chat.ID, "a", Payload{Kind: models.KindImage, MediaRef: "media/1"})
	require.NoError(t, err)
	_, err = f.engine.Send(ctx, chat.ID, "a", Payload{Kind: models.KindPostShare, SharedPostID: "post-9"})
	require.NoError(t, err)

	notes := f.notifier.notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, "[image]", notes[0].ContentPreview)
	assert.Equal(t, "[shared post]", notes[1].ContentPreview)
}

func TestPostSharingDisabled(t *testing.T) {
	f := newFixture(t)
	disabled := false
	chat := f.group(t, GroupMeta{PostSharingEnabled: &disabled}, "a", "b")

	_, err := f.engine.Send(context.Background(), chat.ID, "b", Payload{Kind: models.KindPostShare, SharedPostID: "p"})
	requireReason(t, err, PostSharingDisabled)
}

func TestReplyMustTargetMessageInSameChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	one := f.group(t, GroupMeta{}, "a", "b")
	two := f.group(t, GroupMeta{}, "a", "b")

	original, err := f.engine.Send(ctx, one.ID, "a", Payload{Content: "question"})
	require.NoError(t, err)

	_, err = f.engine.Send(ctx, two.ID, "b", Payload{Content: "answer", ReplyTo: original.ID})
	requireReason(t, err, NotFound)

	reply, err := f.engine.Send(ctx, one.ID, "b", Payload{Content: "answer", ReplyTo: original.ID})
	require.NoError(t, err)
	assert.Equal(t, original.ID, reply.ReplyTo)
}

func TestMessagesAreOrderedByCreationTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.engine.CreateChat(ctx, models.ChatPrivate, []string{"a", "b"}, nil)
	require.NoError(t, err)

	var sent []string
	for _, text := range []string{"one", "two", "three"} {
		msg, err := f.engine.Send(ctx, chat.ID, "a", Payload{Content: text})
		require.NoError(t, err)
		sent = append(sent, msg.ID)
	}

	msgs, err := f.engine.ListMessages(ctx, chat.ID, "b")
	require.NoError(t, err)
	var got []string
	for _, m := range msgs {
		got = append(got, m.ID)
	}
	assert.Equal(t, sent, got)

	_, err = f.engine.ListMessages(ctx, chat.ID, "c")
	requireReason(t, err, NotAParticipant)
}

func TestConcurrentSendsReachSubscribersInCreationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, GroupMeta{Name: "busy"}, "alice", "bob")

	var mu sync.Mutex
	var delivered []models.Message
	unsubscribe, err := f.store.Subscribe(ctx, repositories.MessagesPath(chat.ID), func(c store.Change) {
		var m models.Message
		if c.Removed || json.Unmarshal(c.Value, &m) != nil {
			return
		}
		mu.Lock()
		delivered = append(delivered, m)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsubscribe()

	const senders, perSender = 4, 50
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		sender := []string{"alice", "bob"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_, err := f.engine.Send(ctx, chat.ID, sender, Payload{Content: "tick"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, senders*perSender)
	for i := 1; i < len(delivered); i++ {
		assert.True(t, delivered[i].CreatedAt.After(delivered[i-1].CreatedAt),
			"delivery %d at %s not after %s", i, delivered[i].CreatedAt, delivered[i-1].CreatedAt)
	}
	assert.Equal(t, delivered[len(delivered)-1].CreatedAt, f.chat(t, chat.ID).LastMessageAt)
}

func TestEditTwiceThenDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.engine.CreateChat(ctx, models.ChatPrivate, []string{"a", "b"}, nil)
	require.NoError(t, err)
	msg, err := f.engine.Send(ctx, chat.ID, "a", Payload{Content: "first"})
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	edited, err := f.engine.Edit(ctx, chat.ID, msg.ID, "second", "a")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	require.NotNil(t, edited.EditedAt)

	f.clock.Advance(time.Second)
	edited, err = f.engine.Edit(ctx, chat.ID, msg.ID, "third", "a")
	require.NoError(t, err)
	assert.Equal(t, "third", edited.Content.Text())
	assert.Equal(t, testStart.Add(2*time.Second), *edited.EditedAt)

	deleted, err := f.engine.Delete(ctx, chat.ID, msg.ID, "a")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())
	assert.Equal(t, models.Tombstone, deleted.Content.Text())

	stored, err := f.engine.messages.GetMessage(ctx, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Tombstone, stored.View().Content)
	assert.NotContains(t, stored.View().Content, "third")

	again, err := f.engine.Delete(ctx, chat.ID, msg.ID, "a")
	require.NoError(t, err)
	assert.True(t, again.IsDeleted())

	_, err = f.engine.Edit(ctx, chat.ID, msg.ID, "resurrect", "a")
	requireReason(t, err, NotFound)
}

func TestOnlySenderMayChangeMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, GroupMeta{}, "a", "b")
	msg, err := f.engine.Send(ctx, chat.ID, "b", Payload{Content: "mine"})
	require.NoError(t, err)

	_, err = f.engine.Edit(ctx, chat.ID, msg.ID, "not yours", "a")
	requireReason(t, err, NotOwner)
	_, err = f.engine.Delete(ctx, chat.ID, msg.ID, "a")
	requireReason(t, err, NotOwner)
	_, err = f.engine.Edit(ctx, chat.ID, "missing", "x", "b")
	requireReason(t, err, NotFound)

	msgs, err := f.engine.messages.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.True(t, msgs[0].IsSystem())
	_, err = f.engine.Edit(ctx, chat.ID, msgs[0].ID, "rewritten", "a")
	requireReason(t, err, NotOwner)
}

func TestEditIntroducingBannedWordIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, GroupMeta{BannedWords: []string{"spam"}}, "a", "b")
	msg, err := f.engine.Send(ctx, chat.ID, "b", Payload{Content: "hello"})
	require.NoError(t, err)

	_, err = f.engine.Edit(ctx, chat.ID, msg.ID, "buy spam now", "b")
	requireReason(t, err, ContentRejected)

	assert.True(t, f.chat(t, chat.ID).IsParticipant("b"), "edits are not enforced")
	stored, err := f.engine.messages.GetMessage(ctx, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Content.Text())
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, GroupMeta{}, "a", "b")

	f.clock.Advance(time.Hour)
	require.NoError(t, f.engine.MarkRead(ctx, chat.ID, "b"))
	rec, err := f.engine.memberships.GetMembership(ctx, "b", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, testStart.Add(time.Hour), rec.LastReadAt)

	requireReason(t, f.engine.MarkRead(ctx, chat.ID, "c"), NotAParticipant)
}
