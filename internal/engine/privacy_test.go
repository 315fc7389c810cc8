package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberIDs(t *testing.T, f *fixture, chatID, viewer string) []string {
	t.Helper()
	members, err := f.engine.ListMembers(context.Background(), chatID, viewer)
	require.NoError(t, err)
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func TestHiddenMembersAreVisibleToThemselvesAndAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, GroupMeta{}, "admin", "shy", "other")

	_, err := f.engine.SetPrivacy(ctx, "shy", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "other"}, memberIDs(t, f, chat.ID, "other"))
	assert.Equal(t, []string{"admin", "shy", "other"}, memberIDs(t, f, chat.ID, "shy"))
	assert.Equal(t, []string{"admin", "shy", "other"}, memberIDs(t, f, chat.ID, "admin"))

	_, err = f.engine.ListMembers(ctx, chat.ID, "stranger")
	requireReason(t, err, NotAParticipant)
}

func TestPrivacyDoesNotAffectAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, GroupMeta{}, "admin", "shy")
	_, err := f.engine.SetPrivacy(ctx, "shy", true)
	require.NoError(t, err)

	_, err = f.engine.Send(ctx, chat.ID, "shy", Payload{Content: "still here"})
	require.NoError(t, err)
	_, err = f.engine.RemoveParticipant(ctx, chat.ID, "shy", "admin")
	require.NoError(t, err)
}

func TestSetPrivacyRejectsInvalidUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.SetPrivacy(context.Background(), "", true)
	requireReason(t, err, InvalidInput)
}
