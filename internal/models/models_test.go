package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeletedContentCarriesNoText(t *testing.T) {
	msg := Message{ID: "m1", Content: Live("secret"), Kind: KindText, MediaRef: "blob/1"}
	msg.Content = Deleted()

	body, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "secret")

	var decoded Message
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.True(t, decoded.IsDeleted())
	assert.Equal(t, Tombstone, decoded.Content.Text())

	view := decoded.View()
	assert.Equal(t, Tombstone, view.Content)
	assert.Empty(t, view.MediaRef)
}

func TestContentRejectsUnknownState(t *testing.T) {
	var c Content
	require.Error(t, json.Unmarshal([]byte(`{"state":"hidden"}`), &c))
}

func TestInviteLinkLimits(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	max := 2
	link := InviteLink{ExpiresAt: &expires, MaxUses: &max, CurrentUses: 1}

	assert.False(t, link.Expired(now))
	assert.True(t, link.Expired(expires))
	assert.False(t, link.Exhausted())
	link.CurrentUses = 2
	assert.True(t, link.Exhausted())
}

func TestSuspensionDue(t *testing.T) {
	kicked := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := TemporarySuspension{KickedAt: kicked, KickedUntil: kicked.Add(time.Hour)}
	assert.False(t, s.Due(kicked.Add(59*time.Minute)))
	assert.True(t, s.Due(kicked.Add(time.Hour)))
}
