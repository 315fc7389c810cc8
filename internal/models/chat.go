package models

import "time"

// ChatKind distinguishes two-party chats from groups.
type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
)

// PolicyKind names the enforcement applied when a banned word is used.
type PolicyKind string

const (
	PolicyPermanentKick PolicyKind = "permanent_kick"
	PolicyTemporaryKick PolicyKind = "temporary_kick"
)

// ViolationPolicy configures banned-word enforcement for a group.
type ViolationPolicy struct {
	Kind          PolicyKind `json:"kind"`
	DurationHours int        `json:"duration_hours,omitempty"`
}

// Duration is the suspension window for temporary kicks.
func (p ViolationPolicy) Duration() time.Duration {
	return time.Duration(p.DurationHours) * time.Hour
}

// Chat is a conversation container. Participants is authoritative for membership.
type Chat struct {
	ID                 string          `json:"id"`
	Kind               ChatKind        `json:"kind"`
	Name               string          `json:"name,omitempty"`
	Participants       []string        `json:"participants"`
	AdminIDs           []string        `json:"admin_ids,omitempty"`
	BannedWords        []string        `json:"banned_words,omitempty"`
	ViolationPolicy    ViolationPolicy `json:"violation_policy"`
	PostSharingEnabled bool            `json:"post_sharing_enabled"`
	InviteCode         string          `json:"invite_code,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	LastMessageAt      time.Time       `json:"last_message_at"`
}

// IsParticipant reports whether userID is currently in the chat.
func (c Chat) IsParticipant(userID string) bool {
	return contains(c.Participants, userID)
}

// IsAdmin reports whether userID administers the group.
func (c Chat) IsAdmin(userID string) bool {
	return contains(c.AdminIDs, userID)
}

// MembershipRecord is per-user bookkeeping for a chat.
type MembershipRecord struct {
	ChatID     string    `json:"chat_id"`
	UserID     string    `json:"user_id"`
	JoinedAt   time.Time `json:"joined_at"`
	LastReadAt time.Time `json:"last_read_at"`
}

// PrivacySetting holds the visibility toggles used by member listings.
type PrivacySetting struct {
	UserID             string    `json:"user_id"`
	HideFromMemberList bool      `json:"hide_from_member_list"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Member is a participant as shown in a member listing.
type Member struct {
	UserID   string     `json:"user_id"`
	IsAdmin  bool       `json:"is_admin"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
