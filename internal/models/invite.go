package models

import "time"

// Reasons an invite link stops accepting redemptions.
const (
	DeactivatedExhausted = "exhausted"
	DeactivatedExpired   = "expired"
	DeactivatedRevoked   = "revoked"
)

// InviteLink admits users to a group by code.
type InviteLink struct {
	ID                string     `json:"id"`
	ChatID            string     `json:"chat_id"`
	Code              string     `json:"code"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	MaxUses           *int       `json:"max_uses,omitempty"`
	CurrentUses       int        `json:"current_uses"`
	Active            bool       `json:"active"`
	DeactivatedReason string     `json:"deactivated_reason,omitempty"`
}

// Expired reports whether the link's expiry has passed at now.
func (l InviteLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Exhausted reports whether the usage cap has been reached.
func (l InviteLink) Exhausted() bool {
	return l.MaxUses != nil && l.CurrentUses >= *l.MaxUses
}

// TemporarySuspension tracks a member removed until KickedUntil.
type TemporarySuspension struct {
	UserID      string    `json:"user_id"`
	ChatID      string    `json:"chat_id"`
	KickedAt    time.Time `json:"kicked_at"`
	KickedUntil time.Time `json:"kicked_until"`
	KickedBy    string    `json:"kicked_by"`
	Reason      string    `json:"reason"`
}

// Due reports whether the suspension window has elapsed at now.
func (s TemporarySuspension) Due(now time.Time) bool {
	return !now.Before(s.KickedUntil)
}
