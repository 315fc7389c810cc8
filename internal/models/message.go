package models

import (
	"encoding/json"
	"errors"
	"time"
)

// SystemSender is the sender id of messages emitted by the service itself.
const SystemSender = "system"

// Tombstone is what a deleted message renders as.
const Tombstone = "This message was deleted"

// MessageKind is the payload type of a message.
type MessageKind string

const (
	KindText      MessageKind = "text"
	KindImage     MessageKind = "image"
	KindVideo     MessageKind = "video"
	KindFile      MessageKind = "file"
	KindPostShare MessageKind = "post_share"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindFile, KindPostShare:
		return true
	}
	return false
}

// IsMedia reports whether the kind carries a media reference.
func (k MessageKind) IsMedia() bool {
	return k == KindImage || k == KindVideo || k == KindFile
}

// Content is either live text or deleted. A deleted content value holds no text.
type Content struct {
	text    string
	deleted bool
}

// Live wraps message text.
func Live(text string) Content {
	return Content{text: text}
}

// Deleted is the content of a removed message.
func Deleted() Content {
	return Content{deleted: true}
}

// IsDeleted reports whether the content was removed.
func (c Content) IsDeleted() bool {
	return c.deleted
}

// Text returns the live text, or Tombstone for deleted content.
func (c Content) Text() string {
	if c.deleted {
		return Tombstone
	}
	return c.text
}

type contentJSON struct {
	State string `json:"state"`
	Text  string `json:"text,omitempty"`
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.deleted {
		return json.Marshal(contentJSON{State: "deleted"})
	}
	return json.Marshal(contentJSON{State: "live", Text: c.text})
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var raw contentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.State {
	case "deleted":
		*c = Deleted()
	case "live":
		*c = Live(raw.Text)
	default:
		return errors.New("unknown content state " + raw.State)
	}
	return nil
}

// Message is one entry in a chat's log.
type Message struct {
	ID           string      `json:"id"`
	ChatID       string      `json:"chat_id"`
	SenderID     string      `json:"sender_id"`
	Content      Content     `json:"content"`
	Kind         MessageKind `json:"kind"`
	CreatedAt    time.Time   `json:"created_at"`
	EditedAt     *time.Time  `json:"edited_at,omitempty"`
	IsEdited     bool        `json:"is_edited"`
	ReplyTo      string      `json:"reply_to,omitempty"`
	MediaRef     string      `json:"media_ref,omitempty"`
	SharedPostID string      `json:"shared_post_id,omitempty"`
}

// IsSystem reports whether the service emitted the message.
func (m Message) IsSystem() bool {
	return m.SenderID == SystemSender
}

// IsDeleted reports whether the message was soft-deleted.
func (m Message) IsDeleted() bool {
	return m.Content.IsDeleted()
}

// MessageView is the client-facing rendering of a message.
type MessageView struct {
	ID           string      `json:"id"`
	ChatID       string      `json:"chat_id"`
	SenderID     string      `json:"sender_id"`
	Content      string      `json:"content"`
	Kind         MessageKind `json:"kind"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
	IsEdited     bool        `json:"is_edited"`
	IsDeleted    bool        `json:"is_deleted"`
	ReplyTo      string      `json:"reply_to,omitempty"`
	MediaRef     string      `json:"media_ref,omitempty"`
	SharedPostID string      `json:"shared_post_id,omitempty"`
}

// View renders the message for clients. Media and post references are
// dropped once the message is deleted.
func (m Message) View() MessageView {
	v := MessageView{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content.Text(),
		Kind:      m.Kind,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.EditedAt,
		IsEdited:  m.IsEdited,
		IsDeleted: m.IsDeleted(),
		ReplyTo:   m.ReplyTo,
	}
	if !v.IsDeleted {
		v.MediaRef = m.MediaRef
		v.SharedPostID = m.SharedPostID
	}
	return v
}

// ChatEvent is pushed to websocket subscribers of a chat.
type ChatEvent struct {
	Type    string       `json:"type"`
	Message *MessageView `json:"message,omitempty"`
}

// Notification is handed to the fan-out consumer once per recipient.
type Notification struct {
	RecipientID    string `json:"recipient_id"`
	Kind           string `json:"kind"`
	FromUserID     string `json:"from_user_id"`
	ChatID         string `json:"chat_id"`
	MessageID      string `json:"message_id"`
	ContentPreview string `json:"content_preview"`
}
