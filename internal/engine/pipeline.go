package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
)

const (
	// MaxContentLength is the longest accepted message text, in runes.
	MaxContentLength = 4000
	previewLength    = 50
)

// Payload is the client-supplied part of a message.
type Payload struct {
	Content      string
	Kind         models.MessageKind
	ReplyTo      string
	MediaRef     string
	SharedPostID string
}

func (p Payload) validate() (Payload, error) {
	if p.Kind == "" {
		p.Kind = models.KindText
	}
	if !p.Kind.Valid() {
		return p, reject(InvalidInput, "unknown message kind %q", p.Kind)
	}
	if utf8.RuneCountInString(p.Content) > MaxContentLength {
		return p, reject(InvalidInput, "content exceeds %d characters", MaxContentLength)
	}
	switch {
	case p.Kind == models.KindText && strings.TrimSpace(p.Content) == "":
		return p, reject(InvalidInput, "content is required")
	case p.Kind.IsMedia() && strings.TrimSpace(p.MediaRef) == "":
		return p, reject(InvalidInput, "media reference is required for %s messages", p.Kind)
	case p.Kind == models.KindPostShare && strings.TrimSpace(p.SharedPostID) == "":
		return p, reject(InvalidInput, "shared post id is required")
	}
	return p, nil
}

// Send validates, moderates, persists and fans out one message. The system
// sender skips membership and moderation checks and produces no notifications.
func (e *Engine) Send(ctx context.Context, chatID, senderID string, payload Payload) (msg models.Message, err error) {
	ctx, span := startSpan(ctx, "engine.Send", attribute.String("chat.id", chatID))
	defer func() {
		if code, ok := Reason(err); ok {
			observability.IncMessageRejected(string(code))
		}
		endSpan(span, err)
	}()

	isSystem := senderID == models.SystemSender
	if !isSystem && !validUserID(senderID) {
		return models.Message{}, reject(InvalidInput, "invalid sender id")
	}
	if payload, err = payload.validate(); err != nil {
		return models.Message{}, err
	}

	chat, err := e.loadChat(ctx, chatID)
	if err != nil {
		return models.Message{}, err
	}
	if !isSystem && !chat.IsParticipant(senderID) {
		return models.Message{}, reject(NotAParticipant, "%s is not a participant", senderID)
	}

	if chat.Kind == models.ChatGroup && !isSystem {
		if payload.Kind == models.KindPostShare && !chat.PostSharingEnabled {
			return models.Message{}, reject(PostSharingDisabled, "post sharing is disabled in this group")
		}
		if word, matched := e.evaluator.Evaluate(payload.Content, chat.BannedWords); matched {
			if err := e.enforce(ctx, chat, senderID, word); err != nil {
				return models.Message{}, err
			}
			return models.Message{}, reject(ContentRejected, "message contains a banned word")
		}
	}

	if payload.ReplyTo != "" {
		if _, err := e.messages.GetMessage(ctx, chatID, payload.ReplyTo); err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				return models.Message{}, reject(NotFound, "reply target not found")
			}
			return models.Message{}, err
		}
	}

	// Stamp and persist under the chat lock: createdAt is strictly increasing
	// per chat and subscribers observe messages in that order.
	unlock := e.sends.lock(chatID)
	latest, err := e.loadChat(ctx, chatID)
	if err != nil {
		unlock()
		return models.Message{}, err
	}
	now := e.clock.Now()
	if !now.After(latest.LastMessageAt) {
		now = latest.LastMessageAt.Add(time.Nanosecond)
	}
	msg = models.Message{
		ID:           newMessageID(),
		ChatID:       chatID,
		SenderID:     senderID,
		Content:      models.Live(payload.Content),
		Kind:         payload.Kind,
		CreatedAt:    now,
		ReplyTo:      payload.ReplyTo,
		MediaRef:     payload.MediaRef,
		SharedPostID: payload.SharedPostID,
	}
	if err := e.messages.CreateMessage(ctx, msg); err != nil {
		unlock()
		return models.Message{}, err
	}
	sender := "user"
	if isSystem {
		sender = "system"
	}
	observability.IncMessageSent(sender, string(msg.Kind))

	// The message is durable from here on; bookkeeping failures are logged
	// rather than reported so callers do not resend a persisted message.
	if _, err := e.chats.UpdateChat(ctx, chatID, func(c *models.Chat) error {
		if !now.After(c.LastMessageAt) {
			return store.ErrAbort
		}
		c.LastMessageAt = now
		return nil
	}); err != nil {
		log.Printf("update last_message_at failed chat_id=%s: %v", chatID, err)
	}
	unlock()
	if isSystem {
		return msg, nil
	}
	if err := e.memberships.TouchLastRead(ctx, senderID, chatID, now); err != nil {
		log.Printf("update last_read_at failed chat_id=%s user_id=%s: %v", chatID, senderID, err)
	}

	e.fanOut(ctx, chat, msg)
	return msg, nil
}

// fanOut notifies every participant other than the sender. Failures are
// logged and counted, never returned.
func (e *Engine) fanOut(ctx context.Context, chat models.Chat, msg models.Message) {
	if e.notifier == nil {
		return
	}
	preview := contentPreview(msg)
	for _, recipient := range chat.Participants {
		if recipient == msg.SenderID {
			continue
		}
		n := models.Notification{
			RecipientID:    recipient,
			Kind:           "message",
			FromUserID:     msg.SenderID,
			ChatID:         chat.ID,
			MessageID:      msg.ID,
			ContentPreview: preview,
		}
		if err := e.notifier.Notify(ctx, n); err != nil {
			observability.IncNotificationFailure()
			log.Printf("notification failed chat_id=%s message_id=%s recipient=%s: %v", chat.ID, msg.ID, recipient, err)
		}
	}
}

func contentPreview(msg models.Message) string {
	text := msg.Content.Text()
	if strings.TrimSpace(text) == "" {
		switch msg.Kind {
		case models.KindPostShare:
			return "[shared post]"
		case models.KindImage, models.KindVideo, models.KindFile:
			return "[" + string(msg.Kind) + "]"
		}
	}
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLength]) + "..."
}

// Edit replaces the text of a message. Only the sender may edit, and deleted
// or system messages cannot be edited.
func (e *Engine) Edit(ctx context.Context, chatID, messageID, newContent, requesterID string) (msg models.Message, err error) {
	ctx, span := startSpan(ctx, "engine.Edit", attribute.String("chat.id", chatID), attribute.String("message.id", messageID))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(newContent) == "" {
		return models.Message{}, reject(InvalidInput, "content is required")
	}
	if utf8.RuneCountInString(newContent) > MaxContentLength {
		return models.Message{}, reject(InvalidInput, "content exceeds %d characters", MaxContentLength)
	}

	current, err := e.messages.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return models.Message{}, messageErr(err)
	}
	if err := checkOwner(current, requesterID); err != nil {
		return models.Message{}, err
	}
	if current.IsDeleted() {
		return models.Message{}, reject(NotFound, "message was deleted")
	}

	chat, err := e.loadChat(ctx, chatID)
	if err != nil {
		return models.Message{}, err
	}
	if chat.Kind == models.ChatGroup {
		if _, matched := e.evaluator.Evaluate(newContent, chat.BannedWords); matched {
			return models.Message{}, reject(ContentRejected, "edit contains a banned word")
		}
	}

	now := e.clock.Now()
	msg, err = e.messages.UpdateMessage(ctx, chatID, messageID, func(m *models.Message) error {
		if err := checkOwner(*m, requesterID); err != nil {
			return err
		}
		if m.IsDeleted() {
			return reject(NotFound, "message was deleted")
		}
		m.Content = models.Live(newContent)
		m.IsEdited = true
		m.EditedAt = &now
		return nil
	})
	if err != nil {
		return models.Message{}, messageErr(err)
	}
	return msg, nil
}

// Delete soft-deletes a message. Deleting an already deleted message succeeds
// without changing it.
func (e *Engine) Delete(ctx context.Context, chatID, messageID, requesterID string) (msg models.Message, err error) {
	ctx, span := startSpan(ctx, "engine.Delete", attribute.String("chat.id", chatID), attribute.String("message.id", messageID))
	defer func() { endSpan(span, err) }()

	now := e.clock.Now()
	msg, err = e.messages.UpdateMessage(ctx, chatID, messageID, func(m *models.Message) error {
		if err := checkOwner(*m, requesterID); err != nil {
			return err
		}
		if m.IsDeleted() {
			return store.ErrAbort
		}
		m.Content = models.Deleted()
		m.MediaRef = ""
		m.SharedPostID = ""
		m.EditedAt = &now
		return nil
	})
	if err != nil {
		return models.Message{}, messageErr(err)
	}
	return msg, nil
}

// ListMessages returns a chat's log for a participant.
func (e *Engine) ListMessages(ctx context.Context, chatID, requesterID string) (msgs []models.Message, err error) {
	ctx, span := startSpan(ctx, "engine.ListMessages", attribute.String("chat.id", chatID))
	defer func() { endSpan(span, err) }()

	chat, err := e.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(requesterID) {
		return nil, reject(NotAParticipant, "%s is not a participant", requesterID)
	}
	return e.messages.ListMessages(ctx, chatID)
}

// MarkRead records that userID has read the chat up to now.
func (e *Engine) MarkRead(ctx context.Context, chatID, userID string) (err error) {
	ctx, span := startSpan(ctx, "engine.MarkRead", attribute.String("chat.id", chatID))
	defer func() { endSpan(span, err) }()

	chat, err := e.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsParticipant(userID) {
		return reject(NotAParticipant, "%s is not a participant", userID)
	}
	return e.memberships.TouchLastRead(ctx, userID, chatID, e.clock.Now())
}

func checkOwner(m models.Message, requesterID string) error {
	if m.IsSystem() || m.SenderID != requesterID {
		return reject(NotOwner, "only the sender may change this message")
	}
	return nil
}

func messageErr(err error) error {
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return reject(NotFound, "message not found")
	}
	return err
}
