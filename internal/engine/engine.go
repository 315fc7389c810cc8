// Package engine implements chat membership, the message pipeline, banned-word
// enforcement, suspension reconciliation and invite links on top of the
// content store.
package engine

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"messaging-service/internal/clock"
	"messaging-service/internal/models"
	"messaging-service/internal/moderation"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
)

var tracer = otel.Tracer("messaging-service/engine")

// Notifier receives one notification per recipient of a delivered message.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Auditor records moderation and administrative actions.
type Auditor interface {
	Emit(ctx context.Context, level, text, chatID, userID string)
}

// Engine is the messaging and moderation core.
type Engine struct {
	chats       repositories.ChatRepository
	messages    repositories.MessageRepository
	memberships repositories.MembershipRepository
	invites     repositories.InviteRepository
	suspensions repositories.SuspensionRepository
	privacy     repositories.PrivacyRepository

	evaluator moderation.Evaluator
	notifier  Notifier
	audit     Auditor
	clock     clock.Clock

	sends chatLocks
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithEvaluator replaces the banned-word matcher.
func WithEvaluator(ev moderation.Evaluator) Option {
	return func(e *Engine) { e.evaluator = ev }
}

// WithNotifier sets the fan-out target for message notifications.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithAuditor sets the audit sink for moderation actions.
func WithAuditor(a Auditor) Option {
	return func(e *Engine) { e.audit = a }
}

// New builds an Engine whose repositories all live in s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		chats:       repositories.NewChatRepo(s),
		messages:    repositories.NewMessageRepo(s),
		memberships: repositories.NewMembershipRepo(s),
		invites:     repositories.NewInviteRepo(s),
		suspensions: repositories.NewSuspensionRepo(s),
		privacy:     repositories.NewPrivacyRepo(s),
		evaluator:   moderation.SubstringEvaluator{},
		clock:       clock.Real{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) emitAudit(ctx context.Context, level, text, chatID, userID string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, level, text, chatID, userID)
}

// sendSystem posts a system message; failures are logged because the
// triggering change has already been persisted.
func (e *Engine) sendSystem(ctx context.Context, chatID, text string) {
	if _, err := e.Send(ctx, chatID, models.SystemSender, Payload{Content: text}); err != nil {
		log.Printf("system message failed chat_id=%s: %v", chatID, err)
	}
}

func (e *Engine) loadChat(ctx context.Context, chatID string) (models.Chat, error) {
	chat, err := e.chats.GetChat(ctx, chatID)
	return chat, chatErr(err)
}

func chatErr(err error) error {
	if errors.Is(err, repositories.ErrChatNotFound) {
		return reject(NotFound, "chat not found")
	}
	return err
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		if code, ok := Reason(err); ok {
			span.SetAttributes(attribute.String("reason", string(code)))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func newID() string {
	return uuid.NewString()
}

// newMessageID returns a time-ordered id so ids break createdAt ties in insertion order.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func validUserID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != models.SystemSender && !strings.Contains(id, "/")
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func lowestID(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return sorted[0]
}
