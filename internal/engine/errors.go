package engine

import (
	"errors"
	"fmt"
)

// ReasonCode is the stable identifier of an expected failure.
type ReasonCode string

const (
	NotAuthorized       ReasonCode = "not_authorized"
	NotOwner            ReasonCode = "not_owner"
	NotFound            ReasonCode = "not_found"
	NotAParticipant     ReasonCode = "not_a_participant"
	AlreadyMember       ReasonCode = "already_member"
	Expired             ReasonCode = "expired"
	Exhausted           ReasonCode = "exhausted"
	ContentRejected     ReasonCode = "content_rejected"
	Inactive            ReasonCode = "inactive"
	InvalidInput        ReasonCode = "invalid_input"
	PostSharingDisabled ReasonCode = "post_sharing_disabled"
)

// Error is a business-rule rejection. Anything else returned by the engine is
// an infrastructure failure.
type Error struct {
	Code    ReasonCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func reject(code ReasonCode, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Reason extracts the reason code from err, if it is a rejection.
func Reason(err error) (ReasonCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsReason reports whether err is a rejection with the given code.
func IsReason(err error, code ReasonCode) bool {
	got, ok := Reason(err)
	return ok && got == code
}

// Result is the uniform outcome returned to callers.
type Result struct {
	Success bool       `json:"success"`
	Error   ReasonCode `json:"error,omitempty"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
}

// NewResult folds an operation's outcome into a Result. Rejections become an
// unsuccessful Result with a nil error; infrastructure errors are returned as-is.
func NewResult(data any, err error) (Result, error) {
	if err == nil {
		return Result{Success: true, Data: data}, nil
	}
	var e *Error
	if errors.As(err, &e) {
		return Result{Success: false, Error: e.Code, Message: e.Message}, nil
	}
	return Result{}, err
}
