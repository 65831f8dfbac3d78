package domain

import "errors"

// ErrCode classifies rejections so transports can relay them without
// inspecting messages.
type ErrCode string

const (
	CodeValidation ErrCode = "validation"
	CodeState      ErrCode = "state"
	CodeCapacity   ErrCode = "capacity"
	CodeNotFound   ErrCode = "not_found"
	CodeInternal   ErrCode = "internal"
)

// Error is a coded rejection. Transport drops are never represented as
// Errors; they become disconnect events.
type Error struct {
	Code    ErrCode
	Message string
}

func (e *Error) Error() string { return e.Message }

// Validation builds a validation rejection (malformed input, bad index).
func Validation(msg string) *Error { return &Error{Code: CodeValidation, Message: msg} }

// State builds a wrong-phase rejection; the session state is unchanged.
func State(msg string) *Error { return &Error{Code: CodeState, Message: msg} }

// Capacity builds a session-full or joined-too-late rejection.
func Capacity(msg string) *Error { return &Error{Code: CodeCapacity, Message: msg} }

// NotFound builds an unknown join code or resource rejection.
func NotFound(msg string) *Error { return &Error{Code: CodeNotFound, Message: msg} }

// CodeOf extracts the ErrCode from err, or CodeInternal for uncoded errors.
func CodeOf(err error) ErrCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

var (
	// ErrSessionNotFound is returned when a join code matches no live session.
	ErrSessionNotFound = NotFound("session not found")
	// ErrPlayerNotFound is returned when a player id is unknown to the session.
	ErrPlayerNotFound = NotFound("player not found in session")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = NotFound("question set not found")
	// ErrSessionClosed is returned when a command reaches a finished session.
	ErrSessionClosed = NotFound("session already ended")
	// ErrNotHost rejects host-only commands from regular players.
	ErrNotHost = State("only the host may do that")
)
