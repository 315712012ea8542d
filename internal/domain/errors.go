package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies core errors so callers can react without string matching.
type Kind string

const (
	KindUnknown            Kind = "UNKNOWN"
	KindNotFound           Kind = "NOT_FOUND"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindInvalidQuestion    Kind = "INVALID_QUESTION"
	KindLastQuestion       Kind = "LAST_QUESTION"
	KindValidationFailed   Kind = "VALIDATION_FAILED"
	KindUpstreamFailure    Kind = "UPSTREAM_FAILURE"
)

var (
	// ErrNotFound is returned when a game, question or answer id is unknown.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}
	// ErrUnauthorized is returned when the caller's role does not allow the action.
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	// ErrPreconditionFailed is returned when a guard or status compare-and-swap fails.
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed, Message: "precondition failed"}
	// ErrInvalidQuestion is returned for malformed question definitions.
	ErrInvalidQuestion = &Error{Kind: KindInvalidQuestion, Message: "invalid question"}
	// ErrLastQuestion is returned when removing the only remaining question.
	ErrLastQuestion = &Error{Kind: KindLastQuestion, Message: "cannot remove the last question"}
	// ErrValidationFailed is returned when answers fail their type rules.
	ErrValidationFailed = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	// ErrUpstreamFailure is returned when a payment, notifier or media collaborator fails.
	ErrUpstreamFailure = &Error{Kind: KindUpstreamFailure, Message: "upstream failure"}
)

// Problem is one reason attached to a validation failure. QuestionID is set
// for answer rules, Field for game fields.
type Problem struct {
	QuestionID string `json:"questionId,omitempty"`
	Field      string `json:"field,omitempty"`
	Reason     string `json:"reason"`
}

// Error is the structured error returned by every core operation.
type Error struct {
	Kind     Kind
	Message  string
	Metadata map[string]string
	Problems []Problem
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf returns the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ProblemsOf returns the validation problems carried by err, if any.
func ProblemsOf(err error) []Problem {
	var e *Error
	if errors.As(err, &e) {
		return e.Problems
	}
	return nil
}

func NotFound(what, id string) *Error {
	return &Error{
		Kind:     KindNotFound,
		Message:  fmt.Sprintf("%s %q not found", what, id),
		Metadata: map[string]string{"Resource": what, "ID": id},
	}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func PreconditionFailed(message string, metadata map[string]string) *Error {
	return &Error{Kind: KindPreconditionFailed, Message: message, Metadata: metadata}
}

func InvalidQuestion(message string) *Error {
	return &Error{Kind: KindInvalidQuestion, Message: message}
}

// ValidationFailed builds a validation error listing every failing question.
func ValidationFailed(problems []Problem) *Error {
	reasons := make([]string, 0, len(problems))
	for _, p := range problems {
		subject := p.QuestionID
		if subject == "" {
			subject = p.Field
		}
		reasons = append(reasons, subject+": "+p.Reason)
	}
	return &Error{
		Kind:     KindValidationFailed,
		Message:  "validation failed (" + strings.Join(reasons, "; ") + ")",
		Problems: problems,
	}
}

// Upstream wraps a collaborator failure, keeping its message verbatim.
func Upstream(collaborator string, cause error) *Error {
	return &Error{
		Kind:     KindUpstreamFailure,
		Message:  collaborator + " failed",
		Metadata: map[string]string{"Collaborator": collaborator},
		Cause:    cause,
	}
}
