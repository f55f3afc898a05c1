// Package apperr carries the engine's coded rejections up to the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidStateTransition       = "INVALID_STATE_TRANSITION"
	CodeChecklistIncomplete          = "CHECKLIST_INCOMPLETE"
	CodeQualificationGateFailed      = "QUALIFICATION_GATE_FAILED"
	CodeSequentialViolation          = "SEQUENTIAL_VIOLATION"
	CodeCompletionRequirementsNotMet = "COMPLETION_REQUIREMENTS_NOT_MET"
	CodeValidation                   = "VALIDATION_ERROR"
	CodeNotFound                     = "NOT_FOUND"
	CodeForbidden                    = "FORBIDDEN"
	CodeConflict                     = "CONFLICT"
	CodeUnauthorized                 = "UNAUTHORIZED"
	CodeRateLimited                  = "RATE_LIMITED"
	CodeInternal                     = "INTERNAL"
)

// Error is a rejected operation with an HTTP status and a stable code.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail returns a copy of e with key set in Details.
func (e *Error) WithDetail(key string, value any) *Error {
	out := *e
	out.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func Wrap(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func InvalidTransition(from, to string) *Error {
	return New(http.StatusBadRequest, CodeInvalidStateTransition,
		fmt.Sprintf("cannot transition call from %s to %s", from, to)).
		WithDetail("from", from).
		WithDetail("to", to)
}

func Validation(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeValidation, fmt.Sprintf(format, args...))
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, what+" not found")
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

func ChecklistIncomplete(missing []string) *Error {
	return New(http.StatusBadRequest, CodeChecklistIncomplete, "required checklist items are not checked").
		WithDetail("missingItems", missing)
}

func QualificationGateFailed(failed []string) *Error {
	return New(http.StatusBadRequest, CodeQualificationGateFailed, "qualification gate failed; an authorized override reason is required").
		WithDetail("failedGates", failed)
}

// SequentialViolation signals the caller may retry with an override reason.
func SequentialViolation(reason string) *Error {
	return New(http.StatusBadRequest, CodeSequentialViolation, reason).
		WithDetail("requiresOverride", true)
}

func CompletionRequirementsNotMet(missing []string) *Error {
	return New(http.StatusBadRequest, CodeCompletionRequirementsNotMet, "required milestone items are not checked").
		WithDetail("missingItems", missing)
}

// MilestonesUnresolved rejects a call completion while milestones are neither completed nor skipped.
func MilestonesUnresolved(milestoneIDs []string) *Error {
	return New(http.StatusBadRequest, CodeCompletionRequirementsNotMet, "milestones are unresolved; complete or skip them before completing the call").
		WithDetail("unresolvedMilestones", milestoneIDs)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
