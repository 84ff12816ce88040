package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an expected business failure so the transport layer can map
// it to a status code without inspecting messages.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindValidation   Kind = "VALIDATION"
	KindConflict     Kind = "CONFLICT"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindInternal     Kind = "INTERNAL"
)

// Error is the structured result every expected business-rule violation is
// reported as. Fields is populated for aggregated field-shape validation,
// one entry per offending field.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	// Deterministic ordering for logs and tests
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, f+": "+e.Fields[f])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// ValidationFields builds an aggregated validation error carrying every
// invalid field at once.
func ValidationFields(fields map[string]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    "INVALID_FIELDS",
		Message: "validation failed",
		Fields:  fields,
	}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

func Internalf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: fmt.Sprintf(format, args...)}
}

// From unwraps err into an *Error if one is in the chain.
func From(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	if appErr, ok := From(err); ok {
		return appErr.Kind == kind
	}
	return false
}
