package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess     Code = 0
	CodeInternal    Code = 1
	CodeUsage       Code = 2
	CodeAuth        Code = 10
	CodeRateLimited Code = 11
	CodeUnavailable Code = 12
	CodeUnsupported Code = 13
	CodeNotFound    Code = 14
	CodeBlocked     Code = 16
	CodeSession     Code = 20
	CodeRejected    Code = 21
	CodeNoProvider  Code = 22
	CodeNeedInfo    Code = 23
	CodeTimeout     Code = 24
	CodePersistence Code = 25
)

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if typed, ok := As(err); ok {
		return typed.Code
	}
	return CodeInternal
}

func ExitCode(err error) int {
	return int(CodeOf(err))
}

// Kind is the string form of a code exposed to callers in error envelopes.
func Kind(err error) string {
	switch CodeOf(err) {
	case CodeSuccess:
		return ""
	case CodeUsage:
		return "usage_error"
	case CodeAuth:
		return "auth_error"
	case CodeRateLimited:
		return "rate_limited"
	case CodeUnavailable:
		return "unavailable"
	case CodeUnsupported:
		return "unsupported"
	case CodeNotFound:
		return "not_found"
	case CodeBlocked:
		return "command_blocked"
	case CodeSession:
		return "session_error"
	case CodeRejected:
		return "rejected"
	case CodeNoProvider:
		return "no_provider"
	case CodeNeedInfo:
		return "need_more_info"
	case CodeTimeout:
		return "timeout"
	case CodePersistence:
		return "persistence_error"
	default:
		return "internal_error"
	}
}

// Retryable reports whether repeating the same request may succeed without
// the user changing their input.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeRateLimited, CodeUnavailable, CodeRejected, CodeTimeout, CodePersistence:
		return true
	default:
		return false
	}
}
