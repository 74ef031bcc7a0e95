package graph

import (
	"errors"
	"fmt"
)

// Code categorizes a store error. The set is closed.
type Code string

const (
	CodeNotFound       Code = "NOT_FOUND"
	CodeBadPath        Code = "BAD_PATH"
	CodeBadValue       Code = "BAD_VALUE"
	CodeAlreadyUsed    Code = "ALREADY_USED"
	CodeInvalidName    Code = "INVALID_NAME"
	CodeCantRemove     Code = "CANT_REMOVE"
	CodeCantRevive     Code = "CANT_REVIVE"
	CodeNotADirectory  Code = "NOT_A_DIRECTORY"
	CodeOnlyOneAllowed Code = "ONLY_ONE_ALLOWED"
	CodeOutOfRange     Code = "OUT_OF_RANGE"
)

// Error is a coded store error.
//
// Two Errors are equal under errors.Is when their codes match, so callers can
// write errors.Is(err, graph.ErrBadPath) regardless of Op or Detail.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed ("add path", "trash action", ...).
	Op string

	// Detail is a human-readable description.
	Detail string
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound       = &Error{Code: CodeNotFound}
	ErrBadPath        = &Error{Code: CodeBadPath}
	ErrBadValue       = &Error{Code: CodeBadValue}
	ErrAlreadyUsed    = &Error{Code: CodeAlreadyUsed}
	ErrInvalidName    = &Error{Code: CodeInvalidName}
	ErrCantRemove     = &Error{Code: CodeCantRemove}
	ErrCantRevive     = &Error{Code: CodeCantRevive}
	ErrNotADirectory  = &Error{Code: CodeNotADirectory}
	ErrOnlyOneAllowed = &Error{Code: CodeOnlyOneAllowed}
	ErrOutOfRange     = &Error{Code: CodeOutOfRange}
)

// NewError creates a coded error.
func NewError(code Code, op, detail string) *Error {
	return &Error{Code: code, Op: op, Detail: detail}
}

// Errorf creates a coded error with a formatted detail.
func Errorf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Detail)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return string(e.Code)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code carried by err, or "" if err is not a coded error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
