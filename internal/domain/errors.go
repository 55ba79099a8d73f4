package domain

import (
	"fmt"
	"strconv"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown    Code = "UNKNOWN"
	CodeNotFound   Code = "NOT_FOUND"
	CodeValidation Code = "VALIDATION"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	// ErrNotFound matches any NOT_FOUND error via errors.Is.
	ErrNotFound = &Error{Code: CodeNotFound, Message: "not found"}
	// ErrValidation matches any VALIDATION error via errors.Is.
	ErrValidation = &Error{Code: CodeValidation, Message: "validation failed"}
)

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Validation(format string, args ...any) *Error {
	return NewError(CodeValidation, fmt.Sprintf(format, args...))
}

func TaskNotFound(id int) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("task %d not found", id),
		Metadata: map[string]string{"task_id": strconv.Itoa(id)},
	}
}

func SubtaskNotFound(taskID, subtaskID int) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("subtask %d not found in task %d", subtaskID, taskID),
		Metadata: map[string]string{
			"task_id":    strconv.Itoa(taskID),
			"subtask_id": strconv.Itoa(subtaskID),
		},
	}
}

func CategoryNotFound(id int) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("category %d not found", id),
		Metadata: map[string]string{"category_id": strconv.Itoa(id)},
	}
}
