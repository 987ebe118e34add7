// Package errors provides coded application errors shared by the service,
// handler and client layers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an application error.
type Code string

const (
	ErrCodeInvalidInput        Code = "INVALID_INPUT"
	ErrCodeNotFound            Code = "NOT_FOUND"
	ErrCodeConflict            Code = "CONFLICT"
	ErrCodePreconditionNotMet  Code = "PRECONDITION_NOT_MET"
	ErrCodeCollaboratorFailure Code = "COLLABORATOR_FAILURE"
	ErrCodeInternal            Code = "INTERNAL"
)

// AppError is an error with a machine-readable code and a short
// human-readable message.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Message, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with the given code.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// InvalidInput reports a rejected request field.
func InvalidInput(field, message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message, Field: field}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s '%s' not found", resource, id)}
}

// PreconditionNotMet reports an action invoked before its required artifact exists.
func PreconditionNotMet(message string) *AppError {
	return &AppError{Code: ErrCodePreconditionNotMet, Message: message}
}

// CollaboratorFailure reports a failed call to an external collaborator. The
// collaborator's raw error text is kept as the wrapped error.
func CollaboratorFailure(collaborator string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeCollaboratorFailure,
		Message: fmt.Sprintf("%s call failed", collaborator),
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodePreconditionNotMet:
		return http.StatusUnprocessableEntity
	case ErrCodeCollaboratorFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
