package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// UnexpectedMessage is the only text clients see for persistence failures.
const UnexpectedMessage = "An unexpected error occurred, please try again later"

// FieldError is one invalid request field.
type FieldError struct {
	Param   string `json:"param"`
	Message string `json:"msg"`
}

type AppError struct {
	Err     error        // sentinel kind
	Message string       // Human-readable error message
	Field   string       // Optional: field causing the error
	Fields  []FieldError // Optional: every invalid field, for multi-field validation
	Cause   error        // Optional: underlying error, logged but never shown
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  []FieldError{{Param: field, Message: message}},
	}
}

// Invalid collects several field errors into one validation failure.
func Invalid(fields []FieldError) *AppError {
	msg := "invalid request"
	if len(fields) > 0 {
		msg = fields[0].Message
	}
	return &AppError{
		Err:     ErrValidation,
		Message: msg,
		Fields:  fields,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned for missing, malformed or expired session tokens.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// BadRequest is a 400 rejection with a client-facing message.
func BadRequest(message string) *AppError {
	return &AppError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// Unexpected hides cause behind a generic 400 message. The cause stays in
// the chain for server-side logging.
func Unexpected(cause error) *AppError {
	return &AppError{
		Err:     ErrBadRequest,
		Message: UnexpectedMessage,
		Cause:   cause,
	}
}
