package apperror

import (
	"errors"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	cause := errors.New("sqlite: disk I/O error")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "email is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Invalid wraps ErrValidation",
			err:       Invalid([]FieldError{{Param: "code", Message: "code is required"}}),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("session expired"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Unexpected wraps ErrBadRequest",
			err:       Unexpected(cause),
			target:    ErrBadRequest,
			wantMatch: true,
		},
		{
			name:      "Unexpected keeps its cause in the chain",
			err:       Unexpected(cause),
			target:    cause,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "BadRequest does NOT match ErrUnauthorized",
			err:       BadRequest("user not found"),
			target:    ErrUnauthorized,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("contact", "abc123"),
			wantMessage: "contact not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "Invalid uses the first field message",
			err:         Invalid([]FieldError{{Param: "a", Message: "a is bad"}, {Param: "b", Message: "b is bad"}}),
			wantMessage: "a is bad",
		},
		{
			name:        "BadRequest uses custom message",
			err:         BadRequest("user not found"),
			wantMessage: "user not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnexpectedHidesCause(t *testing.T) {
	err := Unexpected(errors.New("UNIQUE constraint failed: users.email"))

	if err.Message != UnexpectedMessage {
		t.Errorf("Message = %q, want %q", err.Message, UnexpectedMessage)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
	if len(err.Fields) != 1 || err.Fields[0].Param != "email" {
		t.Errorf("Fields = %+v, want one entry for email", err.Fields)
	}
}
