package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//
//	{"errors": [{"msg": "Email is already in use", "param": "email"}]}
//
// Provider failures add the provider's own error code:
//
//	{"errors": [{"msg": "Rate limit exceeded", "code": 88}]}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/provider"
)

// ErrorItem is one entry of an error response.
type ErrorItem struct {
	Message string `json:"msg"`
	Code    int    `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Errors []ErrorItem `json:"errors"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written; once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and the error envelope.
//
// ERROR MAPPING:
//   - *provider.Error   → the provider's status (503 for transport failures)
//   - apperror kinds    → 400 / 401 / 403 / 404 / 409
//   - anything else     → 500 with a generic message
//
// The service layer never picks status codes; this is the only place that does.
func writeError(w http.ResponseWriter, err error) {
	var perr *provider.Error
	if errors.As(err, &perr) {
		if perr.Err != nil {
			slog.Warn("provider error",
				slog.String("provider", string(perr.Provider)),
				slog.String("error", perr.Err.Error()),
			)
		}
		writeJSON(w, perr.Status, ErrorResponse{Errors: []ErrorItem{{
			Message: perr.Message,
			Code:    perr.Code,
		}}})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}

		items := make([]ErrorItem, 0, len(appErr.Fields))
		for _, f := range appErr.Fields {
			items = append(items, ErrorItem{Message: f.Message, Param: f.Param})
		}
		if len(items) == 0 {
			items = append(items, ErrorItem{Message: appErr.Message})
		}
		writeJSON(w, status, ErrorResponse{Errors: items})
		return
	}

	// Unknown error: never expose its text, it may contain SQL or paths.
	slog.Error("unhandled error", slog.String("error", provider.Redact(err).Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Errors: []ErrorItem{{
		Message: "An internal error occurred",
	}}})
}
