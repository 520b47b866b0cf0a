package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/sakif/unify/internal/model"
)

// Error is a classified provider failure.
//
// Status is the HTTP status the failure surfaces with. For provider-reported
// errors it is the provider's own status; transport failures use 503.
// Message and Code are safe to show to clients. Err holds the raw cause and
// is only ever logged.
type Error struct {
	Provider  model.Provider
	Status    int
	Code      int
	Message   string
	Transport bool
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %d", e.Provider, e.Status)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorDetail is the client-facing shape of a provider error, used both in
// the {"errors":[...]} envelope and in fan-out error maps.
type ErrorDetail struct {
	Message string `json:"msg"`
	Code    int    `json:"code,omitempty"`
}

// Detail returns the client-facing part of e.
func (e *Error) Detail() ErrorDetail {
	return ErrorDetail{Message: e.Message, Code: e.Code}
}

// Response is the raw provider reply handed to a Classifier.
type Response struct {
	Status int
	Body   []byte
}

// Classifier inspects a transport error and/or a raw provider response and
// returns nil when the response can be trusted.
type Classifier func(transportErr error, resp *Response) *Error

// Unavailable is the classified form of a transport failure. The raw
// transport text stays in Err, minus the request query: Facebook and
// Instagram carry the access token there.
func Unavailable(p model.Provider, err error) *Error {
	return &Error{
		Provider:  p,
		Status:    http.StatusServiceUnavailable,
		Message:   fmt.Sprintf("%s is unavailable, please try again later", p.Title()),
		Transport: true,
		Err:       Redact(err),
	}
}

// Redact drops the query, fragment and userinfo from the URL a *url.Error
// reports, so access tokens sent as query parameters never reach a log.
// Classified errors are already redacted and errors without a *url.Error in
// their chain are returned unchanged.
func Redact(err error) error {
	var perr *Error
	if errors.As(err, &perr) {
		return err
	}
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	redacted := *urlErr
	if u, perr := url.Parse(urlErr.URL); perr == nil {
		u.RawQuery = ""
		u.Fragment = ""
		u.User = nil
		redacted.URL = u.String()
	} else {
		redacted.URL = ""
	}
	return &redacted
}

// StatusError classifies a non-2xx reply that carried no error envelope.
func StatusError(p model.Provider, status int) *Error {
	msg := http.StatusText(status)
	if msg == "" {
		msg = fmt.Sprintf("%s returned status %d", p.Title(), status)
	}
	return &Error{Provider: p, Status: status, Message: msg}
}

// InvalidResponse classifies a 2xx reply that is missing required fields.
func InvalidResponse(p model.Provider, what string, err error) *Error {
	return &Error{
		Provider: p,
		Status:   http.StatusBadGateway,
		Message:  fmt.Sprintf("%s returned an invalid %s", p.Title(), what),
		Err:      err,
	}
}

// Failed reports whether resp carries a non-2xx status.
func (r *Response) Failed() bool {
	return r.Status < 200 || r.Status > 299
}

// ErrorStatus returns the status a provider-reported error should surface
// with: the response status when it is an error status, 400 otherwise
// (some providers report errors in 200 responses).
func (r *Response) ErrorStatus() int {
	if r.Failed() {
		return r.Status
	}
	return http.StatusBadRequest
}

// OAuthError extracts an RFC 6749 token endpoint error
// ({"error":"invalid_grant","error_description":"..."}).
func OAuthError(body []byte) (string, bool) {
	var env struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return "", false
	}
	var code string
	if err := json.Unmarshal(env.Error, &code); err != nil || code == "" {
		return "", false
	}
	if env.ErrorDescription != "" {
		return env.ErrorDescription, true
	}
	return code, true
}

// IsTransport reports whether err is a network-level failure (DNS,
// connection, timeout, cancellation) rather than a bad provider reply.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// DetailOf turns any error from an adapter call into the detail stored in a
// fan-out error slot. Unclassified errors never leak their text.
func DetailOf(p model.Provider, err error) *ErrorDetail {
	var perr *Error
	if errors.As(err, &perr) {
		d := perr.Detail()
		return &d
	}
	if IsTransport(err) {
		d := Unavailable(p, err).Detail()
		return &d
	}
	return &ErrorDetail{Message: fmt.Sprintf("%s returned an unexpected response", p.Title())}
}
