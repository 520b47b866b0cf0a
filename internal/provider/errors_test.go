package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/unify/internal/model"
)

func TestOAuthError(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{"description preferred", `{"error":"invalid_grant","error_description":"Code was already redeemed."}`, "Code was already redeemed.", true},
		{"code only", `{"error":"invalid_client"}`, "invalid_client", true},
		{"object error is not oauth", `{"error":{"message":"x"}}`, "", false},
		{"no error", `{"access_token":"abc"}`, "", false},
		{"not json", `nope`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OAuthError([]byte(tt.body))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetailOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorDetail
	}{
		{
			name: "classified error keeps code and message",
			err:  fmt.Errorf("wrapped: %w", &Error{Provider: model.Twitter, Status: 401, Code: 89, Message: "Invalid or expired token."}),
			want: ErrorDetail{Message: "Invalid or expired token.", Code: 89},
		},
		{
			name: "deadline is unavailable",
			err:  context.DeadlineExceeded,
			want: ErrorDetail{Message: "Twitter is unavailable, please try again later"},
		},
		{
			name: "anything else is generic",
			err:  errors.New("json: cannot unmarshal number into string"),
			want: ErrorDetail{Message: "Twitter returned an unexpected response"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *DetailOf(model.Twitter, tt.err))
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(model.Facebook)
	assert.Error(t, err)
}

func TestUnavailable_DropsQueryFromURL(t *testing.T) {
	cause := &url.Error{
		Op:  "Get",
		URL: "https://graph.facebook.com/v19.0/me/friends?access_token=live-token&limit=5000",
		Err: errors.New("connection refused"),
	}

	err := Unavailable(model.Facebook, cause)

	assert.NotContains(t, err.Error(), "live-token")
	assert.Contains(t, err.Error(), "https://graph.facebook.com/v19.0/me/friends")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, IsTransport(err))
	assert.Contains(t, cause.URL, "live-token", "the original error is not mutated")
}

func TestRedact(t *testing.T) {
	leaky := &url.Error{Op: "Get", URL: "https://api.instagram.com/v1/users/self?access_token=live-token", Err: errors.New("timeout")}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"url error loses its query", leaky, `Get "https://api.instagram.com/v1/users/self": timeout`},
		{"classified error unchanged", Unavailable(model.Instagram, leaky), Unavailable(model.Instagram, leaky).Error()},
		{"plain error unchanged", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.err)
			assert.Equal(t, tt.want, got.Error())
			assert.NotContains(t, got.Error(), "live-token")
		})
	}
}
