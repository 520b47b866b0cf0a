package provider

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/sakif/unify/internal/apperror"
)

// OAuth2 performs the authorization-code exchange for OAuth 2.0 providers.
type OAuth2 struct {
	config oauth2.Config
	api    *API
}

// NewOAuth2 wraps config. Token calls go through api's HTTP client and
// their errors through api's classifier.
func NewOAuth2(config oauth2.Config, api *API) *OAuth2 {
	return &OAuth2{config: config, api: api}
}

// ClientID returns the configured application id.
func (o *OAuth2) ClientID() string {
	return o.config.ClientID
}

// Exchange trades req.Code for a token. A request client id must match the
// configured one; a request redirect URI replaces the configured one since it
// has to equal the URI used on the consent screen.
func (o *OAuth2) Exchange(ctx context.Context, req ExchangeRequest) (*oauth2.Token, error) {
	if req.Code == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	if req.ClientID != "" && req.ClientID != o.config.ClientID {
		return nil, apperror.ValidationFailed("clientId", "clientId does not match the configured application")
	}

	cfg := o.config
	if req.RedirectURI != "" {
		cfg.RedirectURL = req.RedirectURI
	}

	tok, err := cfg.Exchange(o.context(ctx), req.Code)
	if err != nil {
		return nil, o.api.TokenError(err)
	}
	return tok, nil
}

// Refresh mints a new access token from refreshToken.
func (o *OAuth2) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, apperror.BadRequest("no refresh token stored, please link the account again")
	}
	src := o.config.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, o.api.TokenError(err)
	}
	return tok, nil
}

func (o *OAuth2) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.api.HTTPClient())
}
