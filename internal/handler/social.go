package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/auth"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/service"
)

// AccountLinker is the provider-linking part of the service layer.
type AccountLinker interface {
	LinkAccount(ctx context.Context, req service.LinkRequest) (*service.AuthResult, error)
	UnlinkAccount(ctx context.Context, userID string, p model.Provider) (*service.AuthResult, error)
	TwitterRequestToken(ctx context.Context) (string, error)
}

var _ AccountLinker = (*service.AccountService)(nil)

// SocialHandler links and unlinks provider accounts.
type SocialHandler struct {
	accounts AccountLinker
}

// NewSocialHandler creates a SocialHandler.
func NewSocialHandler(accounts AccountLinker) *SocialHandler {
	return &SocialHandler{accounts: accounts}
}

// linkRequest is what the client posts after the provider's consent screen.
// OAuth 2.0 providers send code; Twitter sends oauth_token/oauth_verifier.
type linkRequest struct {
	Code          string `json:"code"`
	ClientID      string `json:"clientId"`
	RedirectURI   string `json:"redirectUri"`
	OAuthToken    string `json:"oauth_token"`
	OAuthVerifier string `json:"oauth_verifier"`
}

// HandleLink signs in with, or links, a provider account.
//
// HTTP: POST /auth/{provider}
// An optional "Authorization: Bearer <token>" links to the signed-in user;
// without it the request is a sign-in.
// RESPONSE: 200 {"token": "...", "user": {...}}
func (h *SocialHandler) HandleLink(w http.ResponseWriter, r *http.Request) {
	p, err := providerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.LinkAccount(r.Context(), service.LinkRequest{
		Provider:      p,
		Code:          req.Code,
		ClientID:      req.ClientID,
		RedirectURI:   req.RedirectURI,
		OAuthToken:    req.OAuthToken,
		OAuthVerifier: req.OAuthVerifier,
		SessionToken:  auth.BearerToken(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleUnlink removes a provider account from the signed-in user.
//
// HTTP: DELETE /auth/{provider} (requires auth.RequireAuth)
func (h *SocialHandler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	p, err := providerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	res, err := h.accounts.UnlinkAccount(r.Context(), userID, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleTwitterRequestToken starts Twitter's OAuth 1.0a handshake.
//
// HTTP: POST /auth/twitter/request-token
// RESPONSE: 200 {"oauth_token": "..."}
func (h *SocialHandler) HandleTwitterRequestToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.accounts.TwitterRequestToken(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"oauth_token": token})
}

// providerParam parses the {provider} URL parameter.
func providerParam(r *http.Request) (model.Provider, error) {
	p, err := model.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		return "", apperror.NotFound("provider", chi.URLParam(r, "provider"))
	}
	return p, nil
}
