package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/auth"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/service"
)

// Authenticator is the local-account part of the service layer.
type Authenticator interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	VerifyEmail(ctx context.Context, token string) (*model.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	DeleteAccount(ctx context.Context, id string) error
}

var _ Authenticator = (*service.AuthService)(nil)

// AuthHandler serves local signup, login and password recovery, plus the
// signed-in user's own profile.
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(a Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: a, logger: logger}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// HandleSignup creates a local account.
//
// HTTP: POST /auth/signup
// REQUEST BODY: {"name": "Ada", "email": "ada@example.com", "password": "..."}
// RESPONSE: 201 {"token": "...", "user": {...}}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Signup(r.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin checks a local email/password pair.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type forgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleForgotPassword emails a reset link. It answers 204 whether or not
// the address is known.
//
// HTTP: POST /auth/forgot
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// HandleResetPassword sets a new password and signs the user in.
//
// HTTP: POST /auth/reset
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleVerifyEmail confirms an email address.
//
// HTTP: GET /auth/verify?token=...
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, apperror.ValidationFailed("token", "token is required"))
		return
	}

	user, err := h.auth.VerifyEmail(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/me (requires auth.RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleDeleteMe deletes the signed-in user and their contacts.
//
// HTTP: DELETE /api/me
func (h *AuthHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.auth.DeleteAccount(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("account deleted via API", slog.String("userID", userID))
	w.WriteHeader(http.StatusNoContent)
}
