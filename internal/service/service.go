// Package service holds the business logic behind the HTTP handlers:
//
//	handler (HTTP) → AccountService / AuthService / FeedService → repositories
//	                                                            ↘ provider adapters
//
// Services never touch http.Request or chi; they take plain values and
// return model types or *apperror.AppError / *provider.Error values the
// handlers map to status codes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/auth"
	"github.com/sakif/unify/internal/cache"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/notify"
	"github.com/sakif/unify/internal/provider"
	"github.com/sakif/unify/internal/repository"
)

// Deps bundles the collaborators shared by the services. Build it once in
// the composition root and pass it to each constructor.
type Deps struct {
	Users     repository.UserRepository
	Contacts  repository.ContactRepository
	Adapters  *provider.Registry
	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
	Notifier  notify.Notifier
	Cache     cache.Cache
	Logger    *slog.Logger
}

// TTLs for the short-lived tokens and cached state. Zero values fall back to
// the defaults below.
type TTLs struct {
	Verify        time.Duration
	Reset         time.Duration
	RequestSecret time.Duration
	Search        time.Duration
}

const (
	defaultVerifyTTL        = 72 * time.Hour
	defaultResetTTL         = time.Hour
	defaultRequestSecretTTL = 15 * time.Minute
	defaultSearchTTL        = 30 * time.Minute
)

func (t TTLs) withDefaults() TTLs {
	if t.Verify <= 0 {
		t.Verify = defaultVerifyTTL
	}
	if t.Reset <= 0 {
		t.Reset = defaultResetTTL
	}
	if t.RequestSecret <= 0 {
		t.RequestSecret = defaultRequestSecretTTL
	}
	if t.Search <= 0 {
		t.Search = defaultSearchTTL
	}
	return t
}

// AuthResult is returned by every operation that (re)issues a session: the
// fresh session token plus the user it belongs to.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// errUserNotFound is what a client sees when its session points at a user
// that no longer exists.
var errUserNotFound = apperror.BadRequest("user not found")

// loadUser fetches userID, turning "missing" into a 400 and anything else
// into a logged, generic failure.
func loadUser(ctx context.Context, users repository.UserRepository, logger *slog.Logger, userID string) (*model.User, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, unexpected(logger, "loading user", err, slog.String("userID", userID))
	}
	return user, nil
}

// unexpected logs a persistence failure in full and returns the generic
// client-facing error.
func unexpected(logger *slog.Logger, op string, err error, attrs ...any) error {
	logger.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
	return apperror.Unexpected(err)
}

// session issues a fresh session token for user.
func session(tokens *auth.TokenService, logger *slog.Logger, user *model.User) (*AuthResult, error) {
	token, err := tokens.Generate(user.ID)
	if err != nil {
		return nil, unexpected(logger, "signing session", err, slog.String("userID", user.ID))
	}
	return &AuthResult{Token: token, User: user}, nil
}

// background runs fn after the request returns. Errors are logged only.
func background(ctx context.Context, logger *slog.Logger, what string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := fn(ctx); err != nil {
			logger.Error(what+" failed", slog.String("error", err.Error()))
		}
	}()
}
