package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/auth"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/notify"
	"github.com/sakif/unify/internal/repository"
)

// AuthService handles local email/password accounts.
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)  ↘ PasswordService (bcrypt)
//
// Users created through a provider sign-in have an unusable password until
// they go through ForgotPassword/ResetPassword, which also turns them into
// valid local users.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	notifier  notify.Notifier
	ttl       TTLs
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(d Deps, ttl TTLs) *AuthService {
	return &AuthService{
		users:     d.Users,
		tokens:    d.Tokens,
		passwords: d.Passwords,
		notifier:  d.Notifier,
		ttl:       ttl.withDefaults(),
		logger:    d.Logger,
	}
}

// SignupInput is a local signup.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

var errBadCredentials = apperror.Unauthorized("Invalid email or password")

// Signup creates a local user and sends the verification email.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if len(in.Password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password", "Password must be at least 8 characters long")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password is too long")
	}

	user := &model.User{
		Name:           strings.TrimSpace(in.Name),
		Email:          email,
		PasswordHash:   hash,
		ValidLocalUser: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperror.ValidationFailed("email", "Email is already in use")
		}
		return nil, unexpected(s.logger, "creating user", err)
	}
	s.logger.Info("local user signed up", slog.String("userID", user.ID))

	token, err := s.tokens.GeneratePurpose(user.ID, auth.PurposeVerifyEmail, s.ttl.Verify)
	if err != nil {
		return nil, unexpected(s.logger, "signing verify token", err)
	}
	u := *user
	background(ctx, s.logger, "signup email", func(ctx context.Context) error {
		return s.notifier.SendSignupEmail(ctx, &u, token)
	})

	return session(s.tokens, s.logger, user)
}

// Login checks a local email/password pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, unexpected(s.logger, "finding user by email", err)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", slog.String("userID", user.ID))
		return nil, errBadCredentials
	}
	return session(s.tokens, s.logger, user)
}

// VerifyEmail marks the token's user as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.VerifyPurpose(token, auth.PurposeVerifyEmail)
	if err != nil {
		return nil, apperror.BadRequest("This verification link is invalid or has expired")
	}
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}
	if user.Verified {
		return user, nil
	}
	user.Verified = true
	if err := s.users.Save(ctx, user); err != nil {
		return nil, unexpected(s.logger, "saving user", err, slog.String("userID", user.ID))
	}
	return user, nil
}

// ForgotPassword emails a reset link. Unknown addresses succeed silently so
// the endpoint cannot be used to discover which emails have accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("password reset for unknown email")
			return nil
		}
		return unexpected(s.logger, "finding user by email", err)
	}

	token, err := s.tokens.GeneratePurpose(user.ID, auth.PurposeResetPassword, s.ttl.Reset)
	if err != nil {
		return unexpected(s.logger, "signing reset token", err)
	}
	u := *user
	background(ctx, s.logger, "password reset email", func(ctx context.Context) error {
		return s.notifier.SendPasswordReset(ctx, &u, token)
	})
	return nil
}

// ResetPassword sets a new password from a reset token and signs the user in.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (*AuthResult, error) {
	userID, err := s.tokens.VerifyPurpose(token, auth.PurposeResetPassword)
	if err != nil {
		return nil, apperror.BadRequest("This reset link is invalid or has expired")
	}
	if len(password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password", "Password must be at least 8 characters long")
	}
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password is too long")
	}
	user.PasswordHash = hash
	user.ValidLocalUser = true
	// The link arrived by email, which proves ownership of the address.
	user.Verified = true
	if err := s.users.Save(ctx, user); err != nil {
		return nil, unexpected(s.logger, "saving user", err, slog.String("userID", user.ID))
	}
	s.logger.Info("password reset", slog.String("userID", user.ID))
	return session(s.tokens, s.logger, user)
}

// GetUserByID returns the user for the given internal ID.
// Used by GET /api/me after RequireAuth put the ID in the context.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("Not signed in")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, unexpected(s.logger, "loading user", err, slog.String("userID", id))
	}
	return user, nil
}

// DeleteAccount removes the user and their contacts.
func (s *AuthService) DeleteAccount(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return errUserNotFound
		}
		return unexpected(s.logger, "deleting user", err, slog.String("userID", id))
	}
	s.logger.Info("account deleted", slog.String("userID", id))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
