package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/auth"
	"github.com/sakif/unify/internal/cache"
	"github.com/sakif/unify/internal/metrics"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/notify"
	"github.com/sakif/unify/internal/provider"
	"github.com/sakif/unify/internal/repository"
)

// Link results, recorded in unify_link_operations_total.
const (
	linkLogin       = "login"
	linkByEmail     = "attached_by_email"
	linkCreated     = "created"
	linkReconfirmed = "reconfirmed"
	linkAttached    = "attached"
	linkCollision   = "collision"
	linkUnlinked    = "unlinked"
)

const requestSecretPrefix = "oauth1:"

// AccountService links and unlinks provider accounts.
//
// LINKING IN ONE PICTURE:
//
//	no session:   find by (provider, id) → find by email → create user
//	with session: already linked → held by someone else? → attach + backfill
//
// Every check runs before the first write; a rejected link changes nothing.
type AccountService struct {
	users     repository.UserRepository
	contacts  repository.ContactRepository
	adapters  *provider.Registry
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	notifier  notify.Notifier
	cache     cache.Cache
	ttl       TTLs
	logger    *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(d Deps, ttl TTLs) *AccountService {
	return &AccountService{
		users:     d.Users,
		contacts:  d.Contacts,
		adapters:  d.Adapters,
		tokens:    d.Tokens,
		passwords: d.Passwords,
		notifier:  d.Notifier,
		cache:     d.Cache,
		ttl:       ttl.withDefaults(),
		logger:    d.Logger,
	}
}

// LinkRequest is a link attempt for one provider. SessionToken is empty for
// an anonymous sign-in.
type LinkRequest struct {
	Provider      model.Provider
	Code          string
	ClientID      string
	RedirectURI   string
	OAuthToken    string
	OAuthVerifier string
	SessionToken  string
}

// LinkAccount signs in with, or attaches, a provider account.
func (s *AccountService) LinkAccount(ctx context.Context, req LinkRequest) (*AuthResult, error) {
	adapter, err := s.adapters.Get(req.Provider)
	if err != nil {
		return nil, apperror.BadRequest(fmt.Sprintf("%s sign-in is not available", req.Provider.Title()))
	}

	// The session is checked before the authorization code is spent: a bad
	// session must not consume a one-time code.
	var sessionUser *model.User
	if req.SessionToken != "" {
		userID, err := s.tokens.Validate(req.SessionToken)
		if err != nil {
			return nil, apperror.Unauthorized("Your session has expired, please sign in again")
		}
		sessionUser, err = loadUser(ctx, s.users, s.logger, userID)
		if err != nil {
			return nil, err
		}
	}

	exchange := provider.ExchangeRequest{
		Code:          req.Code,
		ClientID:      req.ClientID,
		RedirectURI:   req.RedirectURI,
		OAuthToken:    req.OAuthToken,
		OAuthVerifier: req.OAuthVerifier,
	}
	if req.OAuthToken != "" {
		secret, err := s.takeRequestSecret(ctx, req.OAuthToken)
		if err != nil {
			return nil, err
		}
		exchange.OAuthTokenSecret = secret
	}

	cred, err := adapter.Exchange(ctx, exchange)
	if err != nil {
		return nil, err
	}
	profile, err := adapter.FetchProfile(ctx, cred)
	if err != nil {
		return nil, err
	}
	profile.Email = normalizeEmail(profile.Email)
	account := newProviderAccount(profile, cred)

	if sessionUser == nil {
		return s.signIn(ctx, adapter.Name(), profile, account)
	}
	return s.attach(ctx, sessionUser, adapter.Name(), profile, account)
}

// signIn handles a link attempt without a session.
func (s *AccountService) signIn(ctx context.Context, p model.Provider, profile *provider.Profile, account *model.ProviderAccount) (*AuthResult, error) {
	// 1. Returning user: refresh the stored credential and profile.
	user, err := s.users.FindByProviderID(ctx, p, profile.ID)
	switch {
	case err == nil:
		if prev := user.Account(p); prev != nil && account.Credential.RefreshToken == "" {
			account.Credential.RefreshToken = prev.Credential.RefreshToken
		}
		user.SetAccount(p, account)
		if err := s.users.Save(ctx, user); err != nil {
			return nil, unexpected(s.logger, "saving user", err, slog.String("userID", user.ID))
		}
		metrics.ObserveLink(string(p), linkLogin)
		return session(s.tokens, s.logger, user)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, unexpected(s.logger, "finding user by provider id", err, slog.String("provider", string(p)))
	}

	// 2. Known email: attach to the user who owns it.
	if p.ExposesEmail() && profile.Email != "" {
		user, err := s.users.FindByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			user.SetAccount(p, account)
			if err := s.users.Save(ctx, user); err != nil {
				return nil, unexpected(s.logger, "saving user", err, slog.String("userID", user.ID))
			}
			s.setContactsValid(ctx, user.ID, p, true)
			metrics.ObserveLink(string(p), linkByEmail)
			s.logger.Info("provider attached by email",
				slog.String("userID", user.ID),
				slog.String("provider", string(p)),
			)
			return session(s.tokens, s.logger, user)
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, unexpected(s.logger, "finding user by email", err)
		}
	}

	// 3. New user.
	hash, err := s.passwords.HashUnusable()
	if err != nil {
		return nil, unexpected(s.logger, "hashing password", err)
	}
	user = &model.User{
		Name:           displayName(profile),
		PasswordHash:   hash,
		ValidLocalUser: false,
	}
	if p.ExposesEmail() {
		user.Email = profile.Email
	}
	user.SetAccount(p, account)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, unexpected(s.logger, "creating user", err, slog.String("provider", string(p)))
	}
	metrics.ObserveLink(string(p), linkCreated)
	s.logger.Info("user created from provider",
		slog.String("userID", user.ID),
		slog.String("provider", string(p)),
	)

	if user.Email != "" {
		s.sendSignupEmail(ctx, user)
	}
	return session(s.tokens, s.logger, user)
}

// attach handles a link attempt by a signed-in user.
func (s *AccountService) attach(ctx context.Context, user *model.User, p model.Provider, profile *provider.Profile, account *model.ProviderAccount) (*AuthResult, error) {
	if user.HasLinkedAccount(p) {
		metrics.ObserveLink(string(p), linkReconfirmed)
		return session(s.tokens, s.logger, user)
	}

	holder, err := s.users.FindByProviderID(ctx, p, profile.ID)
	switch {
	case err == nil && holder.ID != user.ID:
		metrics.ObserveLink(string(p), linkCollision)
		s.logger.Warn("provider account held by another user",
			slog.String("userID", user.ID),
			slog.String("holderID", holder.ID),
			slog.String("provider", string(p)),
		)
		return nil, apperror.BadRequest(fmt.Sprintf(
			"This %s account is already linked to another Unify account", p.Title()))
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, unexpected(s.logger, "finding user by provider id", err, slog.String("provider", string(p)))
	}

	if user.Email == "" && p.ExposesEmail() && profile.Email != "" {
		_, err := s.users.FindByEmail(ctx, profile.Email)
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			user.Email = profile.Email
		case err != nil:
			return nil, unexpected(s.logger, "finding user by email", err)
		}
	}

	user.SetAccount(p, account)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, unexpected(s.logger, "saving user", err, slog.String("userID", user.ID))
	}
	s.setContactsValid(ctx, user.ID, p, true)
	metrics.ObserveLink(string(p), linkAttached)
	s.logger.Info("provider linked",
		slog.String("userID", user.ID),
		slog.String("provider", string(p)),
	)
	return session(s.tokens, s.logger, user)
}

// UnlinkAccount removes provider p from the user, subject to CanUnlink.
func (s *AccountService) UnlinkAccount(ctx context.Context, userID string, p model.Provider) (*AuthResult, error) {
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasLinkedAccount(p) {
		return nil, apperror.BadRequest(fmt.Sprintf("%s is not linked to your account", p.Title()))
	}
	if err := CanUnlink(user, p); err != nil {
		return nil, err
	}

	user.ClearAccount(p)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, unexpected(s.logger, "saving user", err, slog.String("userID", user.ID))
	}
	s.setContactsValid(ctx, user.ID, p, false)
	metrics.ObserveLink(string(p), linkUnlinked)
	s.logger.Info("provider unlinked",
		slog.String("userID", user.ID),
		slog.String("provider", string(p)),
	)
	return session(s.tokens, s.logger, user)
}

// TwitterRequestToken starts the OAuth 1.0a handshake. The request secret
// stays server-side until LinkAccount trades the token in.
func (s *AccountService) TwitterRequestToken(ctx context.Context) (string, error) {
	adapter, err := s.adapters.Get(model.Twitter)
	if err != nil {
		return "", apperror.BadRequest("Twitter sign-in is not available")
	}
	rt, ok := adapter.(provider.RequestTokener)
	if !ok {
		return "", apperror.BadRequest("Twitter sign-in is not available")
	}

	token, secret, err := rt.RequestToken(ctx)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, requestSecretPrefix+token, []byte(secret), s.ttl.RequestSecret); err != nil {
		return "", unexpected(s.logger, "storing request secret", err)
	}
	return token, nil
}

// takeRequestSecret returns and forgets the secret stored for token. Two
// callbacks racing on one token cannot both get it.
func (s *AccountService) takeRequestSecret(ctx context.Context, token string) (string, error) {
	secret, err := s.cache.Take(ctx, requestSecretPrefix+token)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", apperror.BadRequest("Your Twitter sign-in has expired, please try again")
		}
		return "", unexpected(s.logger, "reading request secret", err)
	}
	return string(secret), nil
}

// setContactsValid flips Valid on the user's contacts' accounts for p.
// The link or unlink has already been saved, so failures are only logged.
func (s *AccountService) setContactsValid(ctx context.Context, userID string, p model.Provider, valid bool) {
	contacts, err := s.contacts.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("listing contacts failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, c := range contacts {
		a := c.Account(p)
		if a == nil || a.Valid == valid {
			continue
		}
		a.Valid = valid
		if err := s.contacts.Save(ctx, c); err != nil {
			s.logger.Error("saving contact failed",
				slog.String("contactID", c.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *AccountService) sendSignupEmail(ctx context.Context, user *model.User) {
	token, err := s.tokens.GeneratePurpose(user.ID, auth.PurposeVerifyEmail, s.ttl.Verify)
	if err != nil {
		s.logger.Error("signing verify token failed", slog.String("error", err.Error()))
		return
	}
	u := *user
	background(ctx, s.logger, "signup email", func(ctx context.Context) error {
		return s.notifier.SendSignupEmail(ctx, &u, token)
	})
}

// newProviderAccount builds the stored account from a fetched profile.
func newProviderAccount(profile *provider.Profile, cred model.Credential) *model.ProviderAccount {
	return &model.ProviderAccount{
		ID:          profile.ID,
		Credential:  cred,
		DisplayName: displayName(profile),
		Picture:     profile.Picture,
		Email:       profile.Email,
		Valid:       true,
	}
}

func displayName(profile *provider.Profile) string {
	if profile.Name != "" {
		return profile.Name
	}
	return profile.Username
}
