package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

func twitterAdapter(id string) *fakeTwitter {
	return &fakeTwitter{fakeAdapter{
		name:    model.Twitter,
		profile: provider.Profile{ID: id, Name: "Tweeter", Username: "tweeter"},
		cred:    model.Credential{AccessToken: "tw-token", Secret: "tw-secret"},
	}}
}

func facebookAdapter(id, email string) *fakeAdapter {
	return &fakeAdapter{
		name:    model.Facebook,
		profile: provider.Profile{ID: id, Name: "Face Book", Email: email},
		cred:    model.Credential{AccessToken: "fb-token"},
	}
}

// =========================================================================
// ANONYMOUS SIGN-IN
// =========================================================================

func TestLinkAccount_NewUserFromTwitter(t *testing.T) {
	ctx := context.Background()
	tw := twitterAdapter("tw-1")
	env := newTestEnv(t, tw)
	svc := NewAccountService(env.deps, TTLs{})

	token, err := svc.TwitterRequestToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req-token", token)

	res, err := svc.LinkAccount(ctx, LinkRequest{
		Provider:      model.Twitter,
		OAuthToken:    "req-token",
		OAuthVerifier: "verifier",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "req-secret", tw.exchanges[0].OAuthTokenSecret)

	stored := env.users.get(t, res.User.ID)
	assert.Empty(t, stored.Email)
	assert.False(t, stored.ValidLocalUser)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.Equal(t, "Tweeter", stored.Name)
	require.True(t, stored.HasLinkedAccount(model.Twitter))
	assert.Equal(t, "tw-secret", stored.Account(model.Twitter).Credential.Secret)

	// No email, no signup mail.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, env.notifier.emails())

	// The request secret is single use.
	_, err = svc.LinkAccount(ctx, LinkRequest{
		Provider:      model.Twitter,
		OAuthToken:    "req-token",
		OAuthVerifier: "verifier",
	})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
	assert.Len(t, tw.exchanges, 1)
}

func TestLinkAccount_ConcurrentTwitterCallbacksShareNoSecret(t *testing.T) {
	ctx := context.Background()
	tw := twitterAdapter("tw-1")
	env := newTestEnv(t, tw)
	svc := NewAccountService(env.deps, TTLs{})

	_, err := svc.TwitterRequestToken(ctx)
	require.NoError(t, err)

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.LinkAccount(ctx, LinkRequest{
				Provider:      model.Twitter,
				OAuthToken:    "req-token",
				OAuthVerifier: "verifier",
			})
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrBadRequest)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, tw.exchangeCount())
}

func TestLinkAccount_NewUserWithEmailGetsSignupMail(t *testing.T) {
	env := newTestEnv(t, facebookAdapter("fb-1", "Face@Example.com"))
	svc := NewAccountService(env.deps, TTLs{})

	res, err := svc.LinkAccount(context.Background(), LinkRequest{Provider: model.Facebook, Code: "code"})
	require.NoError(t, err)
	assert.Equal(t, "face@example.com", res.User.Email)

	assert.Eventually(t, func() bool {
		sent := env.notifier.emails()
		return len(sent) == 1 && sent[0].kind == "signup" && sent[0].user == res.User.ID
	}, time.Second, 10*time.Millisecond)
}

func TestLinkAccount_ReturningUserRefreshesCredential(t *testing.T) {
	google := &fakeAdapter{
		name:    model.Google,
		profile: provider.Profile{ID: "g-1", Name: "New Name", Email: "g@example.com"},
		cred:    model.Credential{AccessToken: "new-access"},
	}
	env := newTestEnv(t, google)
	svc := NewAccountService(env.deps, TTLs{})

	existing := &model.User{Name: "Old", Email: "g@example.com"}
	existing.SetAccount(model.Google, &model.ProviderAccount{
		ID:         "g-1",
		Credential: model.Credential{AccessToken: "old-access", RefreshToken: "keep-me"},
	})
	env.users.put(t, existing)

	res, err := svc.LinkAccount(context.Background(), LinkRequest{Provider: model.Google, Code: "code"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.User.ID)

	stored := env.users.get(t, existing.ID)
	assert.Equal(t, model.Credential{AccessToken: "new-access", RefreshToken: "keep-me"},
		stored.Account(model.Google).Credential)
	assert.Equal(t, "New Name", stored.Account(model.Google).DisplayName)
	assert.Len(t, env.users.users, 1)
}

func TestLinkAccount_AttachesByEmailAndEnablesContacts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, facebookAdapter("fb-1", "ada@example.com"))
	svc := NewAccountService(env.deps, TTLs{})

	ada := env.users.put(t, &model.User{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, env.contacts.Create(ctx, &model.Contact{
		ID:     "c1",
		UserID: ada.ID,
		Accounts: map[model.Provider]*model.ContactAccount{
			model.Facebook: {ID: "fb-friend", Valid: false},
		},
	}))

	res, err := svc.LinkAccount(ctx, LinkRequest{Provider: model.Facebook, Code: "code"})
	require.NoError(t, err)
	assert.Equal(t, ada.ID, res.User.ID)
	assert.True(t, env.users.get(t, ada.ID).HasLinkedAccount(model.Facebook))

	c, err := env.contacts.GetByID(ctx, ada.ID, "c1")
	require.NoError(t, err)
	assert.True(t, c.Account(model.Facebook).Valid)
}

func TestLinkAccount_TwitterEmailNeverMatches(t *testing.T) {
	tw := twitterAdapter("tw-1")
	tw.profile.Email = "ada@example.com"
	env := newTestEnv(t, tw)
	require.NoError(t, env.cache.Set(context.Background(), "oauth1:t", []byte("s"), 0))
	svc := NewAccountService(env.deps, TTLs{})

	ada := env.users.put(t, &model.User{Name: "Ada", Email: "ada@example.com"})

	res, err := svc.LinkAccount(context.Background(), LinkRequest{Provider: model.Twitter, OAuthToken: "t", OAuthVerifier: "v"})
	require.NoError(t, err)
	assert.NotEqual(t, ada.ID, res.User.ID)
	assert.Empty(t, res.User.Email)
}

// =========================================================================
// SIGNED-IN LINKING
// =========================================================================

func TestLinkAccount_AlreadyLinkedIsIdempotent(t *testing.T) {
	fb := facebookAdapter("fb-other", "x@example.com")
	env := newTestEnv(t, fb)
	svc := NewAccountService(env.deps, TTLs{})

	user := &model.User{Name: "Ada"}
	user.SetAccount(model.Facebook, linkedAccount("fb-1"))
	env.users.put(t, user)

	res, err := svc.LinkAccount(context.Background(), LinkRequest{
		Provider:     model.Facebook,
		Code:         "code",
		SessionToken: env.sessionFor(t, user.ID),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user.ID, res.User.ID)

	assert.Zero(t, env.users.saves)
	stored := env.users.get(t, user.ID)
	assert.Equal(t, "fb-1", stored.Account(model.Facebook).ID)
	assert.Empty(t, stored.Email)
}

func TestLinkAccount_AccountHeldByAnotherUser(t *testing.T) {
	env := newTestEnv(t, facebookAdapter("fb-1", "fb@example.com"))
	svc := NewAccountService(env.deps, TTLs{})

	holder := &model.User{Name: "Holder"}
	holder.SetAccount(model.Facebook, linkedAccount("fb-1"))
	env.users.put(t, holder)
	me := env.users.put(t, &model.User{Name: "Me"})

	_, err := svc.LinkAccount(context.Background(), LinkRequest{
		Provider:     model.Facebook,
		Code:         "code",
		SessionToken: env.sessionFor(t, me.ID),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
	assert.Contains(t, err.Error(), "already linked to another Unify account")

	assert.Zero(t, env.users.saves)
	assert.False(t, env.users.get(t, me.ID).HasLinkedAccount(model.Facebook))
	assert.Empty(t, env.users.get(t, me.ID).Email)
	assert.Equal(t, "stored-fb-1", env.users.get(t, holder.ID).Account(model.Facebook).Credential.AccessToken)
}

func TestLinkAccount_EmailBackfill(t *testing.T) {
	tests := []struct {
		name       string
		otherEmail string
		wantEmail  string
	}{
		{name: "free email is backfilled", otherEmail: "", wantEmail: "fb@example.com"},
		{name: "email owned by another user is not", otherEmail: "fb@example.com", wantEmail: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, facebookAdapter("fb-1", "fb@example.com"))
			svc := NewAccountService(env.deps, TTLs{})

			if tt.otherEmail != "" {
				env.users.put(t, &model.User{Name: "Other", Email: tt.otherEmail})
			}
			me := &model.User{Name: "Me"}
			me.SetAccount(model.Twitter, linkedAccount("tw-1"))
			env.users.put(t, me)

			res, err := svc.LinkAccount(context.Background(), LinkRequest{
				Provider:     model.Facebook,
				Code:         "code",
				SessionToken: env.sessionFor(t, me.ID),
			})
			require.NoError(t, err)

			stored := env.users.get(t, me.ID)
			assert.Equal(t, tt.wantEmail, stored.Email)
			assert.Equal(t, tt.wantEmail, res.User.Email)
			assert.True(t, stored.HasLinkedAccount(model.Facebook))
			assert.True(t, stored.HasLinkedAccount(model.Twitter))
		})
	}
}

// The email from the first sign-in survives later links, whatever they
// supply.
func TestLinkAccount_EmailKeptWhenLinkingLater(t *testing.T) {
	ctx := context.Background()
	tw := twitterAdapter("tw-1")
	tw.profile.Email = "tweeter@example.com"
	google := &fakeAdapter{
		name:    model.Google,
		profile: provider.Profile{ID: "g-1", Name: "Goo Gle", Email: "other@example.com"},
		cred:    model.Credential{AccessToken: "g-token", RefreshToken: "g-refresh"},
	}
	env := newTestEnv(t, facebookAdapter("fb-1", "fb@example.com"), tw, google)
	svc := NewAccountService(env.deps, TTLs{})

	first, err := svc.LinkAccount(ctx, LinkRequest{Provider: model.Facebook, Code: "code"})
	require.NoError(t, err)
	require.Equal(t, "fb@example.com", first.User.Email)

	_, err = svc.TwitterRequestToken(ctx)
	require.NoError(t, err)
	_, err = svc.LinkAccount(ctx, LinkRequest{
		Provider:      model.Twitter,
		OAuthToken:    "req-token",
		OAuthVerifier: "verifier",
		SessionToken:  first.Token,
	})
	require.NoError(t, err)

	res, err := svc.LinkAccount(ctx, LinkRequest{
		Provider:     model.Google,
		Code:         "code",
		SessionToken: first.Token,
	})
	require.NoError(t, err)

	stored := env.users.get(t, first.User.ID)
	assert.Equal(t, "fb@example.com", stored.Email)
	assert.Equal(t, "fb@example.com", res.User.Email)
	assert.True(t, stored.HasLinkedAccount(model.Facebook))
	assert.True(t, stored.HasLinkedAccount(model.Twitter))
	assert.True(t, stored.HasLinkedAccount(model.Google))
}

func TestLinkAccount_SessionCheckedBeforeExchange(t *testing.T) {
	fb := facebookAdapter("fb-1", "")
	env := newTestEnv(t, fb)
	svc := NewAccountService(env.deps, TTLs{})

	expired, err := env.tokens.GenerateWithDuration("user-1", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage token", "not-a-jwt", apperror.ErrUnauthorized},
		{"expired token", expired, apperror.ErrUnauthorized},
		{"unknown user", env.sessionFor(t, "ghost"), apperror.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.LinkAccount(context.Background(), LinkRequest{
				Provider:     model.Facebook,
				Code:         "code",
				SessionToken: tt.token,
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, fb.exchangeCount(), "the code must not be spent")
}

func TestLinkAccount_ExchangeErrorPassesThrough(t *testing.T) {
	fb := facebookAdapter("fb-1", "")
	fb.exchangeErr = &provider.Error{Provider: model.Facebook, Status: 400, Code: 100, Message: "Invalid verification code"}
	env := newTestEnv(t, fb)
	svc := NewAccountService(env.deps, TTLs{})

	_, err := svc.LinkAccount(context.Background(), LinkRequest{Provider: model.Facebook, Code: "bad"})

	var perr *provider.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 100, perr.Code)
	assert.Empty(t, env.users.users)
}

func TestLinkAccount_PersistenceErrorIsHidden(t *testing.T) {
	env := newTestEnv(t, facebookAdapter("fb-1", ""))
	env.users.err = errors.New("disk full")
	svc := NewAccountService(env.deps, TTLs{})

	_, err := svc.LinkAccount(context.Background(), LinkRequest{Provider: model.Facebook, Code: "code"})

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.UnexpectedMessage, appErr.Message)
}

func TestLinkAccount_UnknownProvider(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAccountService(env.deps, TTLs{})

	_, err := svc.LinkAccount(context.Background(), LinkRequest{Provider: model.Instagram, Code: "code"})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

// =========================================================================
// UNLINK
// =========================================================================

func TestCanUnlink(t *testing.T) {
	withAccounts := func(email string, ps ...model.Provider) *model.User {
		u := &model.User{Email: email}
		for _, p := range ps {
			u.SetAccount(p, linkedAccount(string(p)+"-1"))
		}
		return u
	}

	tests := []struct {
		name     string
		user     *model.User
		provider model.Provider
		wantErr  bool
	}{
		{"twitter alone, no email", withAccounts("", model.Twitter), model.Twitter, true},
		{"twitter with instagram", withAccounts("", model.Twitter, model.Instagram), model.Twitter, false},
		{"twitter with email", withAccounts("a@example.com", model.Twitter), model.Twitter, false},
		{"instagram alone, no email", withAccounts("", model.Instagram), model.Instagram, true},
		{"instagram with facebook, no email", withAccounts("", model.Instagram, model.Facebook), model.Instagram, true},
		{"instagram with twitter", withAccounts("", model.Instagram, model.Twitter), model.Instagram, false},
		{"facebook always", withAccounts("", model.Facebook), model.Facebook, false},
		{"google always", withAccounts("", model.Google), model.Google, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanUnlink(tt.user, tt.provider)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrBadRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// A user whose only ways in are Twitter and Instagram can drop one of the
// pair but never both. Neither service exposes an email, so a linked
// Facebook does not lift the rule; only an email does.
func TestUnlinkAccount_TwitterInstagramPairWithoutEmail(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		extra      []model.Provider
		wantSecond bool // second unlink (Twitter) allowed
	}{
		{name: "no email", wantSecond: false},
		{name: "no email, facebook linked too", extra: []model.Provider{model.Facebook}, wantSecond: false},
		{name: "email present", email: "ada@example.com", wantSecond: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t)
			svc := NewAccountService(env.deps, TTLs{})

			user := &model.User{Name: "Ada", Email: tt.email}
			for _, p := range append([]model.Provider{model.Twitter, model.Instagram}, tt.extra...) {
				user.SetAccount(p, linkedAccount(string(p)+"-1"))
			}
			env.users.put(t, user)

			assert.NoError(t, CanUnlink(env.users.get(t, user.ID), model.Twitter))
			assert.NoError(t, CanUnlink(env.users.get(t, user.ID), model.Instagram))

			_, err := svc.UnlinkAccount(ctx, user.ID, model.Instagram)
			require.NoError(t, err)

			_, err = svc.UnlinkAccount(ctx, user.ID, model.Twitter)
			stored := env.users.get(t, user.ID)
			if tt.wantSecond {
				require.NoError(t, err)
				assert.False(t, stored.HasLinkedAccount(model.Twitter))
				return
			}
			assert.ErrorIs(t, err, apperror.ErrBadRequest)
			assert.True(t, stored.HasLinkedAccount(model.Twitter), "refused unlink must not mutate")
		})
	}
}

func TestUnlinkAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewAccountService(env.deps, TTLs{})

	user := &model.User{Name: "Ada"}
	user.SetAccount(model.Twitter, linkedAccount("tw-1"))
	user.SetAccount(model.Instagram, linkedAccount("ig-1"))
	env.users.put(t, user)
	require.NoError(t, env.contacts.Create(ctx, &model.Contact{
		ID:     "c1",
		UserID: user.ID,
		Accounts: map[model.Provider]*model.ContactAccount{
			model.Instagram: {ID: "ig-friend", Valid: true},
			model.Twitter:   {ID: "tw-friend", Valid: true},
		},
	}))

	// Instagram may go: Twitter stays as a way in.
	res, err := svc.UnlinkAccount(ctx, user.ID, model.Instagram)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.False(t, env.users.get(t, user.ID).HasLinkedAccount(model.Instagram))

	c, err := env.contacts.GetByID(ctx, user.ID, "c1")
	require.NoError(t, err)
	assert.False(t, c.Account(model.Instagram).Valid)
	assert.True(t, c.Account(model.Twitter).Valid)

	// Twitter is now the last way in.
	_, err = svc.UnlinkAccount(ctx, user.ID, model.Twitter)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
	assert.True(t, env.users.get(t, user.ID).HasLinkedAccount(model.Twitter))

	// Not linked at all.
	_, err = svc.UnlinkAccount(ctx, user.ID, model.Google)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestUnlinkAccount_WithEmailDownToZero(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewAccountService(env.deps, TTLs{})

	user := &model.User{Name: "Ada", Email: "ada@example.com"}
	for _, p := range model.Providers {
		user.SetAccount(p, linkedAccount(string(p)+"-1"))
	}
	env.users.put(t, user)

	for _, p := range model.Providers {
		_, err := svc.UnlinkAccount(ctx, user.ID, p)
		require.NoError(t, err, "unlinking %s", p)
	}
	assert.Empty(t, env.users.get(t, user.ID).LinkedProviders())
}
