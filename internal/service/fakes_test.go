package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/auth"
	"github.com/sakif/unify/internal/cache"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
	"github.com/sakif/unify/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. It stores copies
// so a test only sees changes the service actually saved.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int
	saves  int
	err    error // returned by every write when set
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func copyUser(u *model.User) *model.User {
	c := *u
	c.Accounts = make(map[model.Provider]*model.ProviderAccount, len(u.Accounts))
	for p, a := range u.Accounts {
		ac := *a
		c.Accounts[p] = &ac
	}
	return &c
}

func (f *fakeUserRepo) emailTaken(email, exceptID string) bool {
	if email == "" {
		return false
	}
	for _, u := range f.users {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.emailTaken(user.Email, "") {
		return repository.ErrEmailTaken
	}
	f.nextID++
	user.ID = "user-" + strconv.Itoa(f.nextID)
	f.users[user.ID] = copyUser(user)
	return nil
}

func (f *fakeUserRepo) Save(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	if f.emailTaken(user.Email, user.ID) {
		return repository.ErrEmailTaken
	}
	f.saves++
	f.users[user.ID] = copyUser(user)
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return copyUser(u), nil
}

func (f *fakeUserRepo) FindByProviderID(_ context.Context, p model.Provider, externalID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if a := u.Account(p); a != nil && a.ID == externalID {
			return copyUser(u), nil
		}
	}
	return nil, apperror.NotFound(string(p)+" account", externalID)
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if email != "" && u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

// get returns the stored copy, failing the test when missing.
func (f *fakeUserRepo) get(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := f.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

// put stores user as-is, assigning an ID when empty.
func (f *fakeUserRepo) put(t *testing.T, user *model.User) *model.User {
	t.Helper()
	require.NoError(t, f.Create(context.Background(), user))
	return user
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*model.Contact
}

var _ repository.ContactRepository = (*fakeContactRepo)(nil)

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[string]*model.Contact)}
}

func copyContact(c *model.Contact) *model.Contact {
	cc := *c
	cc.Accounts = make(map[model.Provider]*model.ContactAccount, len(c.Accounts))
	for p, a := range c.Accounts {
		ac := *a
		cc.Accounts[p] = &ac
	}
	return &cc
}

func (f *fakeContactRepo) Create(_ context.Context, c *model.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = "contact-" + strconv.Itoa(len(f.contacts)+1)
	}
	f.contacts[c.ID] = copyContact(c)
	return nil
}

func (f *fakeContactRepo) GetByID(_ context.Context, userID, id string) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok || c.UserID != userID {
		return nil, apperror.NotFound("contact", id)
	}
	return copyContact(c), nil
}

func (f *fakeContactRepo) ListByUser(_ context.Context, userID string) ([]*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Contact
	for _, c := range f.contacts {
		if c.UserID == userID {
			out = append(out, copyContact(c))
		}
	}
	return out, nil
}

func (f *fakeContactRepo) Save(_ context.Context, c *model.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[c.ID]; !ok {
		return apperror.NotFound("contact", c.ID)
	}
	f.contacts[c.ID] = copyContact(c)
	return nil
}

// =========================================================================
// FAKE PROVIDERS
// =========================================================================

// fakeAdapter implements only provider.Adapter.
type fakeAdapter struct {
	mu          sync.Mutex
	name        model.Provider
	profile     provider.Profile
	cred        model.Credential
	exchangeErr error
	exchanges   []provider.ExchangeRequest
}

func (f *fakeAdapter) Name() model.Provider { return f.name }

func (f *fakeAdapter) Exchange(_ context.Context, req provider.ExchangeRequest) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, req)
	if f.exchangeErr != nil {
		return model.Credential{}, f.exchangeErr
	}
	return f.cred, nil
}

func (f *fakeAdapter) FetchProfile(_ context.Context, _ model.Credential) (*provider.Profile, error) {
	p := f.profile
	return &p, nil
}

func (f *fakeAdapter) exchangeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.exchanges)
}

// fakeFeedAdapter adds the feed capabilities.
type fakeFeedAdapter struct {
	fakeAdapter
	media      []model.Media
	mediaErr   error
	subjects   []string
	friends    []model.Friend
	friendsErr error
	pages      map[string]provider.SearchPage // keyed by cursor
	searchErr  error
	likes      []string
	seenCreds  []model.Credential
}

func (f *fakeFeedAdapter) ListMedia(_ context.Context, cred model.Credential, subjectID string) ([]model.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subjectID)
	f.seenCreds = append(f.seenCreds, cred)
	return f.media, f.mediaErr
}

func (f *fakeFeedAdapter) ListFriends(_ context.Context, _ model.Credential) ([]model.Friend, error) {
	return f.friends, f.friendsErr
}

func (f *fakeFeedAdapter) Search(_ context.Context, _ model.Credential, _, cursor string) (provider.SearchPage, error) {
	if f.searchErr != nil {
		return provider.SearchPage{}, f.searchErr
	}
	return f.pages[cursor], nil
}

func (f *fakeFeedAdapter) Like(_ context.Context, _ model.Credential, mediaID string, like bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if like {
		f.likes = append(f.likes, mediaID)
	}
	return nil
}

// fakeMailAdapter lists mail and refreshes its credential, like Google.
type fakeMailAdapter struct {
	fakeAdapter
	mail      []model.Media
	refreshes int
	mailCred  model.Credential
}

func (f *fakeMailAdapter) ListMail(_ context.Context, cred model.Credential, _ string) ([]model.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mailCred = cred
	return f.mail, nil
}

func (f *fakeMailAdapter) Refresh(_ context.Context, cred model.Credential) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	cred.AccessToken = "fresh"
	return cred, nil
}

// fakeTwitter issues request tokens.
type fakeTwitter struct {
	fakeAdapter
}

func (f *fakeTwitter) RequestToken(context.Context) (string, string, error) {
	return "req-token", "req-secret", nil
}

// =========================================================================
// FAKE NOTIFIER
// =========================================================================

type sentEmail struct {
	kind  string
	user  string
	token string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (f *fakeNotifier) SendSignupEmail(_ context.Context, user *model.User, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{"signup", user.ID, token})
	return nil
}

func (f *fakeNotifier) SendPasswordReset(_ context.Context, user *model.User, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{"reset", user.ID, token})
	return nil
}

func (f *fakeNotifier) emails() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

// =========================================================================
// HELPERS
// =========================================================================

type testEnv struct {
	users    *fakeUserRepo
	contacts *fakeContactRepo
	notifier *fakeNotifier
	cache    cache.Cache
	tokens   *auth.TokenService
	deps     Deps
}

func newTestEnv(t *testing.T, adapters ...provider.Adapter) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-0123456789")
	require.NoError(t, err)

	env := &testEnv{
		users:    newFakeUserRepo(),
		contacts: newFakeContactRepo(),
		notifier: &fakeNotifier{},
		cache:    cache.NewMemory(0),
		tokens:   tokens,
	}
	env.deps = Deps{
		Users:     env.users,
		Contacts:  env.contacts,
		Adapters:  provider.NewRegistry(adapters...),
		Tokens:    tokens,
		Passwords: auth.NewPasswordServiceForTest(bcrypt.MinCost),
		Notifier:  env.notifier,
		Cache:     env.cache,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return env
}

// sessionFor signs a session token for userID.
func (e *testEnv) sessionFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.tokens.Generate(userID)
	require.NoError(t, err)
	return tok
}

func linkedAccount(id string) *model.ProviderAccount {
	return &model.ProviderAccount{
		ID:         id,
		Credential: model.Credential{AccessToken: "stored-" + id},
		Valid:      true,
	}
}
