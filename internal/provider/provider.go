// Package provider defines the adapter contract every social provider
// implements and the plumbing they share: the classified HTTP client, the
// OAuth 2.0 exchange helper and the paginated collector.
//
// An adapter always implements Adapter (token exchange and profile fetch).
// Feed capabilities are optional interfaces; the fan-out only calls a
// provider for the capabilities it implements.
package provider

import (
	"context"
	"fmt"

	"github.com/sakif/unify/internal/model"
)

// Profile is the external identity returned by a provider's "me" endpoint.
type Profile struct {
	ID       string
	Name     string
	Email    string
	Username string
	Picture  string
}

// ExchangeRequest carries what the client got back from the provider's
// consent screen. OAuth 2.0 providers use Code; Twitter uses the OAuth 1.0a
// token and verifier plus the request secret stored by RequestToken.
type ExchangeRequest struct {
	Code             string
	ClientID         string
	RedirectURI      string
	OAuthToken       string
	OAuthVerifier    string
	OAuthTokenSecret string
}

// Adapter is the minimal capability set the account linker needs.
type Adapter interface {
	Name() model.Provider
	Exchange(ctx context.Context, req ExchangeRequest) (model.Credential, error)
	FetchProfile(ctx context.Context, cred model.Credential) (*Profile, error)
}

// MediaLister lists recent media posted by subjectID, or by the credential's
// owner when subjectID is empty.
type MediaLister interface {
	ListMedia(ctx context.Context, cred model.Credential, subjectID string) ([]model.Media, error)
}

// FriendLister lists every friend/follow of the credential's owner.
type FriendLister interface {
	ListFriends(ctx context.Context, cred model.Credential) ([]model.Friend, error)
}

// PageLister lists the pages the credential's owner likes.
type PageLister interface {
	ListPages(ctx context.Context, cred model.Credential) ([]model.Friend, error)
}

// SearchPage is one page of search results. Next is empty on the last page.
type SearchPage struct {
	Items []model.Media
	Next  string
}

// Searcher runs a content search. cursor is empty for the first page.
type Searcher interface {
	Search(ctx context.Context, cred model.Credential, query, cursor string) (SearchPage, error)
}

// Liker likes or unlikes a media item on behalf of the credential's owner.
type Liker interface {
	Like(ctx context.Context, cred model.Credential, mediaID string, like bool) error
}

// MailLister lists mailbox messages matching query.
type MailLister interface {
	ListMail(ctx context.Context, cred model.Credential, query string) ([]model.Media, error)
}

// Refresher mints a fresh access token from a stored refresh token. The
// refresh token in the returned credential is the one passed in.
type Refresher interface {
	Refresh(ctx context.Context, cred model.Credential) (model.Credential, error)
}

// RequestTokener issues the temporary credential of an OAuth 1.0a handshake.
type RequestTokener interface {
	RequestToken(ctx context.Context) (token, secret string, err error)
}

// Registry maps provider names to adapters.
type Registry struct {
	adapters map[model.Provider]Adapter
}

// NewRegistry builds a Registry from adapters. Registering two adapters for
// the same provider keeps the last one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Name().
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Get returns the adapter for p.
func (r *Registry) Get(p model.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("provider: %s is not configured", p)
	}
	return a, nil
}
