// Package facebook implements the Graph API adapter.
package facebook

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

var (
	_ provider.Adapter      = (*Adapter)(nil)
	_ provider.MediaLister  = (*Adapter)(nil)
	_ provider.FriendLister = (*Adapter)(nil)
	_ provider.PageLister   = (*Adapter)(nil)
	_ provider.Liker        = (*Adapter)(nil)
)

// Config holds the Facebook application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoints    Endpoints
}

// Adapter talks to the Graph API.
type Adapter struct {
	api       *provider.API
	oauth     *provider.OAuth2
	endpoints Endpoints
}

// New creates the Facebook adapter. A zero Config.Endpoints means
// production.
func New(cfg Config, client *http.Client) *Adapter {
	if cfg.Endpoints.Graph == "" {
		cfg.Endpoints = DefaultEndpoints()
	}
	api := provider.NewAPI(model.Facebook, client, classify)
	return &Adapter{
		api: api,
		oauth: provider.NewOAuth2(oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoints.OAuth,
			Scopes:       []string{"email", "public_profile", "user_friends", "user_posts", "user_likes"},
		}, api),
		endpoints: cfg.Endpoints,
	}
}

func (a *Adapter) Name() model.Provider { return model.Facebook }

// Exchange trades an authorization code for a user access token.
func (a *Adapter) Exchange(ctx context.Context, req provider.ExchangeRequest) (model.Credential, error) {
	tok, err := a.oauth.Exchange(ctx, req)
	if err != nil {
		return model.Credential{}, err
	}
	return model.Credential{AccessToken: tok.AccessToken}, nil
}

// FetchProfile reads /me.
func (a *Adapter) FetchProfile(ctx context.Context, cred model.Credential) (*provider.Profile, error) {
	var u user
	if err := a.api.Get(ctx, nil, a.endpoints.profileURL(cred.AccessToken), &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, provider.InvalidResponse(model.Facebook, "profile", errors.New("facebook: profile has no id"))
	}
	return &provider.Profile{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Picture: u.Picture.Data.URL,
	}, nil
}

// ListMedia returns the most recent page of posts.
func (a *Adapter) ListMedia(ctx context.Context, cred model.Credential, subjectID string) ([]model.Media, error) {
	var page postsPage
	if err := a.api.Get(ctx, nil, a.endpoints.postsURL(subjectID, cred.AccessToken), &page); err != nil {
		return nil, err
	}
	return normalizePosts(page.Data), nil
}

// ListFriends follows paging.next until Graph stops returning one.
func (a *Adapter) ListFriends(ctx context.Context, cred model.Credential) ([]model.Friend, error) {
	return a.collectFriends(ctx, a.endpoints.friendsURL(cred.AccessToken))
}

// ListPages lists the pages the user likes.
func (a *Adapter) ListPages(ctx context.Context, cred model.Credential) ([]model.Friend, error) {
	return a.collectFriends(ctx, a.endpoints.pagesURL(cred.AccessToken))
}

// collectFriends pages through a friend-shaped edge. Graph's paging.next
// is a complete URL, so it is the cursor.
func (a *Adapter) collectFriends(ctx context.Context, first string) ([]model.Friend, error) {
	return provider.Collect(ctx, first, func(ctx context.Context, next string) (provider.Page[model.Friend], error) {
		var page friendsPage
		if err := a.api.Get(ctx, nil, next, &page); err != nil {
			return provider.Page[model.Friend]{}, err
		}
		return provider.Page[model.Friend]{
			Items: normalizeFriends(page.Data),
			Next:  page.Paging.Next,
		}, nil
	})
}

// Like likes or unlikes a post.
func (a *Adapter) Like(ctx context.Context, cred model.Credential, mediaID string, like bool) error {
	method := http.MethodDelete
	if like {
		method = http.MethodPost
	}
	if err := a.api.Send(ctx, nil, method, a.endpoints.likesURL(mediaID, cred.AccessToken), nil, nil); err != nil {
		return fmt.Errorf("facebook: like %s: %w", mediaID, err)
	}
	return nil
}
