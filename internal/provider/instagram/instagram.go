// Package instagram implements the Instagram API adapter.
package instagram

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
	_ provider.Searcher     = (*Adapter)(nil)
	_ provider.Liker        = (*Adapter)(nil)
)

// Config holds the Instagram client credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoints    Endpoints
}

// Adapter talks to the Instagram API.
type Adapter struct {
	api       *provider.API
	oauth     *provider.OAuth2
	endpoints Endpoints
}

// New creates the Instagram adapter. A zero Config.Endpoints means
// production.
func New(cfg Config, client *http.Client) *Adapter {
	if cfg.Endpoints.API == "" {
		cfg.Endpoints = DefaultEndpoints()
	}
	api := provider.NewAPI(model.Instagram, client, classify)
	return &Adapter{
		api: api,
		oauth: provider.NewOAuth2(oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoints.OAuth,
			Scopes:       []string{"basic", "public_content", "follower_list", "likes"},
		}, api),
		endpoints: cfg.Endpoints,
	}
}

func (a *Adapter) Name() model.Provider { return model.Instagram }

// Exchange trades an authorization code for an access token.
func (a *Adapter) Exchange(ctx context.Context, req provider.ExchangeRequest) (model.Credential, error) {
	tok, err := a.oauth.Exchange(ctx, req)
	if err != nil {
		return model.Credential{}, err
	}
	return model.Credential{AccessToken: tok.AccessToken}, nil
}

// FetchProfile reads /users/self. Instagram never returns an email.
func (a *Adapter) FetchProfile(ctx context.Context, cred model.Credential) (*provider.Profile, error) {
	var resp profileResponse
	if err := a.api.Get(ctx, nil, a.endpoints.profileURL(cred.AccessToken), &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, provider.InvalidResponse(model.Instagram, "profile", errors.New("instagram: profile has no id"))
	}
	name := resp.Data.FullName
	if name == "" {
		name = resp.Data.Username
	}
	return &provider.Profile{
		ID:       resp.Data.ID,
		Name:     name,
		Username: resp.Data.Username,
		Picture:  resp.Data.ProfilePicture,
	}, nil
}

// ListMedia returns the most recent page of a user's media.
func (a *Adapter) ListMedia(ctx context.Context, cred model.Credential, subjectID string) ([]model.Media, error) {
	var page mediaPage
	if err := a.api.Get(ctx, nil, a.endpoints.recentMediaURL(subjectID, cred.AccessToken), &page); err != nil {
		return nil, err
	}
	return normalizeMediaList(page.Data), nil
}

// ListFriends follows pagination.next_url through the follows list.
func (a *Adapter) ListFriends(ctx context.Context, cred model.Credential) ([]model.Friend, error) {
	return provider.Collect(ctx, a.endpoints.followsURL(cred.AccessToken), func(ctx context.Context, next string) (provider.Page[model.Friend], error) {
		var page usersPage
		if err := a.api.Get(ctx, nil, next, &page); err != nil {
			return provider.Page[model.Friend]{}, err
		}
		return provider.Page[model.Friend]{
			Items: normalizeUsers(page.Data),
			Next:  page.Pagination.NextURL,
		}, nil
	})
}

// Search lists recent media for the hashtag derived from query. The
// cursor is Instagram's max_tag_id.
func (a *Adapter) Search(ctx context.Context, cred model.Credential, query, cursor string) (provider.SearchPage, error) {
	tag := searchTag(query)
	if tag == "" {
		return provider.SearchPage{Items: []model.Media{}}, nil
	}
	var page mediaPage
	if err := a.api.Get(ctx, nil, a.endpoints.tagMediaURL(tag, cursor, cred.AccessToken), &page); err != nil {
		return provider.SearchPage{}, err
	}
	return provider.SearchPage{
		Items: normalizeMediaList(page.Data),
		Next:  page.Pagination.NextMaxTagID,
	}, nil
}

// Like likes or unlikes a media item.
func (a *Adapter) Like(ctx context.Context, cred model.Credential, mediaID string, like bool) error {
	method := http.MethodDelete
	if like {
		method = http.MethodPost
	}
	if err := a.api.Send(ctx, nil, method, a.endpoints.likesURL(mediaID, cred.AccessToken), nil, nil); err != nil {
		return fmt.Errorf("instagram: like %s: %w", mediaID, err)
	}
	return nil
}
