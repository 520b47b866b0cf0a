// Package google implements the Google adapter: profile via the userinfo
// endpoint, contacts via the People API and mail via Gmail.
//
// Google access tokens live for an hour, so callers refresh the stored
// credential (Refresh) before every call.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

var (
	_ provider.Adapter      = (*Adapter)(nil)
	_ provider.Refresher    = (*Adapter)(nil)
	_ provider.MediaLister  = (*Adapter)(nil)
	_ provider.FriendLister = (*Adapter)(nil)
	_ provider.Searcher     = (*Adapter)(nil)
	_ provider.MailLister   = (*Adapter)(nil)
)

// Config holds the Google OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoints    Endpoints
}

// Adapter talks to the Google APIs.
type Adapter struct {
	api       *provider.API
	oauth     *provider.OAuth2
	endpoints Endpoints
}

// New creates the Google adapter. A zero Config.Endpoints means
// production.
func New(cfg Config, client *http.Client) *Adapter {
	if cfg.Endpoints.UserInfo == "" {
		cfg.Endpoints = DefaultEndpoints()
	}
	api := provider.NewAPI(model.Google, client, classify)
	return &Adapter{
		api: api,
		oauth: provider.NewOAuth2(oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoints.OAuth,
			Scopes:       Scopes,
		}, api),
		endpoints: cfg.Endpoints,
	}
}

func (a *Adapter) Name() model.Provider { return model.Google }

// Exchange trades the code for an access token and, when the consent
// screen granted offline access, a refresh token.
func (a *Adapter) Exchange(ctx context.Context, req provider.ExchangeRequest) (model.Credential, error) {
	tok, err := a.oauth.Exchange(ctx, req)
	if err != nil {
		return model.Credential{}, err
	}
	return model.Credential{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

// Refresh mints a new access token. The stored refresh token is kept as is.
func (a *Adapter) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	tok, err := a.oauth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return model.Credential{}, err
	}
	return model.Credential{AccessToken: tok.AccessToken, RefreshToken: cred.RefreshToken}, nil
}

// FetchProfile reads the userinfo endpoint.
func (a *Adapter) FetchProfile(ctx context.Context, cred model.Credential) (*provider.Profile, error) {
	var u userInfo
	if err := a.api.Get(ctx, a.client(ctx, cred), a.endpoints.UserInfo, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, provider.InvalidResponse(model.Google, "profile", errors.New("google: userinfo has no id"))
	}
	return &provider.Profile{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Picture: u.Picture,
	}, nil
}

// ListFriends pages through the user's contacts and sorts them by name.
func (a *Adapter) ListFriends(ctx context.Context, cred model.Credential) ([]model.Friend, error) {
	client := a.client(ctx, cred)
	friends, err := provider.Collect(ctx, "", func(ctx context.Context, pageToken string) (provider.Page[model.Friend], error) {
		var page connectionsPage
		if err := a.api.Get(ctx, client, a.endpoints.connectionsURL(pageToken), &page); err != nil {
			return provider.Page[model.Friend]{}, err
		}
		return provider.Page[model.Friend]{
			Items: normalizePeople(page.Connections),
			Next:  page.NextPageToken,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	sortByName(friends)
	return friends, nil
}

// ListMedia lists recent inbox mail. For a contact, subjectID is the
// contact's address and only mail from it is listed.
func (a *Adapter) ListMedia(ctx context.Context, cred model.Credential, subjectID string) ([]model.Media, error) {
	query := ""
	if subjectID != "" {
		query = "from:" + subjectID
	}
	return a.ListMail(ctx, cred, query)
}

// ListMail lists the first page of messages matching query (Gmail search
// syntax; empty lists the whole mailbox).
func (a *Adapter) ListMail(ctx context.Context, cred model.Credential, query string) ([]model.Media, error) {
	page, err := a.Search(ctx, cred, query, "")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Search lists one page of messages matching query and fetches each one.
// The cursor is Gmail's pageToken.
func (a *Adapter) Search(ctx context.Context, cred model.Credential, query, cursor string) (provider.SearchPage, error) {
	client := a.client(ctx, cred)

	var list messageList
	if err := a.api.Get(ctx, client, a.endpoints.messagesURL(query, cursor), &list); err != nil {
		return provider.SearchPage{}, err
	}

	items := make([]model.Media, len(list.Messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mailFetchConcurrency)
	for i, ref := range list.Messages {
		g.Go(func() error {
			var m message
			if err := a.api.Get(gctx, client, a.endpoints.messageURL(ref.ID), &m); err != nil {
				return fmt.Errorf("google: fetching message %s: %w", ref.ID, err)
			}
			items[i] = normalizeMessage(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return provider.SearchPage{}, err
	}

	return provider.SearchPage{Items: items, Next: list.NextPageToken}, nil
}

// client returns an HTTP client sending cred's access token as a bearer
// token over the API's base transport.
func (a *Adapter) client(ctx context.Context, cred model.Credential) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.api.HTTPClient())
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken}))
}
