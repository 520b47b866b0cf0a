// Package twitter implements the REST v1.1 adapter. Twitter speaks
// OAuth 1.0a: every API call is signed with the consumer secret and the
// user's token secret.
package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dghubble/oauth1"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

var (
	_ provider.Adapter        = (*Adapter)(nil)
	_ provider.RequestTokener = (*Adapter)(nil)
	_ provider.MediaLister    = (*Adapter)(nil)
	_ provider.FriendLister   = (*Adapter)(nil)
	_ provider.Searcher       = (*Adapter)(nil)
	_ provider.Liker          = (*Adapter)(nil)
)

// Config holds the Twitter consumer credentials.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	Endpoints      Endpoints
}

// Adapter talks to the Twitter API.
type Adapter struct {
	api       *provider.API
	oauth     *oauth1.Config
	endpoints Endpoints
}

// New creates the Twitter adapter. A zero Config.Endpoints means
// production.
func New(cfg Config, client *http.Client) *Adapter {
	if cfg.Endpoints.API == "" {
		cfg.Endpoints = DefaultEndpoints()
	}
	api := provider.NewAPI(model.Twitter, client, classify)
	return &Adapter{
		api: api,
		oauth: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    cfg.CallbackURL,
			Endpoint:       cfg.Endpoints.OAuth,
			HTTPClient:     api.HTTPClient(),
		},
		endpoints: cfg.Endpoints,
	}
}

func (a *Adapter) Name() model.Provider { return model.Twitter }

// RequestToken performs step one of the handshake. The caller keeps the
// secret server-side until the user comes back with a verifier.
func (a *Adapter) RequestToken(ctx context.Context) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", classify(err, nil)
	}
	token, secret, err := a.oauth.RequestToken()
	if err != nil {
		return "", "", handshakeError(err)
	}
	return token, secret, nil
}

// Exchange trades the request token and verifier for an access token pair.
func (a *Adapter) Exchange(ctx context.Context, req provider.ExchangeRequest) (model.Credential, error) {
	var fields []apperror.FieldError
	if req.OAuthToken == "" {
		fields = append(fields, apperror.FieldError{Param: "oauth_token", Message: "oauth_token is required"})
	}
	if req.OAuthVerifier == "" {
		fields = append(fields, apperror.FieldError{Param: "oauth_verifier", Message: "oauth_verifier is required"})
	}
	if len(fields) > 0 {
		return model.Credential{}, apperror.Invalid(fields)
	}
	if err := ctx.Err(); err != nil {
		return model.Credential{}, classify(err, nil)
	}

	token, secret, err := a.oauth.AccessToken(req.OAuthToken, req.OAuthTokenSecret, req.OAuthVerifier)
	if err != nil {
		return model.Credential{}, handshakeError(err)
	}
	return model.Credential{AccessToken: token, Secret: secret}, nil
}

// FetchProfile reads account/verify_credentials, which also yields the
// screen name.
func (a *Adapter) FetchProfile(ctx context.Context, cred model.Credential) (*provider.Profile, error) {
	var acc account
	if err := a.api.Get(ctx, a.client(ctx, cred), a.endpoints.verifyCredentialsURL(), &acc); err != nil {
		return nil, err
	}
	if acc.IDStr == "" {
		return nil, provider.InvalidResponse(model.Twitter, "profile", errors.New("twitter: profile has no id_str"))
	}
	return &provider.Profile{
		ID:       acc.IDStr,
		Name:     acc.Name,
		Username: acc.ScreenName,
		Picture:  acc.Picture,
	}, nil
}

// ListMedia returns the most recent page of the timeline.
func (a *Adapter) ListMedia(ctx context.Context, cred model.Credential, subjectID string) ([]model.Media, error) {
	var tweets []tweet
	if err := a.api.Get(ctx, a.client(ctx, cred), a.endpoints.timelineURL(subjectID), &tweets); err != nil {
		return nil, err
	}
	return normalizeTweets(tweets), nil
}

// ListFriends walks friends/list cursors until next_cursor_str is "0".
func (a *Adapter) ListFriends(ctx context.Context, cred model.Credential) ([]model.Friend, error) {
	client := a.client(ctx, cred)
	return provider.Collect(ctx, firstCursor, func(ctx context.Context, cursor string) (provider.Page[model.Friend], error) {
		var page friendsPage
		if err := a.api.Get(ctx, client, a.endpoints.friendsURL(cursor), &page); err != nil {
			return provider.Page[model.Friend]{}, err
		}
		return provider.Page[model.Friend]{
			Items: normalizeFriends(page.Users),
			Next:  nextCursor(page.NextCursorStr),
		}, nil
	})
}

// Search returns one page of recent tweets. The cursor is the max_id of
// the next page.
func (a *Adapter) Search(ctx context.Context, cred model.Credential, query, cursor string) (provider.SearchPage, error) {
	var res searchResult
	if err := a.api.Get(ctx, a.client(ctx, cred), a.endpoints.searchURL(query, cursor), &res); err != nil {
		return provider.SearchPage{}, err
	}
	return provider.SearchPage{
		Items: normalizeTweets(res.Statuses),
		Next:  nextMaxID(res.SearchMetadata.NextResults),
	}, nil
}

// Like favorites or unfavorites a tweet.
func (a *Adapter) Like(ctx context.Context, cred model.Credential, mediaID string, like bool) error {
	form := url.Values{"id": {mediaID}}
	if err := a.api.Send(ctx, a.client(ctx, cred), http.MethodPost, a.endpoints.favoriteURL(like), form, nil); err != nil {
		return fmt.Errorf("twitter: favorite %s: %w", mediaID, err)
	}
	return nil
}

// client returns an HTTP client that signs requests with cred. It sits on
// top of the API's base transport.
func (a *Adapter) client(ctx context.Context, cred model.Credential) *http.Client {
	ctx = context.WithValue(ctx, oauth1.HTTPClient, a.api.HTTPClient())
	return a.oauth.Client(ctx, oauth1.NewToken(cred.AccessToken, cred.Secret))
}
