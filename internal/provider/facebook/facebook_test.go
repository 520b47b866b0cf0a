package facebook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

func newTestAdapter(t *testing.T, h http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(Config{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		RedirectURL:  "https://unify.test/callback",
		Endpoints: Endpoints{
			Graph: srv.URL,
			OAuth: oauth2.Endpoint{
				AuthURL:   srv.URL + "/dialog/oauth",
				TokenURL:  srv.URL + "/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}, srv.Client())
}

func TestExchange(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/access_token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "https://spa.test/cb", r.PostForm.Get("redirect_uri"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fb-token","token_type":"bearer","expires_in":5183944}`))
	}))

	cred, err := a.Exchange(context.Background(), provider.ExchangeRequest{Code: "the-code", RedirectURI: "https://spa.test/cb"})

	require.NoError(t, err)
	assert.Equal(t, "fb-token", cred.AccessToken)
}

func TestExchange_ProviderErrorKeepsStatus(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"This authorization code has been used.","type":"OAuthException","code":100}}`))
	}))

	_, err := a.Exchange(context.Background(), provider.ExchangeRequest{Code: "used"})

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Equal(t, 100, perr.Code)
	assert.Equal(t, "This authorization code has been used.", perr.Message)
}

func TestExchange_ClientIDMismatch(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := a.Exchange(context.Background(), provider.ExchangeRequest{Code: "c", ClientID: "someone-else"})

	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestFetchProfile(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		assert.Equal(t, "fb-token", r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"id":"1001","name":"Ada Lovelace","email":"ada@example.com","picture":{"data":{"url":"https://cdn/ada.jpg"}}}`))
	}))

	p, err := a.FetchProfile(context.Background(), model.Credential{AccessToken: "fb-token"})

	require.NoError(t, err)
	assert.Equal(t, &provider.Profile{ID: "1001", Name: "Ada Lovelace", Email: "ada@example.com", Picture: "https://cdn/ada.jpg"}, p)
}

func TestFetchProfile_ExpiredToken(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Error validating access token: Session has expired","type":"OAuthException","code":190}}`))
	}))

	_, err := a.FetchProfile(context.Background(), model.Credential{AccessToken: "old"})

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.Status)
	assert.Equal(t, 190, perr.Code)
}

func TestListFriends_FollowsPaging(t *testing.T) {
	calls := 0
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/me/friends", r.URL.Path)
		page := r.URL.Query().Get("after")
		base := "http://" + r.Host + "/me/friends?access_token=fb-token&after="

		switch page {
		case "":
			fmt.Fprintf(w, `{"data":[{"id":"1","name":"A"},{"id":"2","name":"B"}],"paging":{"next":%q}}`, base+"p2")
		case "p2":
			fmt.Fprintf(w, `{"data":[{"id":"3","name":"C"},{"id":"4","name":"D"}],"paging":{"next":%q}}`, base+"p3")
		case "p3":
			_, _ = w.Write([]byte(`{"data":[{"id":"5","name":"E"},{"id":"6","name":"F","picture":{"data":{"url":"https://cdn/f.jpg"}}}],"paging":{}}`))
		}
	}))

	friends, err := a.ListFriends(context.Background(), model.Credential{AccessToken: "fb-token"})

	require.NoError(t, err)
	assert.Len(t, friends, 6)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "1", friends[0].ID)
	assert.Equal(t, model.Friend{ID: "6", Name: "F", Picture: "https://cdn/f.jpg"}, friends[5])
}

func TestListMedia_Subject(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/42/posts", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[{"id":"42_1","type":"status","message":"hi","created_time":"2013-01-25T00:11:02+0000"}]}`))
	}))

	media, err := a.ListMedia(context.Background(), model.Credential{AccessToken: "t"}, "42")

	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "hi", media[0].Text)
	assert.Equal(t, int64(1359072662), media[0].CreatedTime)
}

func TestLike(t *testing.T) {
	var methods []string
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1_2/likes", r.URL.Path)
		methods = append(methods, r.Method)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	require.NoError(t, a.Like(context.Background(), model.Credential{AccessToken: "t"}, "1_2", true))
	require.NoError(t, a.Like(context.Background(), model.Credential{AccessToken: "t"}, "1_2", false))
	assert.Equal(t, []string{http.MethodPost, http.MethodDelete}, methods)
}

func TestListFriends_TransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	graph := srv.URL
	srv.Close()

	a := New(Config{ClientID: "app-id", Endpoints: Endpoints{Graph: graph}}, &http.Client{})

	_, err := a.ListFriends(context.Background(), model.Credential{AccessToken: "SECRET-TOKEN-123"})

	require.Error(t, err)
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Transport)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN-123")
	assert.Contains(t, err.Error(), "/me/friends")
}
