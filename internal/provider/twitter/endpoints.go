package twitter

import (
	"net/url"
	"strconv"

	"github.com/dghubble/oauth1"
)

// Maximum page sizes accepted by the v1.1 API.
const (
	timelinePageSize = 200
	friendsPageSize  = 200
	searchPageSize   = 100
)

// firstCursor starts a cursored listing; "0" ends one.
const (
	firstCursor = "-1"
	endCursor   = "0"
)

// Endpoints are the REST v1.1 base and the OAuth 1.0a handshake URLs.
type Endpoints struct {
	API   string
	OAuth oauth1.Endpoint
}

// DefaultEndpoints returns the production Twitter endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		API: "https://api.twitter.com/1.1",
		OAuth: oauth1.Endpoint{
			RequestTokenURL: "https://api.twitter.com/oauth/request_token",
			AuthorizeURL:    "https://api.twitter.com/oauth/authenticate",
			AccessTokenURL:  "https://api.twitter.com/oauth/access_token",
		},
	}
}

func (e Endpoints) verifyCredentialsURL() string {
	return e.API + "/account/verify_credentials.json?" + url.Values{
		"skip_status":      {"true"},
		"include_entities": {"false"},
	}.Encode()
}

// timelineURL lists tweets of userID, or of the authenticating user when
// userID is empty.
func (e Endpoints) timelineURL(userID string) string {
	params := url.Values{
		"count":      {strconv.Itoa(timelinePageSize)},
		"tweet_mode": {"extended"},
	}
	if userID != "" {
		params.Set("user_id", userID)
	}
	return e.API + "/statuses/user_timeline.json?" + params.Encode()
}

func (e Endpoints) friendsURL(cursor string) string {
	return e.API + "/friends/list.json?" + url.Values{
		"count":                 {strconv.Itoa(friendsPageSize)},
		"cursor":                {cursor},
		"skip_status":           {"true"},
		"include_user_entities": {"false"},
	}.Encode()
}

// searchURL searches recent tweets. maxID continues an earlier search.
func (e Endpoints) searchURL(query, maxID string) string {
	params := url.Values{
		"q":           {query},
		"count":       {strconv.Itoa(searchPageSize)},
		"result_type": {"recent"},
		"tweet_mode":  {"extended"},
	}
	if maxID != "" {
		params.Set("max_id", maxID)
	}
	return e.API + "/search/tweets.json?" + params.Encode()
}

func (e Endpoints) favoriteURL(like bool) string {
	if like {
		return e.API + "/favorites/create.json"
	}
	return e.API + "/favorites/destroy.json"
}
