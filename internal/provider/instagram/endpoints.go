package instagram

import (
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	igoauth "golang.org/x/oauth2/instagram"
)

// pageSize is the largest page Instagram actually returns.
const pageSize = 100

// self addresses the token owner in user paths.
const self = "self"

// Endpoints are the API base and OAuth URLs.
type Endpoints struct {
	API   string
	OAuth oauth2.Endpoint
}

// DefaultEndpoints returns the production Instagram endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		API:   "https://api.instagram.com/v1",
		OAuth: igoauth.Endpoint,
	}
}

func (e Endpoints) build(path, token string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)
	return e.API + path + "?" + params.Encode()
}

func (e Endpoints) profileURL(token string) string {
	return e.build("/users/"+self, token, nil)
}

func (e Endpoints) recentMediaURL(userID, token string) string {
	if userID == "" {
		userID = self
	}
	return e.build("/users/"+url.PathEscape(userID)+"/media/recent", token, url.Values{
		"count": {strconv.Itoa(pageSize)},
	})
}

func (e Endpoints) followsURL(token string) string {
	return e.build("/users/"+self+"/follows", token, url.Values{
		"count": {strconv.Itoa(pageSize)},
	})
}

func (e Endpoints) tagMediaURL(tag, maxTagID, token string) string {
	params := url.Values{"count": {strconv.Itoa(pageSize)}}
	if maxTagID != "" {
		params.Set("max_tag_id", maxTagID)
	}
	return e.build("/tags/"+url.PathEscape(tag)+"/media/recent", token, params)
}

func (e Endpoints) likesURL(mediaID, token string) string {
	return e.build("/media/"+url.PathEscape(mediaID)+"/likes", token, nil)
}
