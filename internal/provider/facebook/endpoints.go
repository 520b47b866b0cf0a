package facebook

import (
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	fboauth "golang.org/x/oauth2/facebook"
)

// Page sizes. Graph accepts up to 5000 for edges like /friends; /posts
// caps at 100.
const (
	friendsPageSize = 5000
	postsPageSize   = 100
)

const (
	profileFields = "id,name,email,picture.type(large)"
	postFields    = "id,type,created_time,message,story,link,permalink_url,full_picture,source,likes.limit(0).summary(true)"
	friendFields  = "id,name,picture"
	pageFields    = "id,name,username,picture"
)

// Endpoints are the Graph API and OAuth URLs. Tests point them at an
// httptest server.
type Endpoints struct {
	Graph string
	OAuth oauth2.Endpoint
}

// DefaultEndpoints returns the production Graph API endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Graph: "https://graph.facebook.com/v19.0",
		OAuth: fboauth.Endpoint,
	}
}

func (e Endpoints) build(path string, token string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)
	return e.Graph + path + "?" + params.Encode()
}

func (e Endpoints) profileURL(token string) string {
	return e.build("/me", token, url.Values{"fields": {profileFields}})
}

// postsURL lists posts of subject ("me" when empty).
func (e Endpoints) postsURL(subject, token string) string {
	if subject == "" {
		subject = "me"
	}
	return e.build("/"+url.PathEscape(subject)+"/posts", token, url.Values{
		"fields": {postFields},
		"limit":  {strconv.Itoa(postsPageSize)},
	})
}

func (e Endpoints) friendsURL(token string) string {
	return e.build("/me/friends", token, url.Values{
		"fields": {friendFields},
		"limit":  {strconv.Itoa(friendsPageSize)},
	})
}

func (e Endpoints) pagesURL(token string) string {
	return e.build("/me/likes", token, url.Values{
		"fields": {pageFields},
		"limit":  {strconv.Itoa(friendsPageSize)},
	})
}

func (e Endpoints) likesURL(objectID, token string) string {
	return e.build("/"+url.PathEscape(objectID)+"/likes", token, nil)
}
