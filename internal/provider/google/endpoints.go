package google

import (
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const (
	// connectionsPageSize is the People API maximum.
	connectionsPageSize = 1000
	// mailPageSize bounds one Gmail listing; every message costs a
	// follow-up fetch.
	mailPageSize = 100
	// mailFetchConcurrency caps parallel message fetches per listing.
	mailFetchConcurrency = 8
)

const personFields = "names,emailAddresses,photos"

// Scopes requested on the consent screen.
var Scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/contacts.readonly",
	"https://www.googleapis.com/auth/gmail.readonly",
}

// Endpoints are the Google API bases used by the adapter.
type Endpoints struct {
	UserInfo string
	People   string
	Gmail    string
	OAuth    oauth2.Endpoint
}

// DefaultEndpoints returns the production Google endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		UserInfo: "https://www.googleapis.com/oauth2/v2/userinfo",
		People:   "https://people.googleapis.com/v1",
		Gmail:    "https://gmail.googleapis.com/gmail/v1",
		OAuth:    googleoauth.Endpoint,
	}
}

func (e Endpoints) connectionsURL(pageToken string) string {
	params := url.Values{
		"personFields": {personFields},
		"pageSize":     {strconv.Itoa(connectionsPageSize)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	return e.People + "/people/me/connections?" + params.Encode()
}

func (e Endpoints) messagesURL(query, pageToken string) string {
	params := url.Values{"maxResults": {strconv.Itoa(mailPageSize)}}
	if query != "" {
		params.Set("q", query)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	return e.Gmail + "/users/me/messages?" + params.Encode()
}

func (e Endpoints) messageURL(id string) string {
	return e.Gmail + "/users/me/messages/" + url.PathEscape(id) + "?format=full"
}

func messageLink(id string) string {
	return "https://mail.google.com/mail/u/0/#inbox/" + id
}
