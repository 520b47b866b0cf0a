package model

import "fmt"

// Provider names an external OAuth identity provider a user can link.
type Provider string

const (
	Facebook  Provider = "facebook"
	Twitter   Provider = "twitter"
	Instagram Provider = "instagram"
	Google    Provider = "google"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{Facebook, Twitter, Instagram, Google}

// ParseProvider converts a path or query value into a Provider.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("model: unknown provider %q", s)
}

// ExposesEmail reports whether the provider's public profile carries an email.
// Twitter and Instagram never return one.
func (p Provider) ExposesEmail() bool {
	return p == Facebook || p == Google
}

// Title returns the provider's display name, e.g. "Facebook".
func (p Provider) Title() string {
	switch p {
	case Facebook:
		return "Facebook"
	case Twitter:
		return "Twitter"
	case Instagram:
		return "Instagram"
	case Google:
		return "Google"
	}
	return string(p)
}

// Credential is the opaque access credential stored for a linked account.
//
// The shape depends on the provider's protocol:
//   - OAuth2 (Facebook, Instagram): AccessToken only
//   - OAuth2 with offline access (Google): AccessToken + RefreshToken
//   - OAuth1 (Twitter): AccessToken + Secret
type Credential struct {
	AccessToken  string
	Secret       string
	RefreshToken string
}

// Empty reports whether no usable credential is stored.
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}
