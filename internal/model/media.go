package model

import "sort"

// MediaType is the canonical content kind of a Media record.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaText  MediaType = "text"
)

// Media is the provider-agnostic record every photo, video, status, tweet
// and email is normalized into. It is built per request and never stored.
type Media struct {
	Provider     Provider  `json:"provider"`
	ID           string    `json:"id"`
	Type         MediaType `json:"type"`
	CreatedTime  int64     `json:"created_time"`
	Link         string    `json:"link"`
	Likes        int       `json:"likes"`
	MediaURL     string    `json:"media_url,omitempty"`
	Text         string    `json:"text"`
	UserHasLiked *bool     `json:"user_has_liked,omitempty"`

	// Email-only fields.
	Subject string `json:"subject,omitempty"`
	From    string `json:"from,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Friend is the canonical friend/contact-candidate record.
type Friend struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Picture  string `json:"picture,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// SortByRecency orders media most recent first. Ties keep input order.
func SortByRecency(items []Media) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedTime > items[j].CreatedTime
	})
}
