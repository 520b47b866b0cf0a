package facebook

import (
	"time"

	"github.com/sakif/unify/internal/model"
)

// timeLayout is the Graph API timestamp format, e.g. 2013-01-25T00:11:02+0000.
const timeLayout = "2006-01-02T15:04:05-0700"

type picture struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

type user struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Picture picture `json:"picture"`
}

type paging struct {
	Next string `json:"next"`
}

type post struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	CreatedTime  string `json:"created_time"`
	Message      string `json:"message"`
	Story        string `json:"story"`
	Link         string `json:"link"`
	PermalinkURL string `json:"permalink_url"`
	FullPicture  string `json:"full_picture"`
	Source       string `json:"source"`
	Likes        struct {
		Summary struct {
			TotalCount int   `json:"total_count"`
			HasLiked   *bool `json:"has_liked"`
		} `json:"summary"`
	} `json:"likes"`
}

type postsPage struct {
	Data   []post `json:"data"`
	Paging paging `json:"paging"`
}

type friend struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Picture  picture `json:"picture"`
}

type friendsPage struct {
	Data   []friend `json:"data"`
	Paging paging   `json:"paging"`
}

// parseTime converts a Graph timestamp to unix seconds, 0 when unparsable.
func parseTime(s string) int64 {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// normalizePost maps a post onto the canonical record. Photos and videos
// carry a media URL; every other post type is a text status.
func normalizePost(p post) model.Media {
	m := model.Media{
		Provider:     model.Facebook,
		ID:           p.ID,
		Type:         model.MediaText,
		CreatedTime:  parseTime(p.CreatedTime),
		Link:         p.PermalinkURL,
		Likes:        p.Likes.Summary.TotalCount,
		Text:         p.Message,
		UserHasLiked: p.Likes.Summary.HasLiked,
	}
	if m.Link == "" {
		m.Link = p.Link
	}
	if m.Text == "" {
		m.Text = p.Story
	}

	switch p.Type {
	case "photo":
		m.Type = model.MediaImage
		m.MediaURL = p.FullPicture
	case "video":
		m.Type = model.MediaVideo
		m.MediaURL = p.Source
		if m.MediaURL == "" {
			m.MediaURL = p.FullPicture
		}
	}
	return m
}

func normalizePosts(posts []post) []model.Media {
	out := make([]model.Media, 0, len(posts))
	for _, p := range posts {
		out = append(out, normalizePost(p))
	}
	return out
}

func normalizeFriends(friends []friend) []model.Friend {
	out := make([]model.Friend, 0, len(friends))
	for _, f := range friends {
		out = append(out, model.Friend{
			ID:       f.ID,
			Name:     f.Name,
			Username: f.Username,
			Picture:  f.Picture.Data.URL,
		})
	}
	return out
}
