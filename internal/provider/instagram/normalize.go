package instagram

import (
	"strconv"
	"strings"

	"github.com/sakif/unify/internal/model"
)

type user struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	ProfilePicture string `json:"profile_picture"`
}

type profileResponse struct {
	Data user `json:"data"`
}

type pagination struct {
	NextURL      string `json:"next_url"`
	NextMaxTagID string `json:"next_max_tag_id"`
}

type resolution struct {
	URL string `json:"url"`
}

type media struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	CreatedTime string `json:"created_time"`
	Link        string `json:"link"`
	Likes       struct {
		Count int `json:"count"`
	} `json:"likes"`
	Caption *struct {
		Text string `json:"text"`
	} `json:"caption"`
	UserHasLiked *bool `json:"user_has_liked"`
	Images       struct {
		StandardResolution resolution `json:"standard_resolution"`
	} `json:"images"`
	Videos *struct {
		StandardResolution resolution `json:"standard_resolution"`
	} `json:"videos"`
}

type mediaPage struct {
	Data       []media    `json:"data"`
	Pagination pagination `json:"pagination"`
}

type usersPage struct {
	Data       []user     `json:"data"`
	Pagination pagination `json:"pagination"`
}

// parseTime converts a unix-seconds string to an integer, 0 when
// unparsable.
func parseTime(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// normalizeMedia maps an Instagram post onto the canonical record. Videos
// use the standard resolution stream; everything else is an image.
func normalizeMedia(m media) model.Media {
	out := model.Media{
		Provider:     model.Instagram,
		ID:           m.ID,
		Type:         model.MediaImage,
		CreatedTime:  parseTime(m.CreatedTime),
		Link:         m.Link,
		Likes:        m.Likes.Count,
		MediaURL:     m.Images.StandardResolution.URL,
		UserHasLiked: m.UserHasLiked,
	}
	if m.Caption != nil {
		out.Text = m.Caption.Text
	}
	if m.Type == "video" && m.Videos != nil {
		out.Type = model.MediaVideo
		out.MediaURL = m.Videos.StandardResolution.URL
	}
	return out
}

func normalizeMediaList(items []media) []model.Media {
	out := make([]model.Media, 0, len(items))
	for _, m := range items {
		out = append(out, normalizeMedia(m))
	}
	return out
}

func normalizeUsers(users []user) []model.Friend {
	out := make([]model.Friend, 0, len(users))
	for _, u := range users {
		name := u.FullName
		if name == "" {
			name = u.Username
		}
		out = append(out, model.Friend{
			ID:       u.ID,
			Name:     name,
			Username: u.Username,
			Picture:  u.ProfilePicture,
		})
	}
	return out
}

// searchTag turns a free-text query into a hashtag: "#Go Lang" -> "golang".
func searchTag(query string) string {
	tag := strings.TrimPrefix(strings.TrimSpace(query), "#")
	return strings.ToLower(strings.Join(strings.Fields(tag), ""))
}
