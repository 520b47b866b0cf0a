package twitter

import (
	"net/url"
	"strings"
	"time"

	"github.com/sakif/unify/internal/model"
)

// account is both the verify_credentials reply and a friends/list entry.
type account struct {
	IDStr      string `json:"id_str"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
	Picture    string `json:"profile_image_url_https"`
}

type friendsPage struct {
	Users         []account `json:"users"`
	NextCursorStr string    `json:"next_cursor_str"`
}

type variant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type tweetMedia struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	VideoInfo     struct {
		Variants []variant `json:"variants"`
	} `json:"video_info"`
}

type tweet struct {
	IDStr         string `json:"id_str"`
	CreatedAt     string `json:"created_at"`
	Text          string `json:"text"`
	FullText      string `json:"full_text"`
	FavoriteCount int    `json:"favorite_count"`
	Favorited     *bool  `json:"favorited"`
	User          struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	ExtendedEntities *struct {
		Media []tweetMedia `json:"media"`
	} `json:"extended_entities"`
	RetweetedStatus *tweet `json:"retweeted_status"`
}

type searchResult struct {
	Statuses       []tweet `json:"statuses"`
	SearchMetadata struct {
		NextResults string `json:"next_results"`
	} `json:"search_metadata"`
}

// parseTime converts created_at ("Wed Aug 27 13:08:45 +0000 2008") to unix
// seconds, 0 when unparsable.
func parseTime(s string) int64 {
	t, err := time.Parse(time.RubyDate, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// body returns the untruncated text of t.
func (t *tweet) body() string {
	if t.FullText != "" {
		return t.FullText
	}
	return t.Text
}

// normalizeTweet maps a tweet onto the canonical record. A retweet takes
// its text, media and like count from the original tweet, since the
// wrapper's own text may be truncated.
func normalizeTweet(t tweet) model.Media {
	src := &t
	text := t.body()
	if rt := t.RetweetedStatus; rt != nil {
		src = rt
		text = "RT @" + rt.User.ScreenName + ": " + rt.body()
	}

	m := model.Media{
		Provider:     model.Twitter,
		ID:           t.IDStr,
		Type:         model.MediaText,
		CreatedTime:  parseTime(t.CreatedAt),
		Link:         statusLink(t.User.ScreenName, t.IDStr),
		Likes:        src.FavoriteCount,
		Text:         text,
		UserHasLiked: t.Favorited,
	}

	if src.ExtendedEntities == nil || len(src.ExtendedEntities.Media) == 0 {
		return m
	}
	media := src.ExtendedEntities.Media[0]
	switch media.Type {
	case "photo":
		m.Type = model.MediaImage
		m.MediaURL = media.MediaURLHTTPS
	case "video", "animated_gif":
		m.Type = model.MediaVideo
		m.MediaURL = bestMP4(media.VideoInfo.Variants)
	}
	return m
}

func normalizeTweets(tweets []tweet) []model.Media {
	out := make([]model.Media, 0, len(tweets))
	for _, t := range tweets {
		out = append(out, normalizeTweet(t))
	}
	return out
}

// bestMP4 picks the highest-bitrate video/mp4 variant. HLS playlists are
// skipped.
func bestMP4(variants []variant) string {
	best, bitrate := "", -1
	for _, v := range variants {
		if v.ContentType != "video/mp4" {
			continue
		}
		if v.Bitrate > bitrate {
			best, bitrate = v.URL, v.Bitrate
		}
	}
	return best
}

func statusLink(screenName, id string) string {
	if screenName == "" || id == "" {
		return ""
	}
	return "https://twitter.com/" + screenName + "/status/" + id
}

func normalizeFriends(users []account) []model.Friend {
	out := make([]model.Friend, 0, len(users))
	for _, u := range users {
		out = append(out, model.Friend{
			ID:       u.IDStr,
			Name:     u.Name,
			Username: u.ScreenName,
			Picture:  u.Picture,
		})
	}
	return out
}

// nextCursor maps Twitter's "0" end sentinel to "".
func nextCursor(s string) string {
	if s == endCursor {
		return ""
	}
	return s
}

// nextMaxID extracts max_id from search_metadata.next_results
// ("?max_id=123&q=go&include_entities=1").
func nextMaxID(nextResults string) string {
	if nextResults == "" {
		return ""
	}
	q, err := url.ParseQuery(strings.TrimPrefix(nextResults, "?"))
	if err != nil {
		return ""
	}
	return q.Get("max_id")
}
