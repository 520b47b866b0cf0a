package google

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/unify/internal/model"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"rfc 2822", "Thu, 4 Jan 2018 17:53:36 +0000", time.Date(2018, time.January, 4, 17, 53, 36, 0, time.UTC).Unix()},
		{"offset", "Mon, 02 Jan 2006 15:04:05 -0700", time.Date(2006, time.January, 2, 22, 4, 5, 0, time.UTC).Unix()},
		{"zone comment", "Thu, 4 Jan 2018 17:53:36 +0000 (UTC)", time.Date(2018, time.January, 4, 17, 53, 36, 0, time.UTC).Unix()},
		{"garbage", "not a date at all", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDate(tt.in))
		})
	}
}

func TestFindBody_DepthFirstSkipsAttachments(t *testing.T) {
	root := part{
		MimeType: "multipart/mixed",
		Parts: []part{
			{MimeType: "text/plain", Filename: "notes.txt", Body: partBody{Data: b64("attachment text")}},
			{
				MimeType: "multipart/alternative",
				Parts: []part{
					{MimeType: "text/plain", Body: partBody{Data: b64("inline plain")}},
					{MimeType: "text/html", Body: partBody{Data: b64("<p>inline html</p>")}},
				},
			},
		},
	}

	assert.Equal(t, "inline plain", findBody(&root, "text/plain"))
	assert.Equal(t, "<p>inline html</p>", findBody(&root, "text/html"))
	assert.Equal(t, "", findBody(&root, "text/calendar"))
}

func TestDecodeBody_PaddedAndUnpadded(t *testing.T) {
	for _, data := range []string{
		base64.URLEncoding.EncodeToString([]byte("héllo?>")),
		base64.RawURLEncoding.EncodeToString([]byte("héllo?>")),
	} {
		got, ok := decodeBody(data)
		assert.True(t, ok)
		assert.Equal(t, "héllo?>", got)
	}
}

func TestNormalizeMessage(t *testing.T) {
	m := message{
		ID:      "18c1",
		Snippet: "snippet text",
		Payload: part{
			MimeType: "text/html",
			Headers: []header{
				{Name: "Subject", Value: "Lunch?"},
				{Name: "From", Value: "Ada <ada@example.com>"},
				{Name: "Date", Value: "Thu, 4 Jan 2018 17:53:36 +0000"},
			},
			Body: partBody{Data: b64("<b>noon</b>")},
		},
	}

	got := normalizeMessage(m)

	assert.Equal(t, model.Media{
		Provider:    model.Google,
		ID:          "18c1",
		Type:        model.MediaText,
		CreatedTime: 1515088416,
		Link:        "https://mail.google.com/mail/u/0/#inbox/18c1",
		Text:        "snippet text",
		Subject:     "Lunch?",
		From:        "Ada <ada@example.com>",
		HTML:        "<b>noon</b>",
	}, got)
}

func TestSortByName(t *testing.T) {
	friends := []model.Friend{{Name: "charlie"}, {Name: "Bob"}, {Name: "alice"}}
	sortByName(friends)
	assert.Equal(t, []string{"alice", "Bob", "charlie"}, []string{friends[0].Name, friends[1].Name, friends[2].Name})
}
