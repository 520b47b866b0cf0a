package google

import (
	"encoding/base64"
	"sort"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/sakif/unify/internal/model"
)

type userInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type person struct {
	ResourceName string `json:"resourceName"`
	Names        []struct {
		DisplayName string `json:"displayName"`
	} `json:"names"`
	EmailAddresses []struct {
		Value string `json:"value"`
	} `json:"emailAddresses"`
	Photos []struct {
		URL string `json:"url"`
	} `json:"photos"`
}

type connectionsPage struct {
	Connections   []person `json:"connections"`
	NextPageToken string   `json:"nextPageToken"`
}

type messageList struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type partBody struct {
	Data string `json:"data"`
}

type part struct {
	MimeType string   `json:"mimeType"`
	Filename string   `json:"filename"`
	Headers  []header `json:"headers"`
	Body     partBody `json:"body"`
	Parts    []part   `json:"parts"`
}

type message struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	Payload part   `json:"payload"`
}

func (p *part) header(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// parseDate converts a Date header to unix seconds, 0 when unparsable.
// A trailing zone comment such as " (UTC)" is dropped first.
func parseDate(s string) int64 {
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// findBody walks the MIME tree depth-first and returns the decoded body of
// the first inline part of mimeType. Parts with a filename are attachments.
func findBody(p *part, mimeType string) string {
	if p.MimeType == mimeType && p.Filename == "" && p.Body.Data != "" {
		if b, ok := decodeBody(p.Body.Data); ok {
			return b
		}
	}
	for i := range p.Parts {
		if b := findBody(&p.Parts[i], mimeType); b != "" {
			return b
		}
	}
	return ""
}

// decodeBody decodes Gmail's base64url body data, padded or not.
func decodeBody(data string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", false
	}
	return string(b), true
}

func normalizeMessage(m message) model.Media {
	text := findBody(&m.Payload, "text/plain")
	if text == "" {
		text = m.Snippet
	}
	return model.Media{
		Provider:    model.Google,
		ID:          m.ID,
		Type:        model.MediaText,
		CreatedTime: parseDate(m.Payload.header("Date")),
		Link:        messageLink(m.ID),
		Text:        text,
		Subject:     m.Payload.header("Subject"),
		From:        m.Payload.header("From"),
		HTML:        findBody(&m.Payload, "text/html"),
	}
}

func normalizePerson(p person) model.Friend {
	f := model.Friend{ID: p.ResourceName}
	if len(p.Names) > 0 {
		f.Name = p.Names[0].DisplayName
	}
	if len(p.EmailAddresses) > 0 {
		f.Email = p.EmailAddresses[0].Value
	}
	if len(p.Photos) > 0 {
		f.Picture = p.Photos[0].URL
	}
	if f.Name == "" {
		f.Name = f.Email
	}
	return f
}

func normalizePeople(people []person) []model.Friend {
	out := make([]model.Friend, 0, len(people))
	for _, p := range people {
		out = append(out, normalizePerson(p))
	}
	return out
}

// sortByName orders contacts alphabetically, ignoring case.
func sortByName(friends []model.Friend) {
	sort.SliceStable(friends, func(i, j int) bool {
		return strings.ToLower(friends[i].Name) < strings.ToLower(friends[j].Name)
	})
}
