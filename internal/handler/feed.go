package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/auth"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/service"
)

// FeedReader is the aggregation part of the service layer.
type FeedReader interface {
	GetMedia(ctx context.Context, userID string) (*service.MediaEnvelope, error)
	GetContactMedia(ctx context.Context, userID, contactID string) (*service.MediaEnvelope, error)
	GetFriends(ctx context.Context, userID string) (*service.FriendsEnvelope, error)
	GetPages(ctx context.Context, userID string) (*service.FriendsEnvelope, error)
	Search(ctx context.Context, userID, query string, only []model.Provider) (*service.MediaEnvelope, error)
	SearchMore(ctx context.Context, userID string) (*service.MediaEnvelope, error)
	ListEmails(ctx context.Context, userID, query string) (*service.MediaEnvelope, error)
	ToggleLike(ctx context.Context, userID string, p model.Provider, mediaID string, like bool) error
}

var _ FeedReader = (*service.FeedService)(nil)

// FeedHandler serves the aggregated feeds. Every route requires
// auth.RequireAuth.
//
// Fan-out responses are always 200: a failing provider shows up under
// "errors" next to the other providers' results.
type FeedHandler struct {
	feed FeedReader
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(feed FeedReader) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// HandleMedia returns the user's own media.
//
// HTTP: GET /api/media
// RESPONSE: {"media": {"results": [...], "errors": {"twitter": {"msg": "..."}}}}
func (h *FeedHandler) HandleMedia(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	env, err := h.feed.GetMedia(r.Context(), userID)
	respond(w, "media", env, err)
}

// HandleContactMedia returns one contact's media.
//
// HTTP: GET /api/contacts/{id}/media
func (h *FeedHandler) HandleContactMedia(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	env, err := h.feed.GetContactMedia(r.Context(), userID, chi.URLParam(r, "id"))
	respond(w, "media", env, err)
}

// HandleFriends returns friends per provider.
//
// HTTP: GET /api/friends
// RESPONSE: {"friends": {"results": {"facebook": {"list": [...], "count": 2}}, "errors": {}}}
func (h *FeedHandler) HandleFriends(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	env, err := h.feed.GetFriends(r.Context(), userID)
	respond(w, "friends", env, err)
}

// HandlePages returns liked pages per provider.
//
// HTTP: GET /api/pages
func (h *FeedHandler) HandlePages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	env, err := h.feed.GetPages(r.Context(), userID)
	respond(w, "pages", env, err)
}

// HandleSearch starts a search.
//
// HTTP: GET /api/search?q=golang&providers=twitter,instagram
func (h *FeedHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, apperror.ValidationFailed("q", "q is required"))
		return
	}

	var only []model.Provider
	var bad []apperror.FieldError
	for _, name := range strings.Split(r.URL.Query().Get("providers"), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, err := model.ParseProvider(name)
		if err != nil {
			bad = append(bad, apperror.FieldError{Param: "providers", Message: "Unknown provider " + name})
			continue
		}
		only = append(only, p)
	}
	if len(bad) > 0 {
		writeError(w, apperror.Invalid(bad))
		return
	}

	env, err := h.feed.Search(r.Context(), userID, q, only)
	respond(w, "search", env, err)
}

// HandleSearchMore continues the last search.
//
// HTTP: GET /api/search/more
func (h *FeedHandler) HandleSearchMore(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	env, err := h.feed.SearchMore(r.Context(), userID)
	respond(w, "search", env, err)
}

// HandleEmails lists mailbox messages.
//
// HTTP: GET /api/emails?q=is:unread
func (h *FeedHandler) HandleEmails(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	env, err := h.feed.ListEmails(r.Context(), userID, r.URL.Query().Get("q"))
	respond(w, "emails", env, err)
}

// HandleLike likes (POST) or unlikes (DELETE) a media item.
//
// HTTP: POST|DELETE /api/media/{provider}/{id}/like
func (h *FeedHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	p, err := providerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	like := r.Method != http.MethodDelete

	if err := h.feed.ToggleLike(r.Context(), userID, p, chi.URLParam(r, "id"), like); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": like})
}

// respond writes {key: env} or the error.
func respond(w http.ResponseWriter, key string, env any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{key: env})
}
