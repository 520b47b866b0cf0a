package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/cache"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
	"github.com/sakif/unify/internal/repository"
)

const searchStatePrefix = "search:"

// FeedService aggregates content across a user's linked providers.
//
// Each operation fans out to every linked provider whose adapter supports
// the capability, waits for all of them, and merges. A provider failure
// lands in the envelope's Errors map; the operation itself still succeeds.
type FeedService struct {
	users    repository.UserRepository
	contacts repository.ContactRepository
	adapters *provider.Registry
	cache    cache.Cache
	ttl      TTLs
	logger   *slog.Logger
}

// NewFeedService creates a FeedService.
func NewFeedService(d Deps, ttl TTLs) *FeedService {
	return &FeedService{
		users:    d.Users,
		contacts: d.Contacts,
		adapters: d.Adapters,
		cache:    d.Cache,
		ttl:      ttl.withDefaults(),
		logger:   d.Logger,
	}
}

// GetMedia returns the user's own recent media from every linked provider.
func (s *FeedService) GetMedia(ctx context.Context, userID string) (*MediaEnvelope, error) {
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}
	providers := capable[provider.MediaLister](s, user, nil)
	slots := fanOut(ctx, providers, func(ctx context.Context, p model.Provider) ([]model.Media, error) {
		a, cred, err := adapterFor[provider.MediaLister](ctx, s, user, p)
		if err != nil {
			return nil, err
		}
		return a.ListMedia(ctx, cred, "")
	})
	return mergeMedia(s.logger, "media", slots), nil
}

// GetContactMedia returns the recent media of a contact's valid provider
// identities, fetched with the owner's credentials.
func (s *FeedService) GetContactMedia(ctx context.Context, userID, contactID string) (*MediaEnvelope, error) {
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}
	contact, err := s.contacts.GetByID(ctx, userID, contactID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, unexpected(s.logger, "loading contact", err, slog.String("contactID", contactID))
	}

	providers := capable[provider.MediaLister](s, user, func(p model.Provider) bool {
		a := contact.Account(p)
		return a != nil && a.Valid && a.ID != ""
	})
	slots := fanOut(ctx, providers, func(ctx context.Context, p model.Provider) ([]model.Media, error) {
		a, cred, err := adapterFor[provider.MediaLister](ctx, s, user, p)
		if err != nil {
			return nil, err
		}
		return a.ListMedia(ctx, cred, contact.Account(p).ID)
	})
	return mergeMedia(s.logger, "contact media", slots), nil
}

// GetFriends returns every friend/follow/contact per linked provider.
func (s *FeedService) GetFriends(ctx context.Context, userID string) (*FriendsEnvelope, error) {
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}
	providers := capable[provider.FriendLister](s, user, nil)
	slots := fanOut(ctx, providers, func(ctx context.Context, p model.Provider) ([]model.Friend, error) {
		a, cred, err := adapterFor[provider.FriendLister](ctx, s, user, p)
		if err != nil {
			return nil, err
		}
		return a.ListFriends(ctx, cred)
	})
	return mergeFriends(s.logger, "friends", slots), nil
}

// GetPages returns the pages the user likes, per provider that has them.
func (s *FeedService) GetPages(ctx context.Context, userID string) (*FriendsEnvelope, error) {
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}
	providers := capable[provider.PageLister](s, user, nil)
	slots := fanOut(ctx, providers, func(ctx context.Context, p model.Provider) ([]model.Friend, error) {
		a, cred, err := adapterFor[provider.PageLister](ctx, s, user, p)
		if err != nil {
			return nil, err
		}
		return a.ListPages(ctx, cred)
	})
	return mergeFriends(s.logger, "pages", slots), nil
}

// ListEmails lists mailbox messages matching query.
func (s *FeedService) ListEmails(ctx context.Context, userID, query string) (*MediaEnvelope, error) {
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}
	providers := capable[provider.MailLister](s, user, nil)
	slots := fanOut(ctx, providers, func(ctx context.Context, p model.Provider) ([]model.Media, error) {
		a, cred, err := adapterFor[provider.MailLister](ctx, s, user, p)
		if err != nil {
			return nil, err
		}
		return a.ListMail(ctx, cred, query)
	})
	return mergeMedia(s.logger, "emails", slots), nil
}

// searchState is what SearchMore needs to continue: the query and, per
// provider, the cursor of the next page. Providers with no further pages
// are absent.
type searchState struct {
	Query   string                    `json:"query"`
	Cursors map[model.Provider]string `json:"cursors"`
}

// Search runs query on the given providers (all linked ones when empty) and
// remembers where each provider's results continue.
func (s *FeedService) Search(ctx context.Context, userID, query string, only []model.Provider) (*MediaEnvelope, error) {
	if query == "" {
		return nil, apperror.ValidationFailed("q", "Search query is required")
	}
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}

	var filter func(model.Provider) bool
	if len(only) > 0 {
		want := make(map[model.Provider]bool, len(only))
		for _, p := range only {
			want[p] = true
		}
		filter = func(p model.Provider) bool { return want[p] }
	}

	cursors := make(map[model.Provider]string)
	for _, p := range capable[provider.Searcher](s, user, filter) {
		cursors[p] = ""
	}
	state := &searchState{Query: query, Cursors: cursors}
	return s.searchPage(ctx, user, state)
}

// SearchMore fetches the next page of the user's last search.
func (s *FeedService) SearchMore(ctx context.Context, userID string) (*MediaEnvelope, error) {
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return nil, err
	}
	raw, err := s.cache.Get(ctx, searchStatePrefix+userID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, apperror.BadRequest("No search in progress, please search again")
		}
		return nil, unexpected(s.logger, "reading search state", err)
	}
	var state searchState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, unexpected(s.logger, "decoding search state", err)
	}

	// A provider unlinked since the first page is dropped.
	for p := range state.Cursors {
		if !user.HasLinkedAccount(p) {
			delete(state.Cursors, p)
		}
	}
	return s.searchPage(ctx, user, &state)
}

// searchPage runs one page for every provider in state.Cursors and stores
// the advanced state. A failed provider keeps its cursor so the next call
// retries the same page.
func (s *FeedService) searchPage(ctx context.Context, user *model.User, state *searchState) (*MediaEnvelope, error) {
	providers := make([]model.Provider, 0, len(state.Cursors))
	for _, p := range model.Providers {
		if _, ok := state.Cursors[p]; ok {
			providers = append(providers, p)
		}
	}

	slots := fanOut(ctx, providers, func(ctx context.Context, p model.Provider) (provider.SearchPage, error) {
		a, cred, err := adapterFor[provider.Searcher](ctx, s, user, p)
		if err != nil {
			return provider.SearchPage{}, err
		}
		return a.Search(ctx, cred, state.Query, state.Cursors[p])
	})

	env := &MediaEnvelope{
		Results: []model.Media{},
		Errors:  map[model.Provider]*provider.ErrorDetail{},
	}
	next := make(map[model.Provider]string)
	for _, sl := range slots {
		if sl.err != nil {
			env.Errors[sl.provider] = providerFailure(s.logger, "search", sl.provider, sl.err)
			next[sl.provider] = state.Cursors[sl.provider]
			continue
		}
		env.Results = append(env.Results, sl.value.Items...)
		if sl.value.Next != "" && sl.value.Next != state.Cursors[sl.provider] {
			next[sl.provider] = sl.value.Next
		}
	}
	model.SortByRecency(env.Results)

	state.Cursors = next
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, unexpected(s.logger, "encoding search state", err)
	}
	if err := s.cache.Set(ctx, searchStatePrefix+user.ID, raw, s.ttl.Search); err != nil {
		return nil, unexpected(s.logger, "storing search state", err)
	}
	return env, nil
}

// ToggleLike likes or unlikes one media item on p.
func (s *FeedService) ToggleLike(ctx context.Context, userID string, p model.Provider, mediaID string, like bool) error {
	if mediaID == "" {
		return apperror.ValidationFailed("id", "Media id is required")
	}
	user, err := loadUser(ctx, s.users, s.logger, userID)
	if err != nil {
		return err
	}
	if !user.HasLinkedAccount(p) {
		return apperror.BadRequest(fmt.Sprintf("%s is not linked to your account", p.Title()))
	}
	a, cred, err := adapterFor[provider.Liker](ctx, s, user, p)
	if err != nil {
		return err
	}
	return a.Like(ctx, cred, mediaID, like)
}

// capable returns, in provider order, the user's linked providers whose
// adapter implements capability C and that pass keep (nil keeps all).
func capable[C any](s *FeedService, user *model.User, keep func(model.Provider) bool) []model.Provider {
	var out []model.Provider
	for _, p := range user.LinkedProviders() {
		a, err := s.adapters.Get(p)
		if err != nil {
			continue
		}
		if _, ok := a.(C); !ok {
			continue
		}
		if keep != nil && !keep(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// adapterFor returns p's adapter as capability C together with a usable
// credential. Providers with a refresh token get a fresh access token first.
func adapterFor[C any](ctx context.Context, s *FeedService, user *model.User, p model.Provider) (C, model.Credential, error) {
	var zero C
	a, err := s.adapters.Get(p)
	if err != nil {
		return zero, model.Credential{}, apperror.BadRequest(fmt.Sprintf("%s is not available", p.Title()))
	}
	c, ok := a.(C)
	if !ok {
		return zero, model.Credential{}, apperror.BadRequest(fmt.Sprintf("%s does not support this", p.Title()))
	}

	cred := user.Account(p).Credential
	if r, ok := a.(provider.Refresher); ok && cred.RefreshToken != "" {
		cred, err = r.Refresh(ctx, cred)
		if err != nil {
			return zero, model.Credential{}, err
		}
	}
	return c, cred, nil
}
