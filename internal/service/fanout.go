package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

// slot is one provider's outcome in a fan-out.
type slot[T any] struct {
	provider model.Provider
	value    T
	err      error
}

// fanOut calls fn once per provider, concurrently, and returns the outcomes
// in the order of providers.
//
// fn's error is captured in its slot and never returned to the group, so a
// failing provider cannot cancel its siblings.
func fanOut[T any](ctx context.Context, providers []model.Provider, fn func(ctx context.Context, p model.Provider) (T, error)) []slot[T] {
	slots := make([]slot[T], len(providers))
	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			v, err := fn(ctx, p)
			slots[i] = slot[T]{provider: p, value: v, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

// MediaEnvelope is the merged result of a media-shaped fan-out.
// Results are newest first. Errors has one entry per failed provider.
type MediaEnvelope struct {
	Results []model.Media                            `json:"results"`
	Errors  map[model.Provider]*provider.ErrorDetail `json:"errors"`
}

// FriendList is one provider's friends.
type FriendList struct {
	List  []model.Friend `json:"list"`
	Count int            `json:"count"`
}

// FriendsEnvelope is the merged result of a friend-shaped fan-out, keyed by
// provider.
type FriendsEnvelope struct {
	Results map[model.Provider]FriendList            `json:"results"`
	Errors  map[model.Provider]*provider.ErrorDetail `json:"errors"`
}

func mergeMedia(logger *slog.Logger, op string, slots []slot[[]model.Media]) *MediaEnvelope {
	env := &MediaEnvelope{
		Results: []model.Media{},
		Errors:  map[model.Provider]*provider.ErrorDetail{},
	}
	for _, s := range slots {
		if s.err != nil {
			env.Errors[s.provider] = providerFailure(logger, op, s.provider, s.err)
			continue
		}
		env.Results = append(env.Results, s.value...)
	}
	model.SortByRecency(env.Results)
	return env
}

func mergeFriends(logger *slog.Logger, op string, slots []slot[[]model.Friend]) *FriendsEnvelope {
	env := &FriendsEnvelope{
		Results: map[model.Provider]FriendList{},
		Errors:  map[model.Provider]*provider.ErrorDetail{},
	}
	for _, s := range slots {
		if s.err != nil {
			env.Errors[s.provider] = providerFailure(logger, op, s.provider, s.err)
			continue
		}
		list := s.value
		if list == nil {
			list = []model.Friend{}
		}
		env.Results[s.provider] = FriendList{List: list, Count: len(list)}
	}
	return env
}

func providerFailure(logger *slog.Logger, op string, p model.Provider, err error) *provider.ErrorDetail {
	logger.Warn("provider call failed",
		slog.String("op", op),
		slog.String("provider", string(p)),
		slog.String("error", provider.Redact(err).Error()),
	)
	return provider.DetailOf(p, err)
}
