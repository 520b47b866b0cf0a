package provider

import (
	"context"
	"errors"
	"fmt"
)

// MaxPages bounds Collect against providers that never stop paging.
const MaxPages = 1000

// ErrTooManyPages is returned when a listing exceeds MaxPages.
var ErrTooManyPages = errors.New("provider: too many pages")

// Page is one provider page. Next is the cursor (or URL) of the following
// page; adapters map their end sentinels (e.g. Twitter's "0") to "".
type Page[T any] struct {
	Items []T
	Next  string
}

// FetchFunc fetches the page identified by cursor.
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Collect fetches pages starting at first until a page has no next cursor
// and returns every item in page order. The accumulator is local to the
// call. A short page does not end the listing; only the cursor does. A page
// whose Next repeats the current cursor also ends it.
func Collect[T any](ctx context.Context, first string, fetch FetchFunc[T]) ([]T, error) {
	items := make([]T, 0)
	cursor := first

	for range MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)

		if page.Next == "" || page.Next == cursor {
			return items, nil
		}
		cursor = page.Next
	}

	return nil, fmt.Errorf("%w: stopped after %d", ErrTooManyPages, MaxPages)
}
