package collectors

import (
	"context"
	"fmt"
)

const (
	DefaultMaxOffset = 2000
	DefaultMaxPages  = 50
)

// OffsetPaging bounds an offset/limit walk.
type OffsetPaging struct {
	Limit     int
	MaxOffset int // the walk stops once the next offset passes this
	MaxPages  int
}

// PaginateOffset fetches pages at offset 0, limit, 2*limit, ... until a page
// comes back empty, the offset passes MaxOffset, or MaxPages pages were fetched.
func PaginateOffset[T any](ctx context.Context, p OffsetPaging, fetch func(ctx context.Context, offset, limit int) ([]T, error)) ([]T, error) {
	if p.Limit <= 0 {
		return nil, fmt.Errorf("paginate: limit must be positive, got %d", p.Limit)
	}
	maxOffset := p.MaxOffset
	if maxOffset <= 0 {
		maxOffset = DefaultMaxOffset
	}
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var out []T
	offset := 0
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := fetch(ctx, offset, p.Limit)
		if err != nil {
			return nil, fmt.Errorf("page at offset %d: %w", offset, err)
		}
		if len(items) == 0 {
			break
		}
		out = append(out, items...)
		offset += p.Limit
		if offset > maxOffset {
			break
		}
	}
	return out, nil
}

// PaginateCursor follows the opaque cursor each page returns until it is empty
// or maxPages pages were fetched.
func PaginateCursor[T any](ctx context.Context, maxPages int, fetch func(ctx context.Context, cursor string) ([]T, string, error)) ([]T, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var out []T
	cursor := ""
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("page %d (cursor %q): %w", page, cursor, err)
		}
		out = append(out, items...)
		if next == "" {
			break
		}
		cursor = next
	}
	return out, nil
}
