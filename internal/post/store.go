// Package post implements the post resource: validation and defaults in
// Service, persistence behind Store with one implementation per storage backend.
package post

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"postapi/internal/core"
)

// ErrNotFound indicates a requested post was not found.
var ErrNotFound = errors.New("post not found")

// Store defines persistence operations for posts.
// Implementations must be safe for concurrent use and must never return
// values that alias their internal state.
type Store interface {
	// List returns every post ordered by id ascending (creation order).
	List(ctx context.Context) ([]*core.Post, error)
	// Create persists p and assigns p.ID. Ids are never reused.
	Create(ctx context.Context, p *core.Post) error
	Get(ctx context.Context, id int64) (*core.Post, error)
	// Update overwrites username, content, image and updated_at of an existing post.
	Update(ctx context.Context, p *core.Post) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

func validateForWrite(p *core.Post) error {
	if p == nil {
		return fmt.Errorf("post is nil")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		return fmt.Errorf("post timestamps are required")
	}
	return nil
}

// Timestamps are persisted as UTC unix microseconds in backends without a
// native timestamp type.
func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
