// Package posttest provides fixture posts and seeding for post stores. It is
// imported by the seed command, so it must not depend on testing packages.
package posttest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"postapi/internal/core"
	"postapi/internal/post"
)

var seq atomic.Int64

// Option customizes a fixture post.
type Option func(*core.Post)

// WithUsername sets the fixture username.
func WithUsername(username string) Option {
	return func(p *core.Post) { p.Username = username }
}

// WithContent sets the fixture content.
func WithContent(content string) Option {
	return func(p *core.Post) { p.Content = content }
}

// WithImage sets the fixture image.
func WithImage(image string) Option {
	return func(p *core.Post) { p.Image = &image }
}

// WithTime sets both timestamps.
func WithTime(t time.Time) Option {
	return func(p *core.Post) {
		p.CreatedAt = t
		p.UpdatedAt = t
	}
}

// NewPost returns an unsaved, valid post with default field values.
// Each call produces distinct content.
func NewPost(opts ...Option) *core.Post {
	now := core.Now()
	p := &core.Post{
		Username:  core.DefaultUsername,
		Content:   fmt.Sprintf("post number %d", seq.Add(1)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Seed persists n fixture posts in store and returns them in creation order.
func Seed(ctx context.Context, store post.Store, n int, opts ...Option) ([]*core.Post, error) {
	out := make([]*core.Post, 0, n)
	for i := 0; i < n; i++ {
		p := NewPost(opts...)
		if err := store.Create(ctx, p); err != nil {
			return out, fmt.Errorf("seed post %d: %w", i+1, err)
		}
		out = append(out, p)
	}
	return out, nil
}
