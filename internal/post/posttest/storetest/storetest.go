// Package storetest holds the behavioural suite every post.Store
// implementation is expected to pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postapi/internal/core"
	"postapi/internal/post"
	"postapi/internal/post/posttest"
)

// Run exercises the Store contract. newStore must return an empty
// store; the suite does not close it.
func Run(t *testing.T, newStore func(t *testing.T) post.Store) {
	t.Helper()

	t.Run("empty list", func(t *testing.T) {
		store := newStore(t)
		list, err := store.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, list)

		n, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("create assigns id and round-trips", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		p := posttest.NewPost(posttest.WithImage("https://example.com/cat.png"))
		require.NoError(t, store.Create(ctx, p))
		require.Positive(t, p.ID)

		got, err := store.Get(ctx, p.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(p, got, timeEqual); diff != "" {
			t.Fatalf("post mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("null image round-trips as nil", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		p := posttest.NewPost()
		require.NoError(t, store.Create(ctx, p))

		got, err := store.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Image)
		assert.Equal(t, core.DefaultUsername, got.Username)
		assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))
	})

	t.Run("list keeps creation order", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		seeded, err := posttest.Seed(ctx, store, 5)
		require.NoError(t, err)

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 5)
		for i := range seeded {
			assert.Equal(t, seeded[i].ID, list[i].ID)
			assert.Equal(t, seeded[i].Content, list[i].Content)
		}

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 5, n)
	})

	t.Run("update overwrites mutable fields", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		p := posttest.NewPost(posttest.WithImage("a.png"))
		require.NoError(t, store.Create(ctx, p))

		p.Content = "edited"
		p.Username = "someone"
		p.Image = nil
		p.UpdatedAt = p.UpdatedAt.Add(time.Second)
		require.NoError(t, store.Update(ctx, p))

		got, err := store.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Content)
		assert.Equal(t, "someone", got.Username)
		assert.Nil(t, got.Image)
		assert.True(t, got.UpdatedAt.Equal(p.UpdatedAt))
		assert.True(t, got.CreatedAt.Equal(p.CreatedAt))
	})

	t.Run("missing ids report ErrNotFound", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Get(ctx, 4242)
		assert.True(t, errors.Is(err, post.ErrNotFound), "get: %v", err)

		err = store.Update(ctx, posttest.NewPost(func(p *core.Post) { p.ID = 4242 }))
		assert.True(t, errors.Is(err, post.ErrNotFound), "update: %v", err)

		err = store.Delete(ctx, 4242)
		assert.True(t, errors.Is(err, post.ErrNotFound), "delete: %v", err)
	})

	t.Run("delete is hard and ids are not reused", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		seeded, err := posttest.Seed(ctx, store, 2)
		require.NoError(t, err)
		last := seeded[1]

		require.NoError(t, store.Delete(ctx, last.ID))
		_, err = store.Get(ctx, last.ID)
		assert.True(t, errors.Is(err, post.ErrNotFound))
		assert.True(t, errors.Is(store.Delete(ctx, last.ID), post.ErrNotFound))

		next := posttest.NewPost()
		require.NoError(t, store.Create(ctx, next))
		assert.Greater(t, next.ID, last.ID)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("returned posts do not alias store state", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		p := posttest.NewPost(posttest.WithImage("a.png"))
		require.NoError(t, store.Create(ctx, p))

		got, err := store.Get(ctx, p.ID)
		require.NoError(t, err)
		got.Content = "mutated"
		*got.Image = "mutated.png"

		again, err := store.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Content, again.Content)
		assert.Equal(t, "a.png", *again.Image)
	})

	t.Run("concurrent creates get distinct ids", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const workers = 8
		ids := make([]int64, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p := posttest.NewPost()
				errs[i] = store.Create(ctx, p)
				ids[i] = p.ID
			}(i)
		}
		wg.Wait()

		seen := make(map[int64]bool, workers)
		for i := range ids {
			require.NoError(t, errs[i])
			assert.False(t, seen[ids[i]], "duplicate id %d", ids[i])
			seen[ids[i]] = true
		}
	})
}

var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })
