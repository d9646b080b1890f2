package post

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"postapi/internal/core"
)

// maxWatchRetries bounds optimistic-lock retries for Update.
const maxWatchRetries = 3

// RedisStore stores each post as a hash. A sorted set scored by id keeps
// creation order, and an INCR counter hands out ids:
//
//	<prefix>:posts:seq      counter
//	<prefix>:posts:ids      sorted set of ids
//	<prefix>:post:<id>      hash of post fields
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed post store. keyPrefix namespaces all keys.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if keyPrefix == "" {
		keyPrefix = "postapi"
	}
	return &RedisStore{client: client, prefix: keyPrefix}, nil
}

func (s *RedisStore) seqKey() string { return s.prefix + ":posts:seq" }
func (s *RedisStore) idsKey() string { return s.prefix + ":posts:ids" }
func (s *RedisStore) postKey(id int64) string {
	return s.prefix + ":post:" + formatID(id)
}

func decodeRedisPost(id int64, vals map[string]string) (*core.Post, error) {
	createdAt, err := strconv.ParseInt(vals["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode created_at of post %d: %w", id, err)
	}
	updatedAt, err := strconv.ParseInt(vals["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode updated_at of post %d: %w", id, err)
	}
	p := &core.Post{
		ID:        id,
		Username:  vals["username"],
		Content:   vals["content"],
		CreatedAt: fromMicros(createdAt),
		UpdatedAt: fromMicros(updatedAt),
	}
	if img, ok := vals["image"]; ok {
		p.Image = &img
	}
	return p, nil
}

// List returns posts ordered by id ascending.
func (s *RedisStore) List(ctx context.Context) ([]*core.Post, error) {
	members, err := s.client.ZRange(ctx, s.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list post ids: %w", err)
	}

	ids := make([]int64, len(members))
	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			id, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				return fmt.Errorf("decode post id %q: %w", m, err)
			}
			ids[i] = id
			cmds[i] = pipe.HGetAll(ctx, s.postKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	items := make([]*core.Post, 0, len(members))
	for i, cmd := range cmds {
		vals := cmd.Val()
		// deleted between ZRANGE and HGETALL
		if len(vals) == 0 {
			continue
		}
		p, err := decodeRedisPost(ids[i], vals)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, nil
}

// Create inserts a new post and assigns its id.
func (s *RedisStore) Create(ctx context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("allocate post id: %w", err)
	}

	fields := map[string]interface{}{
		"username":   p.Username,
		"content":    p.Content,
		"created_at": toMicros(p.CreatedAt),
		"updated_at": toMicros(p.UpdatedAt),
	}
	if p.Image != nil {
		fields["image"] = *p.Image
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.postKey(id), fields)
		pipe.ZAdd(ctx, s.idsKey(), redis.Z{Score: float64(id), Member: formatID(id)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	p.ID = id
	return nil
}

// Get returns a post by id.
func (s *RedisStore) Get(ctx context.Context, id int64) (*core.Post, error) {
	vals, err := s.client.HGetAll(ctx, s.postKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	return decodeRedisPost(id, vals)
}

// Update overwrites the mutable fields of a stored post. The key is watched
// so a concurrent delete cannot be resurrected by the write.
func (s *RedisStore) Update(ctx context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	key := s.postKey(p.ID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"username", p.Username,
				"content", p.Content,
				"updated_at", toMicros(p.UpdatedAt),
			)
			if p.Image != nil {
				pipe.HSet(ctx, key, "image", *p.Image)
			} else {
				pipe.HDel(ctx, key, "image")
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrNotFound):
			return ErrNotFound
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("update post: %w", err)
		}
	}
	return fmt.Errorf("update post %d: too much contention", p.ID)
}

// Delete removes a post.
func (s *RedisStore) Delete(ctx context.Context, id int64) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.postKey(id))
		pipe.ZRem(ctx, s.idsKey(), formatID(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored posts.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.idsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// Close is a no-op; the client lifecycle is managed by storage layer.
func (s *RedisStore) Close() error {
	return nil
}
