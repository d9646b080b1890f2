package post

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postapi/internal/core"
)

// PostgreSQLStore stores posts in PostgreSQL.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the posts table if needed.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS posts (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			username VARCHAR(32) NOT NULL DEFAULT 'anon',
			content TEXT NOT NULL,
			image VARCHAR(255),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts table: %w", err)
	}

	return &PostgreSQLStore{pool: pool}, nil
}

const pgPostColumns = "id, username, content, image, created_at, updated_at"

func scanPGPost(row pgx.Row) (*core.Post, error) {
	var p core.Post
	if err := row.Scan(&p.ID, &p.Username, &p.Content, &p.Image, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// List returns posts ordered by id ascending.
func (s *PostgreSQLStore) List(ctx context.Context) ([]*core.Post, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+pgPostColumns+" FROM posts ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]*core.Post, 0)
	for rows.Next() {
		p, err := scanPGPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post rows: %w", err)
	}
	return items, nil
}

// Create inserts a new post and assigns its id.
func (s *PostgreSQLStore) Create(ctx context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO posts (username, content, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.Username, p.Content, p.Image, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// Get returns a post by id.
func (s *PostgreSQLStore) Get(ctx context.Context, id int64) (*core.Post, error) {
	p, err := scanPGPost(s.pool.QueryRow(ctx, "SELECT "+pgPostColumns+" FROM posts WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query post: %w", err)
	}
	return p, nil
}

// Update overwrites the mutable columns of a stored post.
func (s *PostgreSQLStore) Update(ctx context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	cmd, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET username = $1, content = $2, image = $3, updated_at = $4
		WHERE id = $5
	`, p.Username, p.Content, p.Image, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a post.
func (s *PostgreSQLStore) Delete(ctx context.Context, id int64) error {
	cmd, err := s.pool.Exec(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored posts.
func (s *PostgreSQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// Close is a no-op; pool lifecycle is managed by storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}
