package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"postapi/internal/core"
)

// SQLiteStore stores posts in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the posts table if needed.
// AUTOINCREMENT keeps SQLite from handing out the id of a deleted row again.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username VARCHAR(32) NOT NULL DEFAULT 'anon',
			content TEXT NOT NULL,
			image VARCHAR(255),
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

const sqlitePostColumns = "id, username, content, image, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePost(row rowScanner) (*core.Post, error) {
	var (
		p                    core.Post
		image                sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.Username, &p.Content, &image, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if image.Valid {
		img := image.String
		p.Image = &img
	}
	p.CreatedAt = fromMicros(createdAt)
	p.UpdatedAt = fromMicros(updatedAt)
	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// List returns posts ordered by id ascending.
func (s *SQLiteStore) List(ctx context.Context) ([]*core.Post, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sqlitePostColumns+" FROM posts ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]*core.Post, 0)
	for rows.Next() {
		p, err := scanSQLitePost(rows)
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
func (s *SQLiteStore) Create(ctx context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (username, content, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.Username, p.Content, nullString(p.Image), toMicros(p.CreatedAt), toMicros(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted post id: %w", err)
	}
	p.ID = id
	return nil
}

// Get returns a post by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*core.Post, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sqlitePostColumns+" FROM posts WHERE id = ?", id)
	p, err := scanSQLitePost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query post: %w", err)
	}
	return p, nil
}

// Update overwrites the mutable columns of a stored post.
func (s *SQLiteStore) Update(ctx context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET username = ?, content = ?, image = ?, updated_at = ?
		WHERE id = ?
	`, p.Username, p.Content, nullString(p.Image), toMicros(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read update rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a post.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read delete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored posts.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// Close is a no-op; DB lifecycle is managed by storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}
