package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteMemoryPath keeps the database in process memory for the lifetime of
// the storage. Useful for local runs of the seed command and for tests.
const SQLiteMemoryPath = ":memory:"

// sqlitePragmas are applied by modernc.org/sqlite on every new connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

type sqliteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLite opens the posts database at cfg.Path, creating parent
// directories as needed.
func NewSQLite(cfg SQLiteConfig) (Storage, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultSQLitePath
	}

	if path != SQLiteMemoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// One connection serializes writers, which SQLite requires anyway, and
	// keeps an in-memory database alive between statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database %s: %w", path, err)
	}

	return &sqliteStorage{db: db, path: path}, nil
}

func sqliteDSN(path string) string {
	params := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		// WAL does not apply to an in-memory database.
		if path == SQLiteMemoryPath && strings.HasPrefix(p, "journal_mode") {
			continue
		}
		params = append(params, "_pragma="+p)
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

func (s *sqliteStorage) Type() string                { return TypeSQLite }
func (s *sqliteStorage) SQLiteDB() *sql.DB           { return s.db }
func (s *sqliteStorage) PostgreSQLPool() interface{} { return nil }
func (s *sqliteStorage) MongoDatabase() interface{}  { return nil }
func (s *sqliteStorage) RedisClient() interface{}    { return nil }

// Close closes the database. Calling it again is a no-op.
func (s *sqliteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("close SQLite database %s: %w", s.path, err)
	}
	return nil
}
