package post

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"postapi/config"
	"postapi/internal/storage"
)

// Result holds the initialized post store and optional owned storage.
type Result struct {
	Store   Store
	Storage storage.Storage
}

// Close releases resources held by the post store.
func (r *Result) Close() error {
	var errs []error
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New creates a post store from app configuration. The returned Result owns
// the storage connection.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	storageCfg := BuildStorageConfig(cfg)
	st, err := storage.New(ctx, storageCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	postStore, err := createStore(ctx, st, storageCfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Result{
		Store:   postStore,
		Storage: st,
	}, nil
}

// NewWithSharedStorage creates a post store on a connection owned by the caller.
func NewWithSharedStorage(ctx context.Context, shared storage.Storage) (*Result, error) {
	if shared == nil {
		return nil, fmt.Errorf("shared storage is required")
	}
	postStore, err := createStore(ctx, shared, storage.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &Result{
		Store: postStore,
	}, nil
}

// BuildStorageConfig maps application configuration onto storage.Config,
// filling defaults for anything left empty.
func BuildStorageConfig(cfg *config.Config) storage.Config {
	storageCfg := storage.Config{
		Type: cfg.Storage.Type,
		SQLite: storage.SQLiteConfig{
			Path: cfg.Storage.SQLite.Path,
		},
		PostgreSQL: storage.PostgreSQLConfig{
			URL:      cfg.Storage.PostgreSQL.URL,
			MaxConns: cfg.Storage.PostgreSQL.MaxConns,
		},
		MongoDB: storage.MongoDBConfig{
			URL:      cfg.Storage.MongoDB.URL,
			Database: cfg.Storage.MongoDB.Database,
		},
		Redis: storage.RedisConfig{
			URL:       cfg.Storage.Redis.URL,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		},
	}

	defaults := storage.DefaultConfig()
	if storageCfg.Type == "" {
		storageCfg.Type = defaults.Type
	}
	if storageCfg.SQLite.Path == "" {
		storageCfg.SQLite.Path = defaults.SQLite.Path
	}
	if storageCfg.MongoDB.Database == "" {
		storageCfg.MongoDB.Database = defaults.MongoDB.Database
	}
	if storageCfg.Redis.KeyPrefix == "" {
		storageCfg.Redis.KeyPrefix = defaults.Redis.KeyPrefix
	}
	return storageCfg
}

func createStore(ctx context.Context, st storage.Storage, cfg storage.Config) (Store, error) {
	switch st.Type() {
	case storage.TypeMemory:
		return NewMemoryStore(), nil
	case storage.TypeSQLite:
		return NewSQLiteStore(st.SQLiteDB())
	case storage.TypePostgreSQL:
		pool := st.PostgreSQLPool()
		if pool == nil {
			return nil, fmt.Errorf("PostgreSQL pool is nil")
		}
		pgxPool, ok := pool.(*pgxpool.Pool)
		if !ok {
			return nil, fmt.Errorf("invalid PostgreSQL pool type: %T", pool)
		}
		return NewPostgreSQLStore(ctx, pgxPool)
	case storage.TypeMongoDB:
		db := st.MongoDatabase()
		if db == nil {
			return nil, fmt.Errorf("MongoDB database is nil")
		}
		mongoDB, ok := db.(*mongo.Database)
		if !ok {
			return nil, fmt.Errorf("invalid MongoDB database type: %T", db)
		}
		return NewMongoDBStore(mongoDB)
	case storage.TypeRedis:
		c := st.RedisClient()
		if c == nil {
			return nil, fmt.Errorf("Redis client is nil")
		}
		client, ok := c.(*redis.Client)
		if !ok {
			return nil, fmt.Errorf("invalid Redis client type: %T", c)
		}
		return NewRedisStore(client, cfg.Redis.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", st.Type())
	}
}
