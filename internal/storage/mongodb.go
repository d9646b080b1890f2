package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const mongoDisconnectTimeout = 10 * time.Second

// mongoStorage implements Storage for MongoDB
type mongoStorage struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoDB connects to MongoDB and selects the configured database.
func NewMongoDB(ctx context.Context, cfg MongoDBConfig) (Storage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("MongoDB URL is required")
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = DefaultDatabase
	}

	clientOpts := options.Client().ApplyURI(cfg.URL).SetAppName("postapi")
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &mongoStorage{
		client:   client,
		database: client.Database(dbName),
	}, nil
}

func (s *mongoStorage) Type() string                { return TypeMongoDB }
func (s *mongoStorage) SQLiteDB() *sql.DB           { return nil }
func (s *mongoStorage) PostgreSQLPool() interface{} { return nil }
func (s *mongoStorage) MongoDatabase() interface{}  { return s.database }
func (s *mongoStorage) RedisClient() interface{}    { return nil }

func (s *mongoStorage) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
