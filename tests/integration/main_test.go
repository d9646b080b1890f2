//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const testDatabase = "postapi_test"

var (
	// PostgreSQL resources
	pgContainer *postgres.PostgresContainer
	pgPool      *pgxpool.Pool
	pgURL       string

	// MongoDB resources
	mongoContainer *mongodb.MongoDBContainer
	mongoClient    *mongo.Client
	mongoDatabase  *mongo.Database
	mongoURL       string

	// Redis resources
	redisContainer testcontainers.Container
	redisClient    *redis.Client
	redisURL       string

	// Test context
	testCtx    context.Context
	cancelFunc context.CancelFunc
)

// TestMain sets up and tears down the test containers.
func TestMain(m *testing.M) {
	testCtx, cancelFunc = context.WithTimeout(context.Background(), 10*time.Minute)

	setups := []func(context.Context) error{setupPostgreSQL, setupMongoDB, setupRedis}
	errCh := make(chan error, len(setups))
	for _, setup := range setups {
		go func(setup func(context.Context) error) {
			errCh <- setup(testCtx)
		}(setup)
	}

	for range setups {
		if err := <-errCh; err != nil {
			log.Printf("Container setup failed: %v", err)
			cleanup()
			cancelFunc()
			os.Exit(1)
		}
	}

	log.Println("All containers started successfully")

	code := m.Run()

	cleanup()
	cancelFunc()
	os.Exit(code)
}

// setupPostgreSQL starts a PostgreSQL container and creates the connection pool.
func setupPostgreSQL(ctx context.Context) error {
	var err error

	log.Println("Starting PostgreSQL container...")
	pgContainer, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	pgURL, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
	}

	pgPool, err = pgxpool.New(ctx, pgURL)
	if err != nil {
		return fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	if err := pgPool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	log.Println("PostgreSQL container ready")
	return nil
}

// setupMongoDB starts a MongoDB container and creates the client.
func setupMongoDB(ctx context.Context) error {
	var err error

	log.Println("Starting MongoDB container...")
	mongoContainer, err = mongodb.Run(ctx, "mongo:7")
	if err != nil {
		return fmt.Errorf("failed to start MongoDB container: %w", err)
	}

	mongoURL, err = mongoContainer.ConnectionString(ctx)
	if err != nil {
		return fmt.Errorf("failed to get MongoDB connection string: %w", err)
	}

	mongoClient, err = mongo.Connect(options.Client().ApplyURI(mongoURL))
	if err != nil {
		return fmt.Errorf("failed to create MongoDB client: %w", err)
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoDatabase = mongoClient.Database(testDatabase)

	log.Println("MongoDB container ready")
	return nil
}

// setupRedis starts a Redis container from the generic container API.
func setupRedis(ctx context.Context) error {
	var err error

	log.Println("Starting Redis container...")
	redisContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return fmt.Errorf("failed to start Redis container: %w", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to get Redis endpoint: %w", err)
	}
	redisURL = "redis://" + endpoint + "/0"

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient = redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Println("Redis container ready")
	return nil
}

// cleanup terminates all containers and connections.
func cleanup() {
	log.Println("Cleaning up test resources...")

	if pgPool != nil {
		pgPool.Close()
	}
	if mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Printf("Failed to disconnect MongoDB client: %v", err)
		}
		cancel()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	if pgContainer != nil {
		terminate("PostgreSQL", pgContainer)
	}
	if mongoContainer != nil {
		terminate("MongoDB", mongoContainer)
	}
	if redisContainer != nil {
		terminate("Redis", redisContainer)
	}

	log.Println("Cleanup complete")
}

func terminate(name string, c testcontainers.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Terminate(ctx); err != nil {
		log.Printf("Failed to terminate %s container: %v", name, err)
	}
}
