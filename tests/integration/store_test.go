//go:build integration

package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"postapi/internal/post"
	"postapi/internal/post/posttest/storetest"
)

func TestPostgreSQLStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) post.Store {
		resetPostgreSQL(t)
		store, err := post.NewPostgreSQLStore(testCtx, pgPool)
		require.NoError(t, err)
		return store
	})
}

func TestMongoDBStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) post.Store {
		resetMongoDB(t)
		store, err := post.NewMongoDBStore(mongoDatabase)
		require.NoError(t, err)
		return store
	})
}

func TestRedisStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) post.Store {
		store, err := post.NewRedisStore(redisClient, "test-"+uuid.NewString())
		require.NoError(t, err)
		return store
	})
}
