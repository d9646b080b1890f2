//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"postapi/config"
	"postapi/internal/app"
)

// resetPostgreSQL drops the posts table so the next store starts empty.
func resetPostgreSQL(t *testing.T) {
	t.Helper()
	_, err := pgPool.Exec(testCtx, `DROP TABLE IF EXISTS posts`)
	require.NoError(t, err, "failed to drop posts table")
}

// resetMongoDB drops the posts and counters collections.
func resetMongoDB(t *testing.T) {
	t.Helper()
	require.NoError(t, mongoDatabase.Collection("posts").Drop(testCtx))
	require.NoError(t, mongoDatabase.Collection("counters").Drop(testCtx))
}

// countPosts reads the row count straight from the backing database.
func countPosts(t *testing.T, cfg *config.Config) int64 {
	t.Helper()
	switch cfg.Storage.Type {
	case "postgresql":
		var n int64
		require.NoError(t, pgPool.QueryRow(testCtx, `SELECT COUNT(*) FROM posts`).Scan(&n))
		return n
	case "mongodb":
		n, err := mongoDatabase.Collection("posts").CountDocuments(testCtx, bson.D{})
		require.NoError(t, err)
		return n
	case "redis":
		n, err := redisClient.ZCard(testCtx, cfg.Storage.Redis.KeyPrefix+":posts:ids").Result()
		require.NoError(t, err)
		return n
	default:
		t.Fatalf("unsupported storage type %q", cfg.Storage.Type)
		return 0
	}
}

// serverFixture is a running app bound to a free local port.
type serverFixture struct {
	URL string
	App *app.App
}

func startServer(t *testing.T, cfg *config.Config) *serverFixture {
	t.Helper()

	port, err := findAvailablePort()
	require.NoError(t, err, "failed to find available port")
	cfg.Server.Port = fmt.Sprintf("%d", port)

	application, err := app.New(testCtx, app.Config{AppConfig: cfg})
	require.NoError(t, err, "failed to create app")

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	go func() {
		_ = application.Start(addr)
	}()

	url := "http://" + addr
	require.NoError(t, waitForServer(url+"/health"), "server failed to become healthy")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		require.NoError(t, application.Shutdown(ctx))
	})

	return &serverFixture{URL: url, App: application}
}

func findAvailablePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForServer(url string) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("server at %s did not become healthy", url)
}

// call sends a request and returns the status code and body.
func call(t *testing.T, method, url, body string) (int, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err, "failed to create request")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "failed to send request")
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	return resp.StatusCode, string(b)
}
