// Package integration runs the post store contract and the HTTP API against
// real PostgreSQL, MongoDB and Redis instances started with testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
