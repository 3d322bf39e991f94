//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/robert-malhotra/go-stepio/transport"
)

func startRedis(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := testcontainers.Run(
		ctx, "redis:latest",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, c)

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisRoundTrip(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	w := New(Options{Address: addr, KeyPrefix: "it:"})
	r := New(Options{Address: addr, KeyPrefix: "it:"})
	t.Cleanup(func() { _ = r.Close(ctx) })

	loc, err := w.Write(ctx, "ds/0/0/x/0", []byte("payload"))
	require.NoError(t, err)

	_, err = r.Read(ctx, loc)
	require.ErrorIs(t, err, transport.ErrNotFound, "queued writes are invisible before Flush")

	require.NoError(t, w.Flush(ctx))
	got, err := r.Read(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	require.NoError(t, w.Close(ctx))
}
