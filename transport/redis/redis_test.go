package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-stepio/transport"
)

func TestWriteQueuesWithoutNetwork(t *testing.T) {
	tr := New(Options{Address: "127.0.0.1:1", DB: 3, KeyPrefix: "stp:"})

	loc, err := tr.Write(context.Background(), "ds/0/0/x/0", []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "stp:ds/0/0/x/0", loc.Key)
	assert.Equal(t, "redis:127.0.0.1:1/3", loc.Transport)
	assert.EqualValues(t, 3, loc.Length)
}

func TestClosedTransport(t *testing.T) {
	tr := New(DefaultOptions())
	tr.closed = true

	_, err := tr.Write(context.Background(), "k", nil)
	assert.ErrorIs(t, err, transport.ErrClosed)
	_, err = tr.Read(context.Background(), transport.Locator{Key: "k"})
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, tr.Flush(context.Background()), transport.ErrClosed)
}
