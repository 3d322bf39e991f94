// Package redis provides a transport that stores block records as Redis
// string values. Writes are queued on a pipeline and executed on Flush.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robert-malhotra/go-stepio/transport"
)

// Options configures the connection and key layout.
type Options struct {
	// Redis server address.
	Address string
	// Password required when connecting to the Redis server.
	Password string
	// DB to connect to.
	DB int
	// TLS config.
	TLSConfig *tls.Config
	// KeyPrefix is prepended to every record key.
	KeyPrefix string
	// TTL expires records after the given duration. Zero keeps them.
	TTL time.Duration
}

// DefaultOptions returns options for a local server.
func DefaultOptions() Options {
	return Options{
		Address: "localhost:6379",
	}
}

// Transport queues SETs on a pipeline.
type Transport struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	ownClient bool

	mu     sync.Mutex
	pipe   redis.Pipeliner
	queued int
	closed bool
}

// New connects a new client with options.
func New(options Options) *Transport {
	client := redis.NewClient(&redis.Options{
		TLSConfig: options.TLSConfig,
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB,
	})
	t := NewWithClient(client, options)
	t.ownClient = true
	return t
}

// NewWithClient uses an existing client, which Close leaves open.
func NewWithClient(client *redis.Client, options Options) *Transport {
	return &Transport{
		client:    client,
		keyPrefix: options.KeyPrefix,
		ttl:       options.TTL,
		pipe:      client.Pipeline(),
	}
}

// Name returns "redis:<addr>/<db>".
func (t *Transport) Name() string {
	opts := t.client.Options()
	return fmt.Sprintf("redis:%s/%d", opts.Addr, opts.DB)
}

// Write queues a SET of a private copy of data.
func (t *Transport) Write(ctx context.Context, key string, data []byte) (transport.Locator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.Locator{}, transport.ErrClosed
	}
	full := t.keyPrefix + key
	t.pipe.Set(ctx, full, slices.Clone(data), t.ttl)
	t.queued++
	return transport.Locator{Transport: t.Name(), Key: full, Length: int64(len(data))}, nil
}

// Read GETs the record.
func (t *Transport) Read(ctx context.Context, loc transport.Locator) ([]byte, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, transport.ErrClosed
	}
	t.mu.Unlock()

	data, err := t.client.Get(ctx, loc.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, loc.Key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", loc.Key, err)
	}
	return data, nil
}

// Flush executes the queued pipeline.
func (t *Transport) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}
	return t.execLocked(ctx)
}

func (t *Transport) execLocked(ctx context.Context) error {
	if t.queued == 0 {
		return nil
	}
	_, err := t.pipe.Exec(ctx)
	t.queued = 0
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Close executes the queued pipeline and closes an owned client.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}
	t.closed = true

	err := t.execLocked(ctx)
	if t.ownClient {
		if cerr := t.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ transport.Transport = (*Transport)(nil)
