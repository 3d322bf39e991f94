// Package memory provides an in-process transport. Several transports
// created over the same Store behave like processes sharing a filesystem:
// writes are staged per transport and become visible to all of them on
// Flush.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/robert-malhotra/go-stepio/transport"
)

// Store is the shared backing map.
type Store struct {
	mu      sync.RWMutex
	name    string
	records map[string][]byte
}

// NewStore creates an empty store. name distinguishes stores in locators.
func NewStore(name string) *Store {
	return &Store{name: name, records: make(map[string][]byte)}
}

// Keys returns the published keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.records))
}

// Len returns the number of published records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) publish(pending map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.records, pending)
}

func (s *Store) get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.records[key]
	return b, ok
}

// Transport stages records for one engine.
type Transport struct {
	store *Store

	mu      sync.Mutex
	pending map[string][]byte
	closed  bool
}

// New creates a transport over store.
func New(store *Store) *Transport {
	return &Transport{store: store, pending: make(map[string][]byte)}
}

// Name returns "memory:<store name>".
func (t *Transport) Name() string {
	return "memory:" + t.store.name
}

// Write stages a private copy of data.
func (t *Transport) Write(ctx context.Context, key string, data []byte) (transport.Locator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.Locator{}, transport.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return transport.Locator{}, err
	}
	t.pending[key] = slices.Clone(data)
	return transport.Locator{Transport: t.Name(), Key: key, Length: int64(len(data))}, nil
}

// Read returns a published record.
func (t *Transport) Read(ctx context.Context, loc transport.Locator) ([]byte, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}

	b, ok := t.store.get(loc.Key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, loc.Key)
	}
	return slices.Clone(b), nil
}

// Flush publishes staged records to the store.
func (t *Transport) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}
	t.store.publish(t.pending)
	clear(t.pending)
	return nil
}

// Close publishes staged records and closes the transport.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}
	t.store.publish(t.pending)
	t.pending = nil
	t.closed = true
	return nil
}

var _ transport.Transport = (*Transport)(nil)
