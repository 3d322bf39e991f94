// Package transport defines the sink contract the engine materialises
// block records into.
//
// A Transport stores opaque records under keys chosen by the engine and
// returns a Locator that is later recorded in the block index. Records
// written before a successful Flush may be invisible to other processes;
// after Flush returns they must be readable through any transport
// configured against the same backing store.
//
// Implementations in sub-packages:
//
//   - memory: shared in-process store, publishes staged records on Flush
//   - file: append-only data files, fsync on Flush
//   - s3: one object per record, uploaded on Flush
//   - redis: pipelined SETs executed on Flush
package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("transport: closed")

	// ErrNotFound is returned when a locator does not resolve to a record.
	ErrNotFound = errors.New("transport: record not found")
)

// Locator is where a transport put a record.
type Locator struct {
	// Transport is the Name of the transport that wrote the record.
	Transport string
	Key       string
	Offset    int64
	Length    int64
}

// String renders the locator for listings.
func (l Locator) String() string {
	return fmt.Sprintf("%s:%s@%d+%d", l.Transport, l.Key, l.Offset, l.Length)
}

// Transport is a sink for block records.
type Transport interface {
	// Name identifies the transport kind and its backing store, and is
	// stamped into every Locator it returns.
	Name() string

	// Write stores data under key. The caller may reuse data on return.
	Write(ctx context.Context, key string, data []byte) (Locator, error)

	// Read returns the record at loc.
	Read(ctx context.Context, loc Locator) ([]byte, error)

	// Flush makes every record written so far durable and visible.
	Flush(ctx context.Context) error

	// Close flushes and releases resources. The transport is unusable
	// afterwards.
	Close(ctx context.Context) error
}
