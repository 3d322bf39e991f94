package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robert-malhotra/go-stepio/catalog"
	catalogbadger "github.com/robert-malhotra/go-stepio/catalog/badger"
	catalogmemory "github.com/robert-malhotra/go-stepio/catalog/memory"
	catalogsqlite "github.com/robert-malhotra/go-stepio/catalog/sqlite"
	"github.com/robert-malhotra/go-stepio/transport"
	"github.com/robert-malhotra/go-stepio/transport/file"
	transportmemory "github.com/robert-malhotra/go-stepio/transport/memory"
	transportredis "github.com/robert-malhotra/go-stepio/transport/redis"
	transports3 "github.com/robert-malhotra/go-stepio/transport/s3"
)

var (
	memoryStoresMu sync.Mutex
	memoryStores   = map[string]*transportmemory.Store{}
)

// memoryStore returns the process-wide store called name.
func memoryStore(name string) *transportmemory.Store {
	memoryStoresMu.Lock()
	defer memoryStoresMu.Unlock()
	s, ok := memoryStores[name]
	if !ok {
		s = transportmemory.NewStore(name)
		memoryStores[name] = s
	}
	return s
}

// CreateCatalog opens the configured catalog.
func CreateCatalog(cfg CatalogConfig) (catalog.Catalog, error) {
	switch cfg.Type {
	case "memory":
		return catalogmemory.New(), nil
	case "badger":
		return catalogbadger.Open(cfg.Path)
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create catalog directory: %w", err)
			}
		}
		return catalogsqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown catalog type: %q", cfg.Type)
	}
}

// CreateTransport builds one transport.
func CreateTransport(ctx context.Context, cfg TransportConfig) (transport.Transport, error) {
	switch cfg.Type {
	case "file":
		fsync := cfg.Sync == nil || *cfg.Sync
		return file.New(cfg.Dir, file.WithSync(fsync))
	case "s3":
		return transports3.NewFromConfig(ctx, transports3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			KeyPrefix:       cfg.S3.KeyPrefix,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Concurrency:     cfg.S3.Concurrency,
		})
	case "redis":
		return transportredis.New(transportredis.Options{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		}), nil
	case "memory":
		return transportmemory.New(memoryStore(cfg.Store)), nil
	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}

// CreateTransports builds every configured transport in order. On failure
// the ones already built are closed.
func CreateTransports(ctx context.Context, cfgs []TransportConfig) ([]transport.Transport, error) {
	out := make([]transport.Transport, 0, len(cfgs))
	for i, c := range cfgs {
		t, err := CreateTransport(ctx, c)
		if err != nil {
			for _, done := range out {
				_ = done.Close(ctx)
			}
			return nil, fmt.Errorf("transport %d (%s): %w", i, c.Type, err)
		}
		out = append(out, t)
	}
	return out, nil
}
