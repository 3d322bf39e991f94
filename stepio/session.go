package stepio

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/robert-malhotra/go-stepio/catalog"
	catalogmemory "github.com/robert-malhotra/go-stepio/catalog/memory"
	"github.com/robert-malhotra/go-stepio/internal/logger"
	"github.com/robert-malhotra/go-stepio/transport/memory"
)

const tracerName = "github.com/robert-malhotra/go-stepio"

// Session owns the engines opened through it. Engine names are unique per
// session until the engine is closed. A Session is safe for concurrent
// use; the engines it hands out are not.
//
// Engines opened without WithCatalog share a session-wide in-memory
// catalog, and engines opened without transports get an in-memory
// transport over a session-wide store named after the dataset, so a writer
// and a reader of the same session see each other's data with no setup.
type Session struct {
	opts []EngineOption

	mu      sync.Mutex
	engines map[string]*Engine
	catalog catalog.Catalog
	stores  map[string]*memory.Store
}

// NewSession returns a session whose engines start from opts.
func NewSession(opts ...EngineOption) *Session {
	return &Session{
		opts:    opts,
		engines: make(map[string]*Engine),
		stores:  make(map[string]*memory.Store),
	}
}

// Open opens a writer (ModeWrite, ModeAppend) or reader (ModeRead) on the
// dataset name.
func (s *Session) Open(ctx context.Context, name string, mode Mode, opts ...EngineOption) (*Engine, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty engine name", ErrInvalidState)
	}

	o := defaultEngineOptions()
	for _, opt := range append(slices.Clone(s.opts), opts...) {
		opt(o)
	}
	if o.err != nil {
		return nil, o.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.engines[name]; ok {
		return nil, fmt.Errorf("%w: engine %q is already open", ErrInvalidState, name)
	}
	if o.catalog == nil {
		if s.catalog == nil {
			s.catalog = catalogmemory.New()
		}
		o.catalog = s.catalog
	}
	if len(o.transports) == 0 {
		o.transports = append(o.transports, memory.New(s.storeLocked(name)))
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	kind := roleWriter
	if mode == ModeRead {
		kind = roleReader
	}
	log := o.logger
	if log == nil {
		log = logger.With(logger.KeyEngine, name, logger.KeyRole, string(kind))
	}
	core := newEngineCore(name, o, log)

	var impl engineImpl
	var err error
	switch mode {
	case ModeWrite, ModeAppend:
		impl, err = openWriter(ctx, core, mode)
	case ModeRead:
		impl, err = openReader(ctx, core)
	default:
		err = fmt.Errorf("%w: open mode %d", ErrInvalidState, mode)
	}
	if err != nil {
		return nil, err
	}

	e := &Engine{name: name, mode: mode, kind: kind, impl: impl, session: s}
	s.engines[name] = e
	log.Debug("engine opened", "mode", mode.String(), logger.KeyWriter, o.rank)
	return e, nil
}

func (s *Session) storeLocked(name string) *memory.Store {
	st, ok := s.stores[name]
	if !ok {
		st = memory.NewStore(name)
		s.stores[name] = st
	}
	return st
}

// Engine returns the open engine called name.
func (s *Session) Engine(name string) (*Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[name]
	return e, ok
}

// Engines returns the names of the open engines in sorted order.
func (s *Session) Engines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.engines))
}

func (s *Session) remove(name string, e *Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engines[name] == e {
		delete(s.engines, name)
	}
}

// Close closes every open engine and the session's own catalog. It
// returns the first error.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	engines := slices.Collect(maps.Values(s.engines))
	s.mu.Unlock()

	slices.SortFunc(engines, func(a, b *Engine) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})

	var first error
	for _, e := range engines {
		if err := e.Close(ctx, AllTransports); err != nil && first == nil {
			first = err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil && first == nil {
			first = err
		}
		s.catalog = nil
	}
	return first
}
