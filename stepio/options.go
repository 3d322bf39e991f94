package stepio

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/operator"
	"github.com/robert-malhotra/go-stepio/transport"
)

// DefaultPollInterval is how often a waiting reader polls the catalog.
const DefaultPollInterval = 10 * time.Millisecond

// DefaultSpanPageSize is the size of one span arena page in bytes.
const DefaultSpanPageSize = 1 << 20

// EngineOption configures an engine. Options given to NewSession apply to
// every engine the session opens; options given to Open override them.
type EngineOption func(*engineOptions)

type engineOptions struct {
	rank         int
	writers      int
	catalog      catalog.Catalog
	transports   []transport.Transport
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      Metrics
	tracer       trace.Tracer
	operators    []operator.Spec
	spanPageSize int
	err          error
}

func defaultEngineOptions() *engineOptions {
	return &engineOptions{
		writers:      1,
		pollInterval: DefaultPollInterval,
		spanPageSize: DefaultSpanPageSize,
	}
}

// WithRank sets the writer rank and the number of writers sharing the
// dataset. A step becomes visible to readers once all writers ended it.
// Open fails with ErrInvalidState unless 0 <= rank < writers.
func WithRank(rank, writers int) EngineOption {
	return func(o *engineOptions) {
		if writers <= 0 || rank < 0 || rank >= writers {
			o.err = fmt.Errorf("%w: rank %d of %d writers", ErrInvalidState, rank, writers)
			return
		}
		o.rank, o.writers = rank, writers
	}
}

// WithCatalog sets the shared block catalog.
func WithCatalog(c catalog.Catalog) EngineOption {
	return func(o *engineOptions) {
		o.catalog = c
	}
}

// WithTransports attaches transports in order, indices 0, 1, ... The
// engine owns them and closes them on Close.
func WithTransports(ts ...transport.Transport) EngineOption {
	return func(o *engineOptions) {
		o.transports = append(o.transports, ts...)
	}
}

// WithPollInterval sets how often a reader waiting in BeginStep polls the
// catalog.
func WithPollInterval(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithLogger sets the logger. Defaults to the package logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m Metrics) EngineOption {
	return func(o *engineOptions) {
		o.metrics = m
	}
}

// WithTracer sets the tracer. Defaults to the global provider's tracer.
func WithTracer(t trace.Tracer) EngineOption {
	return func(o *engineOptions) {
		o.tracer = t
	}
}

// WithOperators sets the default operator chain of new variables, e.g.
// "shuffle,zstd:3" or "deflate:6,fletcher32".
func WithOperators(chain string) EngineOption {
	return func(o *engineOptions) {
		specs, err := operator.ParseSpecs(chain)
		if err != nil {
			o.err = err
			return
		}
		o.operators = specs
	}
}

// WithSpanPageSize sets the span arena page size in bytes.
func WithSpanPageSize(bytes int) EngineOption {
	return func(o *engineOptions) {
		if bytes >= 8 {
			o.spanPageSize = bytes
		}
	}
}

// VariableOption configures a variable definition.
type VariableOption func(*variableOptions)

type variableOptions struct {
	constant  bool
	operators []operator.Spec
	hasOps    bool
	err       error
}

// WithConstant marks the variable's dimensions and selection as fixed for
// the engine's life once the first step using it ended.
func WithConstant() VariableOption {
	return func(o *variableOptions) {
		o.constant = true
	}
}

// WithVariableOperators overrides the engine's operator chain for one
// variable. An empty chain stores the variable raw.
func WithVariableOperators(chain string) VariableOption {
	return func(o *variableOptions) {
		specs, err := operator.ParseSpecs(chain)
		if err != nil {
			o.err = err
			return
		}
		o.operators, o.hasOps = specs, true
	}
}
