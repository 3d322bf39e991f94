package stepio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robert-malhotra/go-stepio/internal/logger"
	"github.com/robert-malhotra/go-stepio/transport"
)

// transports is the ordered set of sinks of one engine. Operations that
// span several transports attempt every one of them and report the first
// failure; later failures are logged.
type transports struct {
	list    []transport.Transport
	closed  []bool
	log     *slog.Logger
	metrics Metrics
}

func (c *transports) attach(t transport.Transport) int {
	c.list = append(c.list, t)
	c.closed = append(c.closed, false)
	return len(c.list) - 1
}

func (c *transports) len() int { return len(c.list) }

// targets returns the indices addressed by idx: all of them in attachment
// order for AllTransports, otherwise just idx.
func (c *transports) targets(idx int) ([]int, error) {
	if idx == AllTransports {
		out := make([]int, len(c.list))
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	if idx < 0 || idx >= len(c.list) {
		return nil, fmt.Errorf("%w: transport index %d (have %d)", ErrNotFound, idx, len(c.list))
	}
	return []int{idx}, nil
}

// run calls fn on every target, accumulating failures.
func (c *transports) run(ctx context.Context, targets []int, op string, fn func(context.Context, transport.Transport) error) error {
	var first error
	for _, i := range targets {
		if c.closed[i] {
			continue
		}
		t := c.list[i]
		start := time.Now()
		err := fn(ctx, t)
		observeTransport(c.metrics, t.Name(), op, time.Since(start), err)
		if err == nil {
			continue
		}
		terr := &TransportError{Index: i, Name: t.Name(), Op: op, Err: err}
		if first == nil {
			first = terr
			continue
		}
		c.log.Warn("transport failure", logger.KeyIndex, i, logger.KeyTransport, t.Name(),
			logger.KeyOperation, op, logger.Err(err))
	}
	return first
}

// write stores record on every open transport and returns the locators of
// those that accepted it.
func (c *transports) write(ctx context.Context, key string, record []byte) ([]transport.Locator, error) {
	var locs []transport.Locator
	all, _ := c.targets(AllTransports)
	err := c.run(ctx, all, "write", func(ctx context.Context, t transport.Transport) error {
		loc, err := t.Write(ctx, key, record)
		if err != nil {
			return err
		}
		locs = append(locs, loc)
		return nil
	})
	return locs, err
}

// resolve picks the transport that serves loc: the open one with the same
// name, else the one at the locator's position.
func (c *transports) resolve(loc transport.Locator, pos int) (int, bool) {
	for i, t := range c.list {
		if !c.closed[i] && t.Name() == loc.Transport {
			return i, true
		}
	}
	if pos < len(c.list) && !c.closed[pos] {
		return pos, true
	}
	return 0, false
}

// read fetches a record through the first locator that yields bytes
// accepted by check, trying locators in order.
func (c *transports) read(ctx context.Context, locs []transport.Locator, check func([]byte) error) ([]byte, error) {
	if len(locs) == 0 {
		return nil, fmt.Errorf("%w: block has no locators", ErrNotFound)
	}
	var first error
	for pos, loc := range locs {
		i, ok := c.resolve(loc, pos)
		if !ok {
			if first == nil {
				first = fmt.Errorf("%w: no transport serves %s", ErrNotFound, loc)
			}
			continue
		}
		t := c.list[i]
		start := time.Now()
		data, err := t.Read(ctx, loc)
		if err == nil && check != nil {
			err = check(data)
		}
		observeTransport(c.metrics, t.Name(), "read", time.Since(start), err)
		if err == nil {
			return data, nil
		}
		terr := &TransportError{Index: i, Name: t.Name(), Op: "read", Err: err}
		if first == nil {
			first = terr
		} else {
			c.log.Warn("read fallback failed", logger.KeyTransport, t.Name(), logger.KeyKey, loc.Key, logger.Err(err))
		}
	}
	return nil, first
}

func (c *transports) flush(ctx context.Context, idx int) error {
	targets, err := c.targets(idx)
	if err != nil {
		return err
	}
	return c.run(ctx, targets, "flush", func(ctx context.Context, t transport.Transport) error {
		return t.Flush(ctx)
	})
}

// close closes idx first and then every other transport in attachment
// order.
func (c *transports) close(ctx context.Context, idx int) error {
	targets, err := c.targets(idx)
	if err != nil {
		return err
	}
	if idx != AllTransports {
		for i := range c.list {
			if i != idx {
				targets = append(targets, i)
			}
		}
	}
	err = c.run(ctx, targets, "close", func(ctx context.Context, t transport.Transport) error {
		return t.Close(ctx)
	})
	for i := range c.closed {
		c.closed[i] = true
	}
	return err
}
