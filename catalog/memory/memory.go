// Package memory provides an in-process catalog shared by every engine
// holding the same *Catalog.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/robert-malhotra/go-stepio/catalog"
)

type dataset struct {
	writers  int
	vars     map[string]catalog.Variable
	commits  map[int][]catalog.Commit
	finished map[int]struct{}
}

// Catalog keeps every dataset in maps guarded by one RWMutex.
type Catalog struct {
	mu       sync.RWMutex
	datasets map[string]*dataset
	closed   bool
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{datasets: make(map[string]*dataset)}
}

func (c *Catalog) datasetLocked(name string) *dataset {
	d, ok := c.datasets[name]
	if !ok {
		d = &dataset{
			vars:     make(map[string]catalog.Variable),
			commits:  make(map[int][]catalog.Commit),
			finished: make(map[int]struct{}),
		}
		c.datasets[name] = d
	}
	return d
}

func (d *dataset) claimWriters(writers int) error {
	if d.writers == 0 {
		d.writers = writers
		return nil
	}
	if d.writers != writers {
		return fmt.Errorf("%w: dataset has %d writers, got %d", catalog.ErrConflict, d.writers, writers)
	}
	return nil
}

// DefineVariables implements catalog.Catalog.
func (c *Catalog) DefineVariables(ctx context.Context, name string, vars []catalog.Variable) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return catalog.ErrClosed
	}
	d := c.datasetLocked(name)
	for _, v := range vars {
		if old, ok := d.vars[v.Name]; ok && !old.Compatible(v) {
			return fmt.Errorf("%w: variable %q redefined", catalog.ErrConflict, v.Name)
		}
	}
	for _, v := range vars {
		d.vars[v.Name] = v
	}
	return nil
}

// Variables implements catalog.Catalog.
func (c *Catalog) Variables(ctx context.Context, name string) ([]catalog.Variable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, catalog.ErrClosed
	}
	d, ok := c.datasets[name]
	if !ok {
		return nil, nil
	}
	return slices.SortedFunc(maps.Values(d.vars), func(a, b catalog.Variable) int {
		return strings.Compare(a.Name, b.Name)
	}), nil
}

func (c *Catalog) record(name string, writers int, step int, commit catalog.Commit) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return catalog.ErrClosed
	}
	d := c.datasetLocked(name)
	if err := d.claimWriters(writers); err != nil {
		return err
	}
	if slices.ContainsFunc(d.commits[step], func(x catalog.Commit) bool { return x.Writer == commit.Writer }) {
		return fmt.Errorf("%w: writer %d already settled step %d", catalog.ErrConflict, commit.Writer, step)
	}
	d.commits[step] = append(d.commits[step], commit)
	return nil
}

// CommitStep implements catalog.Catalog.
func (c *Catalog) CommitStep(ctx context.Context, name string, writer, writers, step int, blocks []catalog.Block) error {
	return c.record(name, writers, step, catalog.Commit{Writer: writer, Blocks: slices.Clone(blocks)})
}

// AbortStep implements catalog.Catalog.
func (c *Catalog) AbortStep(ctx context.Context, name string, writer, writers, step int) error {
	return c.record(name, writers, step, catalog.Commit{Writer: writer, Aborted: true})
}

// Step implements catalog.Catalog.
func (c *Catalog) Step(ctx context.Context, name string, step int) ([]catalog.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, catalog.ErrClosed
	}
	d, ok := c.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q", catalog.ErrNotFound, name)
	}
	st := catalog.Summarize(d.writers, d.commits, len(d.finished))
	if !slices.Contains(st.Steps, step) {
		return nil, fmt.Errorf("%w: step %d of %q", catalog.ErrNotFound, step, name)
	}

	var blocks []catalog.Block
	for _, cm := range d.commits[step] {
		blocks = append(blocks, cm.Blocks...)
	}
	catalog.SortBlocks(blocks)
	return blocks, nil
}

// Status implements catalog.Catalog.
func (c *Catalog) Status(ctx context.Context, name string) (catalog.Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return catalog.Status{}, catalog.ErrClosed
	}
	d, ok := c.datasets[name]
	if !ok {
		return catalog.Status{}, nil
	}
	return catalog.Summarize(d.writers, d.commits, len(d.finished)), nil
}

// Finish implements catalog.Catalog.
func (c *Catalog) Finish(ctx context.Context, name string, writer, writers int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return catalog.ErrClosed
	}
	d := c.datasetLocked(name)
	if err := d.claimWriters(writers); err != nil {
		return err
	}
	d.finished[writer] = struct{}{}
	return nil
}

// Close implements catalog.Catalog.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

var _ catalog.Catalog = (*Catalog)(nil)
