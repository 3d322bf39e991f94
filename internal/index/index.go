// Package index keeps the block ledger of one engine: the blocks staged in
// the current step and the blocks of every finalised step.
//
// Staged blocks are never returned by the lookup methods. They become
// visible only through Commit, and Discard drops them, so a failed step
// leaves no partial entries behind.
package index

import (
	"maps"
	"slices"

	"github.com/robert-malhotra/go-stepio/catalog"
)

// Index is the per-engine block ledger. It is not safe for concurrent use.
type Index struct {
	staged []catalog.Block

	// committed maps variable name to step to blocks.
	committed map[string]map[int][]catalog.Block
	steps     map[int]struct{}
}

// New returns an empty index.
func New() *Index {
	return &Index{
		committed: make(map[string]map[int][]catalog.Block),
		steps:     make(map[int]struct{}),
	}
}

// Stage adds a block to the current step.
func (x *Index) Stage(b catalog.Block) {
	x.staged = append(x.staged, b)
}

// Staged returns the blocks of the current step in staging order.
func (x *Index) Staged() []catalog.Block {
	return slices.Clone(x.staged)
}

// Commit publishes the staged blocks as step and returns them. A step with
// no blocks is still recorded.
func (x *Index) Commit(step int) []catalog.Block {
	blocks := x.staged
	x.staged = nil
	for i := range blocks {
		blocks[i].Step = step
	}
	x.Load(step, blocks)
	return blocks
}

// Discard drops the staged blocks.
func (x *Index) Discard() {
	x.staged = nil
}

// Load records the blocks of a finalised step, replacing what was known
// about that step.
func (x *Index) Load(step int, blocks []catalog.Block) {
	for _, steps := range x.committed {
		delete(steps, step)
	}
	for _, b := range blocks {
		steps, ok := x.committed[b.Variable]
		if !ok {
			steps = make(map[int][]catalog.Block)
			x.committed[b.Variable] = steps
		}
		steps[step] = append(steps[step], b)
	}
	x.steps[step] = struct{}{}
}

// Blocks returns the blocks variable has in step, nil if none.
func (x *Index) Blocks(variable string, step int) []catalog.Block {
	return slices.Clone(x.committed[variable][step])
}

// AllSteps returns every block of variable keyed by step.
func (x *Index) AllSteps(variable string) map[int][]catalog.Block {
	out := make(map[int][]catalog.Block, len(x.committed[variable]))
	for step, blocks := range x.committed[variable] {
		out[step] = slices.Clone(blocks)
	}
	return out
}

// Steps returns the ascending steps in which variable has blocks.
func (x *Index) Steps(variable string) []int {
	return slices.Sorted(maps.Keys(x.committed[variable]))
}

// StepCount returns how many finalised steps the index knows.
func (x *Index) StepCount() int {
	return len(x.steps)
}

// Has reports whether step was finalised.
func (x *Index) Has(step int) bool {
	_, ok := x.steps[step]
	return ok
}
