// Package catalog defines the shared block metadata store that writers
// commit steps to and readers discover steps from.
//
// A dataset is written by a fixed group of writers (ranks 0..writers-1).
// Every writer commits each step it ends, or aborts it when the step
// failed. A step is settled once every writer committed or aborted it and
// visible once it is settled and nobody aborted it; readers only ever see
// visible steps, which gives the collective end-of-step barrier across
// writers. A dataset is finished once every writer called Finish.
package catalog

import (
	"context"
	"errors"
	"slices"

	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/transport"
)

var (
	// ErrNotFound is returned for unknown datasets and steps that are not
	// visible.
	ErrNotFound = errors.New("catalog: not found")

	// ErrConflict is returned when a definition or commit contradicts what
	// the catalog already holds.
	ErrConflict = errors.New("catalog: conflict")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("catalog: closed")
)

// Shape classifies a variable.
type Shape uint8

const (
	// ShapeValue is a single element per writer per step.
	ShapeValue Shape = iota
	// ShapeGlobalArray has a global shape; writers contribute boxes of it.
	ShapeGlobalArray
	// ShapeLocalArray has no global shape; every writer block stands alone.
	ShapeLocalArray
)

func (s Shape) String() string {
	switch s {
	case ShapeValue:
		return "value"
	case ShapeGlobalArray:
		return "global"
	case ShapeLocalArray:
		return "local"
	}
	return "unknown"
}

// Variable is the definition of a variable shared by all writers.
type Variable struct {
	Name      string
	Type      dtype.Kind
	Shape     Shape
	Dims      []uint64
	Constant  bool
	Operators string
}

// Compatible reports whether two definitions of the same name agree.
func (v Variable) Compatible(o Variable) bool {
	return v.Name == o.Name && v.Type == o.Type && v.Shape == o.Shape &&
		(v.Shape != ShapeGlobalArray || slices.Equal(v.Dims, o.Dims))
}

// Block describes one block of one variable written by one writer in one
// step.
type Block struct {
	Variable string
	Step     int
	WriterID int
	BlockID  int
	Type     dtype.Kind
	Shape    []uint64
	Start    []uint64
	Count    []uint64
	// Locators has one entry per transport that accepted the record, in
	// transport attachment order.
	Locators []transport.Locator
	// Min and Max are the dtype encodings of the block extremes, empty for
	// unordered types.
	Min     []byte
	Max     []byte
	IsValue bool
}

// Status summarises a dataset.
type Status struct {
	Writers int
	// Steps lists the visible steps in ascending order.
	Steps []int
	// Settled is the number of leading steps every writer committed or
	// aborted; a writer appending to the dataset resumes there.
	Settled  int
	Finished bool
}

// Catalog is the shared metadata store. Implementations are safe for
// concurrent use.
type Catalog interface {
	// DefineVariables records definitions; redefinitions must be
	// compatible.
	DefineVariables(ctx context.Context, dataset string, vars []Variable) error

	// Variables returns the definitions of a dataset sorted by name.
	Variables(ctx context.Context, dataset string) ([]Variable, error)

	// CommitStep records the blocks writer wrote in step.
	CommitStep(ctx context.Context, dataset string, writer, writers, step int, blocks []Block) error

	// AbortStep records that writer's step failed.
	AbortStep(ctx context.Context, dataset string, writer, writers, step int) error

	// Step returns the blocks of a visible step.
	Step(ctx context.Context, dataset string, step int) ([]Block, error)

	// Status returns the dataset summary. Unknown datasets report a zero
	// Status and no error so readers can wait for the first writer.
	Status(ctx context.Context, dataset string) (Status, error)

	// Finish marks writer as done with the dataset.
	Finish(ctx context.Context, dataset string, writer, writers int) error

	// Close releases resources.
	Close() error
}

// Commit is one writer's record of one step.
type Commit struct {
	Writer  int
	Aborted bool
	Blocks  []Block
}

// Summarize derives a Status from the per-step commits of a dataset.
// Implementations load their records and delegate here so settlement and
// visibility follow one rule.
func Summarize(writers int, commits map[int][]Commit, finished int) Status {
	st := Status{Writers: writers, Finished: writers > 0 && finished >= writers}
	if writers == 0 {
		return st
	}

	steps := make([]int, 0, len(commits))
	for s := range commits {
		steps = append(steps, s)
	}
	slices.Sort(steps)

	settled := true
	for _, s := range steps {
		cs := commits[s]
		complete := countWriters(cs) >= writers
		if settled && complete && s == st.Settled {
			st.Settled = s + 1
		} else {
			settled = false
		}
		if complete && !slices.ContainsFunc(cs, func(c Commit) bool { return c.Aborted }) {
			st.Steps = append(st.Steps, s)
		}
	}
	return st
}

func countWriters(cs []Commit) int {
	seen := make(map[int]struct{}, len(cs))
	for _, c := range cs {
		seen[c.Writer] = struct{}{}
	}
	return len(seen)
}

// SortBlocks orders blocks by writer, then block id, then variable.
func SortBlocks(blocks []Block) {
	slices.SortStableFunc(blocks, func(a, b Block) int {
		if a.WriterID != b.WriterID {
			return a.WriterID - b.WriterID
		}
		if a.BlockID != b.BlockID {
			return a.BlockID - b.BlockID
		}
		switch {
		case a.Variable < b.Variable:
			return -1
		case a.Variable > b.Variable:
			return 1
		}
		return 0
	})
}
