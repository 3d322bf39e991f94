package stepio

import (
	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
)

// Element is the closed set of element types a variable can hold.
type Element = dtype.Element

// Kind identifies an element type.
type Kind = dtype.Kind

// Element kinds.
const (
	Int8       = dtype.Int8
	Int16      = dtype.Int16
	Int32      = dtype.Int32
	Int64      = dtype.Int64
	Uint8      = dtype.Uint8
	Uint16     = dtype.Uint16
	Uint32     = dtype.Uint32
	Uint64     = dtype.Uint64
	Float32    = dtype.Float32
	Float64    = dtype.Float64
	Complex64  = dtype.Complex64
	Complex128 = dtype.Complex128
	String     = dtype.String
)

// BlockInfo describes one block written by one writer in one step.
type BlockInfo = catalog.Block

// Mode is the open mode of an engine.
type Mode int

const (
	// ModeWrite creates a new dataset.
	ModeWrite Mode = iota
	// ModeAppend continues an existing dataset after its last settled step.
	ModeAppend
	// ModeRead consumes a dataset step by step.
	ModeRead
)

func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeAppend:
		return "append"
	case ModeRead:
		return "read"
	}
	return "unknown"
}

// StepMode selects which step a reader's BeginStep moves to.
type StepMode int

const (
	// StepNext moves to the oldest step not read yet.
	StepNext StepMode = iota
	// StepLatest moves to the newest complete step, skipping older unread
	// ones.
	StepLatest
)

// StepStatus is the outcome of BeginStep.
type StepStatus int

const (
	StepOK StepStatus = iota
	StepEndOfStream
	// StepNotReady means the timeout expired before a step became
	// available. It is not an error; the caller may retry.
	StepNotReady
)

func (s StepStatus) String() string {
	switch s {
	case StepOK:
		return "ok"
	case StepEndOfStream:
		return "end-of-stream"
	case StepNotReady:
		return "not-ready"
	}
	return "unknown"
}

// TransferMode selects when a Put or Get moves data.
type TransferMode int

const (
	// Deferred queues the request until PerformPuts, PerformGets or
	// EndStep.
	Deferred TransferMode = iota
	// Sync moves data before the call returns.
	Sync
)

func (m TransferMode) String() string {
	if m == Sync {
		return "sync"
	}
	return "deferred"
}

// AllTransports addresses every attached transport in Flush and Close.
const AllTransports = -1
