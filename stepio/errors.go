package stepio

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrInvalidState  = errors.New("stepio: invalid state")
	ErrNotFound      = errors.New("stepio: not found")
	ErrShapeMismatch = errors.New("stepio: shape mismatch")
	ErrTypeMismatch  = errors.New("stepio: type mismatch")
	ErrUseAfterClose = errors.New("stepio: engine is closed")
	ErrTransport     = errors.New("stepio: transport failure")
	ErrSpanInvalid   = errors.New("stepio: span no longer valid")
	ErrUnsupported   = errors.New("stepio: unsupported")
)

// TransportError is a failure of one attached transport. It matches
// ErrTransport with errors.Is.
type TransportError struct {
	Index int    // attachment index
	Name  string // transport name
	Op    string // write, read, flush or close
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stepio: transport %d (%s) %s: %v", e.Index, e.Name, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports ErrTransport as a match.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
