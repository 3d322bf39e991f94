package logger

import "log/slog"

// Standard field keys. Use them consistently so logs from engines,
// transports and catalogs can be correlated.
const (
	KeyEngine    = "engine"    // engine (dataset) name
	KeyRole      = "role"      // writer or reader
	KeyStep      = "step"      // step number
	KeyVariable  = "variable"  // variable name
	KeyWriter    = "writer"    // writer rank
	KeyTransport = "transport" // transport name
	KeyIndex     = "index"     // transport attachment index
	KeyBlocks    = "blocks"    // number of blocks
	KeyBytes     = "bytes"     // payload size in bytes
	KeyKey       = "key"       // transport object key

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"
	KeyStatus     = "status"
)

// Err returns an error attribute, or an empty attribute for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
