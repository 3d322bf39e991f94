package stepio

import "time"

// Metrics receives engine measurements. A nil Metrics is valid and records
// nothing; metrics/prometheus provides an implementation.
type Metrics interface {
	// ObserveStep records one EndStep of an engine role ("writer" or
	// "reader").
	ObserveStep(role string, duration time.Duration, err error)

	// ObserveTransport records one transport operation.
	ObserveTransport(transport, op string, duration time.Duration, err error)

	// RecordBytes counts payload bytes moved by op ("put" or "get").
	RecordBytes(op string, bytes int64)

	// SetSpanBytes reports the bytes reserved in the span arena.
	SetSpanBytes(bytes int64)
}

func observeStep(m Metrics, role string, d time.Duration, err error) {
	if m != nil {
		m.ObserveStep(role, d, err)
	}
}

func observeTransport(m Metrics, name, op string, d time.Duration, err error) {
	if m != nil {
		m.ObserveTransport(name, op, d, err)
	}
}

func recordBytes(m Metrics, op string, n int) {
	if m != nil && n > 0 {
		m.RecordBytes(op, int64(n))
	}
}

func setSpanBytes(m Metrics, n uint64) {
	if m != nil {
		m.SetSpanBytes(int64(n))
	}
}
