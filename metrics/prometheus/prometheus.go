// Package prometheus implements stepio.Metrics with Prometheus collectors.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/robert-malhotra/go-stepio/stepio"
)

// metrics is the Prometheus implementation of stepio.Metrics.
type metrics struct {
	stepsTotal        *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	transportOpsTotal *prometheus.CounterVec
	transportDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
	spanBytesReserved prometheus.Gauge
}

// New registers the stepio collectors with reg and returns the metrics
// sink. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) stepio.Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &metrics{
		stepsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepio_steps_total",
				Help: "Total number of ended steps by engine role and status",
			},
			[]string{"role", "status"},
		),
		stepDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "stepio_step_duration_milliseconds",
				Help: "Duration of EndStep in milliseconds",
				Buckets: []float64{
					1,     // in-memory transports
					10,    // local files
					50,    // 50ms
					100,   // 100ms
					500,   // remote object stores
					1000,  // 1s
					5000,  // large steps
					30000, // 30s
				},
			},
			[]string{"role"},
		),
		transportOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepio_transport_operations_total",
				Help: "Total number of transport operations by transport, operation and status",
			},
			[]string{"transport", "operation", "status"},
		),
		transportDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stepio_transport_operation_duration_milliseconds",
				Help:    "Duration of transport operations in milliseconds",
				Buckets: []float64{0.1, 1, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"transport", "operation"},
		),
		bytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepio_payload_bytes_total",
				Help: "Total payload bytes moved by puts and gets",
			},
			[]string{"operation"},
		),
		spanBytesReserved: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "stepio_span_bytes_reserved",
				Help: "Bytes currently reserved in span arenas",
			},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func (m *metrics) ObserveStep(role string, duration time.Duration, err error) {
	m.stepsTotal.WithLabelValues(role, status(err)).Inc()
	m.stepDuration.WithLabelValues(role).Observe(millis(duration))
}

func (m *metrics) ObserveTransport(transport, op string, duration time.Duration, err error) {
	m.transportOpsTotal.WithLabelValues(transport, op, status(err)).Inc()
	m.transportDuration.WithLabelValues(transport, op).Observe(millis(duration))
}

func (m *metrics) RecordBytes(op string, bytes int64) {
	m.bytesTotal.WithLabelValues(op).Add(float64(bytes))
}

func (m *metrics) SetSpanBytes(bytes int64) {
	m.spanBytesReserved.Set(float64(bytes))
}
