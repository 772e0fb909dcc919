package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes recorded by ClientMetrics.
const (
	OutcomeSuccess        = "success"
	OutcomeTransportError = "transport_error"
	OutcomeUpstreamError  = "upstream_error"
)

// ClientMetrics records evaluation client calls. A nil *ClientMetrics is
// valid and records nothing.
type ClientMetrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	batchItems *prometheus.CounterVec
}

// NewClientMetrics creates the client collectors and registers them on reg.
// A nil reg leaves them unregistered. Collectors already registered on reg
// by another client are reused so several clients can share one registry.
func NewClientMetrics(reg prometheus.Registerer) (*ClientMetrics, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flipt_client_requests_total",
			Help: "Total evaluation service calls",
		},
		[]string{"operation", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flipt_client_request_duration_seconds",
			Help:    "Evaluation service call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	batchItems := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flipt_client_batch_items_total",
			Help: "Batch response items by type",
		},
		[]string{"type"},
	)

	if reg != nil {
		var err error
		if requests, err = register(reg, requests); err != nil {
			return nil, err
		}
		if duration, err = register(reg, duration); err != nil {
			return nil, err
		}
		if batchItems, err = register(reg, batchItems); err != nil {
			return nil, err
		}
	}

	return &ClientMetrics{requests: requests, duration: duration, batchItems: batchItems}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveCall records one call with its outcome and duration.
func (m *ClientMetrics) ObserveCall(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveBatchItem counts one batch response item by its type.
func (m *ClientMetrics) ObserveBatchItem(itemType string) {
	if m == nil {
		return
	}
	m.batchItems.WithLabelValues(itemType).Inc()
}
