package qrlink

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup outcomes reported to the Observer.
const (
	OutcomeIndexHit  = "index_hit"
	OutcomeCanonical = "canonical"
	OutcomePrefix    = "prefix"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// Observer captures telemetry for store and lookup operations.
type Observer interface {
	RecordStore(duration time.Duration, sizeBytes int64, err error)
	RecordLookup(duration time.Duration, outcome string)
}

// PrometheusObserver exports gateway metrics to Prometheus.
type PrometheusObserver struct {
	duration    *prometheus.HistogramVec
	storeErrors *prometheus.CounterVec
	storedBytes prometheus.Counter
	lookups     *prometheus.CounterVec
}

// NewPrometheusObserver registers store and lookup metrics.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "qrlink"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency for blob store and lookup operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Count of failed store operations by reason.",
	}, []string{"reason"})
	storedBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stored_bytes_total",
		Help:      "Cumulative payload size successfully written to blob storage.",
	})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lookups_total",
		Help:      "Content key lookups by outcome.",
	}, []string{"outcome"})

	o := &PrometheusObserver{}
	var err error
	if o.duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if o.storeErrors, err = register(reg, storeErrors); err != nil {
		return nil, err
	}
	if o.storedBytes, err = register(reg, storedBytes); err != nil {
		return nil, err
	}
	if o.lookups, err = register(reg, lookups); err != nil {
		return nil, err
	}
	return o, nil
}

// register adopts an already registered collector of the same shape so that
// several gateways can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register qrlink metric: %w", err)
	}
	return c, nil
}

// RecordStore tracks store duration, size and failures.
func (o *PrometheusObserver) RecordStore(duration time.Duration, sizeBytes int64, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues("store").Observe(duration.Seconds())
	if err != nil {
		reason := "backend"
		if IsConfigurationError(err) {
			reason = "unconfigured"
		}
		o.storeErrors.WithLabelValues(reason).Inc()
		return
	}
	o.storedBytes.Add(float64(sizeBytes))
}

// RecordLookup tracks lookup duration by outcome.
func (o *PrometheusObserver) RecordLookup(duration time.Duration, outcome string) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues("lookup").Observe(duration.Seconds())
	o.lookups.WithLabelValues(outcome).Inc()
}

type nopObserver struct{}

func (nopObserver) RecordStore(time.Duration, int64, error) {}

func (nopObserver) RecordLookup(time.Duration, string) {}
