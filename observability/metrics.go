package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/deicod/svcerr/apierror"
	"github.com/deicod/svcerr/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus collectors for authentication attempts and error responses.
// It satisfies both config.MetricsRecorder and apierror.Recorder.
type Metrics struct {
	authTotal    *prometheus.CounterVec
	authDuration *prometheus.HistogramVec
	errorsTotal  *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

var (
	_ config.MetricsRecorder = (*Metrics)(nil)
	_ apierror.Recorder      = (*Metrics)(nil)
)

// MetricsOptions configures Metrics construction.
type MetricsOptions struct {
	Registerer      prometheus.Registerer
	Namespace       string
	DurationBuckets []float64
}

// NewMetrics constructs Metrics and registers the collectors with the provided registerer.
// Collectors already registered under the same name are reused.
func NewMetrics(opts MetricsOptions) (*Metrics, error) {
	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}

	authTotal, err := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: "auth",
		Name:      "requests_total",
		Help:      "Total number of bearer token authentication attempts.",
	}, []string{"issuer", "outcome", "error"}))
	if err != nil {
		return nil, err
	}

	authDuration, err := register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: "auth",
		Name:      "duration_seconds",
		Help:      "Duration of bearer token authentication attempts in seconds.",
		Buckets:   buckets,
	}, []string{"issuer", "outcome"}))
	if err != nil {
		return nil, err
	}

	errorsTotal, err := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Name:      "errors_total",
		Help:      "Total number of error responses by error name and status code.",
	}, []string{"name", "status"}))
	if err != nil {
		return nil, err
	}

	gatherer, _ := registerer.(prometheus.Gatherer)
	return &Metrics{
		authTotal:    authTotal,
		authDuration: authDuration,
		errorsTotal:  errorsTotal,
		gatherer:     gatherer,
	}, nil
}

// RecordValidation implements config.MetricsRecorder.
func (m *Metrics) RecordValidation(_ context.Context, event config.MetricsEvent) {
	if m == nil {
		return
	}
	issuer := event.Issuer
	if issuer == "" {
		issuer = "unknown"
	}
	outcome := string(event.Outcome)
	if outcome == "" {
		outcome = string(config.MetricsOutcomeFailure)
	}
	name := event.ErrorName
	if name == "" {
		name = "none"
	}
	m.authTotal.WithLabelValues(issuer, outcome, name).Inc()
	m.authDuration.WithLabelValues(issuer, outcome).Observe(event.Duration.Seconds())
}

// RecordError implements apierror.Recorder.
func (m *Metrics) RecordError(_ context.Context, resp apierror.Response) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(resp.Name, strconv.Itoa(int(resp.StatusCode))).Inc()
}

// Handler serves the registry the metrics were registered with. When that registry cannot
// be gathered from, the default gatherer is served.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Collectors exposes the underlying collectors for advanced registration scenarios.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.authTotal, m.authDuration, m.errorsTotal}
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	var zero C
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return zero, fmt.Errorf("observability: register collector: %w", err)
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return zero, fmt.Errorf("observability: existing collector has unexpected type %T", are.ExistingCollector)
		}
		return existing, nil
	}
	return collector, nil
}
