package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deicod/svcerr/apierror"
	"github.com/deicod/svcerr/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordValidation(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(MetricsOptions{Registerer: registry, Namespace: "svcerr"})
	require.NoError(t, err)

	metrics.RecordValidation(context.Background(), config.MetricsEvent{
		Issuer:   "https://issuer",
		Outcome:  config.MetricsOutcomeSuccess,
		Duration: 150 * time.Millisecond,
	})
	metrics.RecordValidation(context.Background(), config.MetricsEvent{
		Issuer:    "https://issuer",
		Outcome:   config.MetricsOutcomeFailure,
		ErrorName: apierror.NameJWKSFetch,
		Duration:  200 * time.Millisecond,
	})

	success := testutil.ToFloat64(metrics.authTotal.WithLabelValues("https://issuer", "success", "none"))
	require.Equal(t, 1.0, success)

	failure := testutil.ToFloat64(metrics.authTotal.WithLabelValues("https://issuer", "failure", "JWKSFetchError"))
	require.Equal(t, 1.0, failure)

	// one histogram series per outcome
	require.Equal(t, 2, testutil.CollectAndCount(metrics.authDuration, "svcerr_auth_duration_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.authDuration.WithLabelValues("https://issuer", "success").(prometheus.Histogram)))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.authDuration.WithLabelValues("https://issuer", "failure").(prometheus.Histogram)))
}

func TestMetricsRecordError(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(MetricsOptions{Registerer: registry})
	require.NoError(t, err)

	_, notFound := apierror.Classify(apierror.NotFound())
	metrics.RecordError(context.Background(), notFound)
	metrics.RecordError(context.Background(), notFound)

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.errorsTotal.WithLabelValues("NotFoundError", "404")))
}

func TestMetricsRegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(MetricsOptions{Registerer: registry})
	require.NoError(t, err)

	metrics.RecordValidation(context.Background(), config.MetricsEvent{Outcome: config.MetricsOutcomeSuccess})
	metrics.RecordError(context.Background(), apierror.InternalService().Body())

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 3)
	require.Len(t, metrics.Collectors(), 3)
}

func TestMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewMetrics(MetricsOptions{Registerer: registry})
	require.NoError(t, err)
	second, err := NewMetrics(MetricsOptions{Registerer: registry})
	require.NoError(t, err)

	first.RecordError(context.Background(), apierror.Unauthorized().Body())
	second.RecordError(context.Background(), apierror.Unauthorized().Body())

	require.Equal(t, 2.0, testutil.ToFloat64(first.errorsTotal.WithLabelValues("UnathorizedError", "401")))
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(MetricsOptions{Registerer: registry, Namespace: "svcerr"})
	require.NoError(t, err)
	metrics.RecordError(context.Background(), apierror.JWKSFetch().Body())

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `svcerr_errors_total{name="JWKSFetchError",status="500"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var metrics *Metrics
	require.NotPanics(t, func() {
		metrics.RecordValidation(context.Background(), config.MetricsEvent{})
		metrics.RecordError(context.Background(), apierror.Response{})
	})
	require.Nil(t, metrics.Collectors())
}
