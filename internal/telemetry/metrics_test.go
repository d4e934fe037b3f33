package telemetry_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fezdelivery/internal/telemetry"
	"github.com/tournevent/fezdelivery/pkg/delivery"
	"github.com/tournevent/fezdelivery/pkg/fez"
)

var (
	_ fez.Recorder            = (*telemetry.Metrics)(nil)
	_ delivery.SubmitObserver = (*telemetry.Metrics)(nil)
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.ObserveRequest("get_cost", "ok", 120*time.Millisecond)
	m.ObserveRequest("get_cost", "ok", 80*time.Millisecond)
	m.ObserveProviderError("create_order", "auth_failed")
	m.ObserveSubmission(delivery.PathDomestic, delivery.OutcomeCreated)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("get_cost", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderErrors.WithLabelValues("create_order", "auth_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("domestic", "created")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"fez_requests_total",
		"fez_request_duration_seconds",
		"fez_provider_errors_total",
		"fez_submissions_total",
	}, names)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.NewMetrics(prometheus.NewRegistry())
		telemetry.NewMetrics(prometheus.NewRegistry())
	})
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "error", "bogus"} {
		logger, err := telemetry.NewLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}
}
