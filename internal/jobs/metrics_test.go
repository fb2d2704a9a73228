package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("password:history_retention").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("password:history_retention").End(boom), boom)
	m.AddItems("password:history_retention", 7)
	m.AddItems("password:history_retention", 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("password:history_retention", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("password:history_retention")))
	require.Equal(t, 7.0, testutil.ToFloat64(m.items.WithLabelValues("password:history_retention")))
}

func TestNilMetricsTrack(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddItems("x", 3)
}
