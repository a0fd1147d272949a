package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordDispatch("persist_status", "ok")
	m.RecordDispatch("persist_status", "ok")
	m.RecordRecipients("jobcode", "found")
	m.RecordSLALookup("empty")
	m.RecordDelta("done")
	m.RecordConsumed("skipped")
	m.RecordRequest("/health/live", "GET", 200, time.Millisecond)
	m.RecordError("/api/v1/login", "POST", "UNAUTHORIZED")
	m.ObserveCycle("ok", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatches.WithLabelValues("persist_status", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recipients.WithLabelValues("jobcode", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slaLookups.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/health/live", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/api/v1/login", "POST", "UNAUTHORIZED")))

	families, err := m.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDispatch("a", "b")
		m.RecordRecipients("a", "b")
		m.RecordSLALookup("a")
		m.RecordDelta("a")
		m.RecordConsumed("a")
		m.ObserveCycle("a", time.Second)
		m.RecordRequest("/", "GET", 200, time.Second)
		m.RecordError("/", "GET", "X")
	})
	assert.Nil(t, m.Registry())
}
