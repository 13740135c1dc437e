package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemini-proxy/logging"
)

func newTestMetrics(t *testing.T) (*ForwardMetrics, *prometheus.Registry, *bytes.Buffer) {
	t.Helper()
	reg := prometheus.NewRegistry()
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	return New(reg, log), reg, buf
}

func TestForwardMetrics_BeginAndFinish(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestMetrics(t)

	done := m.Begin()
	inFlight, _, _, _ := m.Snapshot()
	assert.Equal(t, 1, inFlight)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlightGauge))

	done(ResultFailure)
	done(ResultFailure) // second call is ignored

	inFlight, _, _, failures := m.Snapshot()
	assert.Equal(t, 0, inFlight)
	assert.Equal(t, 1, failures)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlightGauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resultsTotal.WithLabelValues(ResultFailure)))
}

func TestForwardMetrics_AttemptsAndRetries(t *testing.T) {
	t.Parallel()

	m, reg, _ := newTestMetrics(t)

	m.RecordAttempt()
	m.RecordRetry(time.Second)
	m.RecordAttempt()

	_, attempts, retries, _ := m.Snapshot()
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, retries)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.attemptsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal))

	count, err := testutil.GatherAndCount(reg, "gemini_proxy_retry_backoff_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestForwardMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *ForwardMetrics
	assert.NotPanics(t, func() {
		m.Begin()(ResultSuccess)
		m.RecordAttempt()
		m.RecordRetry(time.Second)
	})
}

func TestForwardMetrics_LogIfChanged(t *testing.T) {
	t.Parallel()

	m, _, buf := newTestMetrics(t)
	now := time.Now()

	assert.False(t, m.logIfChanged(now, time.Second), "nothing changed yet")

	m.RecordAttempt()
	assert.True(t, m.logIfChanged(now, time.Second))
	assert.Contains(t, buf.String(), "Attempts: 1")

	m.RecordAttempt()
	assert.False(t, m.logIfChanged(now.Add(500*time.Millisecond), time.Second), "rate limited")
	assert.True(t, m.logIfChanged(now.Add(time.Second), time.Second))
}

func TestNew_DefaultsToSharedLogger(t *testing.T) {
	t.Parallel()

	m := New(nil, nil)
	assert.Same(t, logging.GetLogger(), m.log)
}
