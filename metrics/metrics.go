package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"gemini-proxy/logging"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ForwardMetrics tracks forwarded requests and upstream attempts.
type ForwardMetrics struct {
	InFlight    int
	Attempts    int
	Retries     int
	Failures    int
	LastLogTime time.Time
	changed     bool
	mu          sync.Mutex

	log *logrus.Logger

	inFlightGauge   prometheus.Gauge
	attemptsTotal   prometheus.Counter
	retriesTotal    prometheus.Counter
	resultsTotal    *prometheus.CounterVec
	backoffDuration prometheus.Histogram
}

// New creates the metrics and registers the collectors with reg. A nil reg
// leaves the collectors unregistered.
func New(reg prometheus.Registerer, log *logrus.Logger) *ForwardMetrics {
	factory := promauto.With(reg)
	if log == nil {
		log = logging.GetLogger()
	}
	return &ForwardMetrics{
		log: log,
		inFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gemini_proxy_forward_in_flight",
			Help: "Number of requests currently being forwarded upstream",
		}),
		attemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gemini_proxy_upstream_attempts_total",
			Help: "Total number of upstream calls, retries included",
		}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gemini_proxy_upstream_retries_total",
			Help: "Total number of upstream retries",
		}),
		resultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gemini_proxy_forward_results_total",
			Help: "Forwarded requests by final result",
		}, []string{"result"}),
		backoffDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gemini_proxy_retry_backoff_seconds",
			Help:    "Backoff waits before upstream retries in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
	}
}

// Begin marks a forward as started. The returned func records its result.
func (m *ForwardMetrics) Begin() func(result string) {
	if m == nil {
		return func(string) {}
	}
	m.mu.Lock()
	m.InFlight++
	m.changed = true
	m.mu.Unlock()
	m.inFlightGauge.Inc()

	var once sync.Once
	return func(result string) {
		once.Do(func() {
			m.mu.Lock()
			if m.InFlight > 0 {
				m.InFlight--
			}
			if result == ResultFailure {
				m.Failures++
			}
			m.changed = true
			m.mu.Unlock()
			m.inFlightGauge.Dec()
			m.resultsTotal.WithLabelValues(result).Inc()
		})
	}
}

// RecordAttempt counts one upstream call.
func (m *ForwardMetrics) RecordAttempt() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.Attempts++
	m.changed = true
	m.mu.Unlock()
	m.attemptsTotal.Inc()
}

// RecordRetry counts one retry and the wait that precedes it.
func (m *ForwardMetrics) RecordRetry(delay time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.Retries++
	m.changed = true
	m.mu.Unlock()
	m.retriesTotal.Inc()
	m.backoffDuration.Observe(delay.Seconds())
}

// Snapshot returns the current counters.
func (m *ForwardMetrics) Snapshot() (inFlight, attempts, retries, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.InFlight, m.Attempts, m.Retries, m.Failures
}

// Monitor logs the counters when they changed, at most once per interval,
// until ctx is done.
func (m *ForwardMetrics) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval / 2) // Check twice every interval
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.logIfChanged(now, interval)
		}
	}
}

func (m *ForwardMetrics) logIfChanged(now time.Time, interval time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.changed || now.Sub(m.LastLogTime) < interval {
		return false
	}
	m.log.Infof("In flight: %d | Attempts: %d | Retries: %d | Failures: %d",
		m.InFlight, m.Attempts, m.Retries, m.Failures)
	m.LastLogTime = now
	m.changed = false
	return true
}
