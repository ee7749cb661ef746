package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests            *prometheus.CounterVec
	CounterHandleRequestPanic  prometheus.Counter
	CounterRateLimitedRequests prometheus.Counter
	CounterIdentityLookups     *prometheus.CounterVec
	CounterTokenRefreshes      *prometheus.CounterVec
	CounterGuardDecisions      *prometheus.CounterVec

	// gauges
	GaugeRequests      prometheus.Gauge
	GaugeLifeSignal    prometheus.Gauge
	GaugeSessionStatus *prometheus.GaugeVec

	// histograms
	HistogramRequestDuration       *prometheus.HistogramVec
	HistogramIdentityLookupLatency prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("confhub", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("confhub", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRateLimitedRequests := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_requests",
		Help:      "The total number of rate limited requests",
	})
	counterIdentityLookups := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "identity_lookups",
		Help:      "The total number of current user lookups, by outcome",
	}, []string{"outcome"})
	counterTokenRefreshes := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "token_refreshes",
		Help:      "The total number of access token refresh attempts, by result",
	}, []string{"result"})
	counterGuardDecisions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "guard_decisions",
		Help:      "The total number of access guard decisions",
	}, []string{"capability", "decision", "reason"})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})
	gaugeSessionStatus := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_status",
		Help:      "1 for the current session status, 0 for the others",
	}, []string{"status"})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})
	histogramIdentityLookupLatency := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "identity_lookup_duration_seconds",
		Help:      "Duration of a single session resolution in seconds",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	return &Manager{
		CounterRequests:                counterRequests,
		CounterHandleRequestPanic:      counterHandleRequestPanic,
		CounterRateLimitedRequests:     counterRateLimitedRequests,
		CounterIdentityLookups:         counterIdentityLookups,
		CounterTokenRefreshes:          counterTokenRefreshes,
		CounterGuardDecisions:          counterGuardDecisions,
		GaugeRequests:                  gaugeRequests,
		GaugeLifeSignal:                gaugeLifeSignal,
		GaugeSessionStatus:             gaugeSessionStatus,
		HistogramRequestDuration:       histogramRequestDuration,
		HistogramIdentityLookupLatency: histogramIdentityLookupLatency,
	}
}

// SetSessionStatus flips the session status gauge so exactly one status reads 1.
func (m *Manager) SetSessionStatus(current string, all ...string) {
	for _, s := range all {
		if s == current {
			m.GaugeSessionStatus.WithLabelValues(s).Set(1)
		} else {
			m.GaugeSessionStatus.WithLabelValues(s).Set(0)
		}
	}
}
