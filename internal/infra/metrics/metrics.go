package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saqr_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "saqr_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "saqr_http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		},
	)

	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saqr_provider_attempts_total",
			Help: "AI provider calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saqr_provider_latency_seconds",
			Help:    "AI provider call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider"},
	)

	ProviderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saqr_provider_fallbacks_total",
			Help: "Fallbacks from a rate limited provider",
		},
		[]string{"from", "to"},
	)

	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saqr_analyses_total",
			Help: "Completed analyses",
		},
		[]string{"mode", "provider", "degraded"},
	)

	EvidenceUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saqr_evidence_uploads_total",
			Help: "Evidence uploads to object storage",
		},
		[]string{"outcome"},
	)
)

// Recorder feeds the collectors above from the application layer.
type Recorder struct{}

func (Recorder) ProviderAttempt(provider, outcome string, latency time.Duration) {
	ProviderAttempts.WithLabelValues(provider, outcome).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

func (Recorder) ProviderFallback(from, to string) {
	ProviderFallbacks.WithLabelValues(from, to).Inc()
}

func (Recorder) Analysis(mode, provider string, degraded bool) {
	if provider == "" {
		provider = "none"
	}
	Analyses.WithLabelValues(mode, provider, strconv.FormatBool(degraded)).Inc()
}

func (Recorder) EvidenceUpload(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	EvidenceUploads.WithLabelValues(outcome).Inc()
}
