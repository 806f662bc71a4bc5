package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ScrapesTotal        *prometheus.CounterVec
	ScrapeDuration      prometheus.Histogram
	MeetingsTotal       *prometheus.CounterVec
	LastScrapeEvents    prometheus.Gauge
	PlayerCacheHits     prometheus.Counter
}

// New registers the application metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ScrapesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapes_total",
				Help: "Total number of calendar scrapes.",
			},
			[]string{"status"}, // success, failure
		),
		ScrapeDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scrape_duration_seconds",
				Help:    "Duration of calendar scrapes.",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
			},
		),
		MeetingsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetings_total",
				Help: "Meeting entries seen, by outcome.",
			},
			[]string{"outcome"},
		),
		LastScrapeEvents: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "last_scrape_events",
				Help: "Number of events returned by the most recent scrape.",
			},
		),
		PlayerCacheHits: f.NewCounter(
			prometheus.CounterOpts{
				Name: "player_cache_hits_total",
				Help: "Player pages resolved from the cache without navigation.",
			},
		),
	}
}

// Meeting outcomes.
const (
	OutcomeRetained    = "retained"
	OutcomeOutOfWindow = "out_of_window"
	OutcomeNoPlayer    = "no_player"
	OutcomeUnparsed    = "unparsed_date"
	OutcomeErrored     = "errored"
)

// ObserveMeeting counts a meeting entry outcome. A nil receiver is a no-op so
// components can run without metrics.
func (m *Metrics) ObserveMeeting(outcome string) {
	if m == nil {
		return
	}
	m.MeetingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.PlayerCacheHits.Inc()
}

// ObserveScrape records the outcome of a finished scrape.
func (m *Metrics) ObserveScrape(success bool, took time.Duration, events int) {
	if m == nil {
		return
	}
	m.ScrapeDuration.Observe(took.Seconds())
	if !success {
		m.ScrapesTotal.WithLabelValues("failure").Inc()
		return
	}
	m.ScrapesTotal.WithLabelValues("success").Inc()
	m.LastScrapeEvents.Set(float64(events))
}
