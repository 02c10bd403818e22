package daemon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
	outcomeStale = "stale"
)

// Metrics records poller and forecast activity.
type Metrics struct {
	seriesFetches    *prometheus.CounterVec
	forecastRequests *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	seriesPoints     prometheus.Gauge
	forecastPoints   prometheus.Gauge
}

// NewMetrics registers the daemon collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		seriesFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesdash_series_fetches_total",
				Help: "Series fetches by outcome (ok, stale, error)",
			},
			[]string{"outcome"},
		),
		forecastRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesdash_forecast_requests_total",
				Help: "Forecast requests by outcome (ok, error, stale)",
			},
			[]string{"outcome"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "salesdash_fetch_duration_seconds",
				Help:    "Duration of series and forecast fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		seriesPoints: f.NewGauge(prometheus.GaugeOpts{
			Name: "salesdash_series_points",
			Help: "Number of records in the current sales series",
		}),
		forecastPoints: f.NewGauge(prometheus.GaugeOpts{
			Name: "salesdash_forecast_points",
			Help: "Number of records in the current forecast",
		}),
	}
}

// RecordSeries records one series fetch.
func (m *Metrics) RecordSeries(outcome string, seconds float64, points int) {
	m.seriesFetches.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues("series").Observe(seconds)
	if outcome != outcomeError {
		m.seriesPoints.Set(float64(points))
	}
}

// RecordForecast records one completed forecast request.
func (m *Metrics) RecordForecast(outcome string, seconds float64, points int) {
	m.forecastRequests.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues("forecast").Observe(seconds)
	if outcome != outcomeStale {
		m.forecastPoints.Set(float64(points))
	}
}
