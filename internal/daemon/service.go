// Package daemon provides the long-running sales poller and its HTTP API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/theirongolddev/salesdash/internal/forecast"
	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/pipeline"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	// ForecastOrigin labels cached forecasts, usually the endpoint URL.
	ForecastOrigin string
}

// Deps are the collaborators the service drives.
type Deps struct {
	Session   *pipeline.Session
	Loader    *pipeline.Loader
	Predictor forecast.Predictor // nil disables forecasting
	Logger    zerolog.Logger
	// Registry receives the daemon metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
}

// Snapshot is a compact dashboard state for status/event payloads.
type Snapshot struct {
	At            time.Time        `json:"at"`
	Points        int              `json:"points"`
	KPIs          model.KPIs       `json:"kpis"`
	Upcoming      int              `json:"upcoming"`
	Origin        string           `json:"origin,omitempty"`
	SeriesState   model.FetchState `json:"series_state"`
	ForecastState model.FetchState `json:"forecast_state"`
}

// Event types.
const (
	EventSnapshot       = "snapshot"
	EventSeriesUpdated  = "series_updated"
	EventSeriesFailed   = "series_failed"
	EventForecastUpdate = "forecast_updated"
	EventForecastFailed = "forecast_failed"
)

// Event is emitted whenever the dashboard state changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time    `json:"started_at"`
	LastPollAt      time.Time    `json:"last_poll_at"`
	PollIntervalSec int          `json:"poll_interval_sec"`
	PollCount       int64        `json:"poll_count"`
	Summary         Snapshot     `json:"summary"`
	Series          model.Status `json:"series"`
	Forecast        model.Status `json:"forecast"`
	LastError       string       `json:"last_error,omitempty"`
	EventCount      int          `json:"event_count"`
	SubscriberCount int          `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg       Config
	sess      *pipeline.Session
	loader    *pipeline.Loader
	predictor forecast.Predictor
	log       zerolog.Logger
	registry  *prometheus.Registry
	metrics   *Metrics

	mu             sync.RWMutex
	startedAt      time.Time
	lastPollAt     time.Time
	pollCount      int64
	lastError      string
	nextEventID    int64
	events         []Event
	forecastCancel context.CancelFunc
	inflight       sync.WaitGroup

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config, deps Deps) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 60 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8788"
	}
	if deps.Session == nil {
		deps.Session = pipeline.NewSession(pipeline.LastWins)
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return &Service{
		cfg:       cfg,
		sess:      deps.Session,
		loader:    deps.Loader,
		predictor: deps.Predictor,
		log:       deps.Logger,
		registry:  reg,
		metrics:   NewMetrics(reg),
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Run starts HTTP endpoints and polling until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	e := s.Handler()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("daemon listening")
		if err := e.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Seed initial state so status is useful immediately.
	s.pollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.cancelForecast()
			s.inflight.Wait()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce(ctx)
		case err := <-errCh:
			s.cancelForecast()
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// Handler builds the HTTP API.
func (s *Service) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug().Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/status", s.handleStatus)
	e.GET("/v1/dashboard", s.handleDashboard)
	e.GET("/v1/kpis", s.handleKPIs)
	e.GET("/v1/series", s.handleSeries)
	e.GET("/v1/forecast", s.handleForecast)
	e.GET("/v1/events", s.handleEvents)
	e.GET("/v1/stream", s.handleStream)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	return e
}

func (s *Service) pollOnce(ctx context.Context) {
	s.sess.BeginSeries()

	start := time.Now()
	res, err := s.loader.Load(ctx)
	elapsed := time.Since(start).Seconds()

	s.mu.Lock()
	s.lastPollAt = time.Now()
	s.pollCount++
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	first := s.pollCount == 1
	s.mu.Unlock()

	if err != nil {
		s.metrics.RecordSeries(outcomeError, elapsed, 0)
		s.log.Error().Err(err).Msg("daemon poll error")
		s.sess.SeriesFailed()
		s.emit(EventSeriesFailed)
		return
	}

	outcome := outcomeOK
	if res.Stale {
		outcome = outcomeStale
	}
	s.metrics.RecordSeries(outcome, elapsed, len(res.Sales))

	changed := s.sess.SeriesLoaded(res)
	switch {
	case first:
		s.emit(EventSnapshot)
	case changed:
		s.emit(EventSeriesUpdated)
	}

	if s.predictor != nil && pipeline.ShouldForecast(changed, res.Sales) {
		s.startForecast(ctx, res.Sales)
	}
}

// startForecast cancels any in-flight request and starts a new one.
// Only the newest generation may change the tracker.
func (s *Service) startForecast(ctx context.Context, sales []model.SalesRecord) {
	fctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.forecastCancel != nil {
		s.forecastCancel()
	}
	s.forecastCancel = cancel
	s.mu.Unlock()

	tracker := s.sess.Tracker()
	gen := tracker.Begin()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()

		start := time.Now()
		records, err := s.predictor.Predict(fctx, sales)
		elapsed := time.Since(start).Seconds()

		if !tracker.Complete(gen, records, err) {
			s.metrics.RecordForecast(outcomeStale, elapsed, 0)
			s.log.Debug().Uint64("generation", gen).Msg("discarding superseded forecast")
			return
		}

		if err != nil {
			s.metrics.RecordForecast(outcomeError, elapsed, 0)
			s.log.Error().Err(err).Uint64("generation", gen).Msg("forecast request failed")
			s.emit(EventForecastFailed)
			return
		}

		s.metrics.RecordForecast(outcomeOK, elapsed, len(records))
		s.log.Info().Int("points", len(records)).Uint64("generation", gen).Msg("forecast updated")
		if s.cfg.ForecastOrigin != "" {
			s.loader.SaveForecast(records, s.cfg.ForecastOrigin)
		}
		s.emit(EventForecastUpdate)
	}()
}

func (s *Service) cancelForecast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forecastCancel != nil {
		s.forecastCancel()
		s.forecastCancel = nil
	}
}

func (s *Service) snapshot() Snapshot {
	v := s.sess.View()
	return snapshotFromView(v, time.Now())
}

func snapshotFromView(v pipeline.View, at time.Time) Snapshot {
	return Snapshot{
		At:            at,
		Points:        len(v.Sales),
		KPIs:          v.KPIs,
		Upcoming:      len(v.Upcoming),
		Origin:        v.Origin,
		SeriesState:   v.Series.State,
		ForecastState: v.Forecast.State,
	}
}

func (s *Service) emit(kind string) {
	snap := s.snapshot()

	s.mu.Lock()
	s.nextEventID++
	ev := Event{ID: s.nextEventID, Type: kind, Timestamp: snap.At, Snapshot: snap}
	s.mu.Unlock()

	s.publishEvent(ev)
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	snap := s.snapshot()
	series := s.sess.View().Series
	fc := s.sess.Tracker().Status()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Summary:         snap,
		Series:          series,
		Forecast:        fc,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok\n")
}

func (s *Service) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleDashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sess.View())
}

func (s *Service) handleKPIs(c echo.Context) error {
	v := s.sess.View()
	return c.JSON(http.StatusOK, map[string]any{
		"kpis":   v.KPIs,
		"points": len(v.Sales),
		"series": v.Series,
	})
}

func (s *Service) handleSeries(c echo.Context) error {
	v := s.sess.View()
	return c.JSON(http.StatusOK, map[string]any{
		"merged":      v.Merged,
		"merge_error": v.MergeError,
		"origin":      v.Origin,
		"fetched_at":  v.FetchedAt,
	})
}

func (s *Service) handleForecast(c echo.Context) error {
	v := s.sess.View()
	return c.JSON(http.StatusOK, map[string]any{
		"status":   v.Forecast,
		"upcoming": v.Upcoming,
	})
}

func (s *Service) handleEvents(c echo.Context) error {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	return c.JSON(http.StatusOK, events)
}

func (s *Service) handleStream(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	snap := s.snapshot()
	writeSSE(w, Event{Type: EventSnapshot, Timestamp: snap.At, Snapshot: snap})
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			writeSSE(w, ev)
			w.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
