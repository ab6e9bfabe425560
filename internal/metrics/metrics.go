package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the pipeline collectors. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	pages         *prometheus.CounterVec
	events        prometheus.Counter
	duplicates    prometheus.Counter
	failedDays    prometheus.Counter
	requests      *prometheus.CounterVec
	unresolved    prometheus.Counter
	fallbacks     prometheus.Counter
	stageDuration *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.pages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventscanner",
		Name:      "pages_fetched_total",
		Help:      "Listing pages fetched by outcome",
	}, []string{"outcome"})
	m.events = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventscanner",
		Name:      "events_collected_total",
		Help:      "Events accepted by the crawler after deduplication",
	})
	m.duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventscanner",
		Name:      "duplicates_dropped_total",
		Help:      "Events dropped because their identity was already seen that day",
	})
	m.failedDays = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventscanner",
		Name:      "days_failed_total",
		Help:      "Days whose crawl stopped on a fetch error",
	})
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventscanner",
		Name:      "external_requests_total",
		Help:      "Requests to external services by status",
	}, []string{"service", "status"})
	m.unresolved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventscanner",
		Name:      "geocode_unresolved_total",
		Help:      "Location keys left without coordinates",
	})
	m.fallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventscanner",
		Name:      "genre_fallback_total",
		Help:      "Artists that received the unavailable sentinel",
	})
	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventscanner",
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent per pipeline stage",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
	}, []string{"stage"})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventscanner",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful pipeline run",
	})

	m.registry.MustRegister(
		m.pages, m.events, m.duplicates, m.failedDays, m.requests,
		m.unresolved, m.fallbacks, m.stageDuration, m.lastSuccess,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PageFetched(outcome string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EventsCollected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.events.Add(float64(n))
}

func (m *Metrics) DuplicatesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duplicates.Add(float64(n))
}

func (m *Metrics) DayFailed() {
	if m == nil {
		return
	}
	m.failedDays.Inc()
}

// Request records one external call. code 0 means the request never got an answer.
func (m *Metrics) Request(service string, code int) {
	if m == nil {
		return
	}
	status := "error"
	if code > 0 {
		status = strconv.Itoa(code)
	}
	m.requests.WithLabelValues(service, status).Inc()
}

func (m *Metrics) LocationUnresolved() {
	if m == nil {
		return
	}
	m.unresolved.Inc()
}

func (m *Metrics) GenreFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RunSucceeded(at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(at.Unix()))
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      m.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
