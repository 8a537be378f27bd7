package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	sessionsCreatedTotal   *prometheus.CounterVec
	sessionsDeletedTotal   *prometheus.CounterVec
	documentsIngestedTotal *prometheus.CounterVec
	queriesTotal           *prometheus.CounterVec
	queryDuration          *prometheus.HistogramVec
	modelSwitchesTotal     *prometheus.CounterVec
	episodesRequestedTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycast",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studycast",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studycast",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sessionsCreatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycast",
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Total study sessions created.",
		},
		[]string{"service", "model"},
	)
	sessionsDeletedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycast",
			Subsystem: "session",
			Name:      "deleted_total",
			Help:      "Total study sessions deleted.",
		},
		[]string{"service"},
	)
	documentsIngestedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycast",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total ingested source documents by outcome.",
		},
		[]string{"service", "outcome"},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycast",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total answered session queries by model.",
		},
		[]string{"service", "model"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studycast",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Session query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	modelSwitchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycast",
			Subsystem: "session",
			Name:      "model_switches_total",
			Help:      "Total session model switches by target model.",
		},
		[]string{"service", "model"},
	)
	episodesRequestedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycast",
			Subsystem: "podcast",
			Name:      "episodes_requested_total",
			Help:      "Total podcast episodes requested.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		sessionsCreatedTotal,
		sessionsDeletedTotal,
		documentsIngestedTotal,
		queriesTotal,
		queryDuration,
		modelSwitchesTotal,
		episodesRequestedTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		sessionsCreatedTotal:   sessionsCreatedTotal,
		sessionsDeletedTotal:   sessionsDeletedTotal,
		documentsIngestedTotal: documentsIngestedTotal,
		queriesTotal:           queriesTotal,
		queryDuration:          queryDuration,
		modelSwitchesTotal:     modelSwitchesTotal,
		episodesRequestedTotal: episodesRequestedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses resource ids so the path label stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/sessions/"):
		rest := strings.TrimPrefix(path, "/v1/sessions/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/v1/sessions/{session_id}/" + rest[i+1:]
		}
		return "/v1/sessions/{session_id}"
	case strings.HasPrefix(path, "/v1/podcasts/"):
		return "/v1/podcasts/{episode_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSessionCreated(service, model string) {
	if model == "" {
		model = "unknown"
	}
	m.sessionsCreatedTotal.WithLabelValues(service, model).Inc()
}

func (m *HTTPServerMetrics) RecordSessionDeleted(service string) {
	m.sessionsDeletedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordIngest(service string, succeeded, failed int) {
	if succeeded > 0 {
		m.documentsIngestedTotal.WithLabelValues(service, "success").Add(float64(succeeded))
	}
	if failed > 0 {
		m.documentsIngestedTotal.WithLabelValues(service, "failed").Add(float64(failed))
	}
}

func (m *HTTPServerMetrics) RecordQuery(service, model string, duration time.Duration) {
	if model == "" {
		model = "unknown"
	}
	m.queriesTotal.WithLabelValues(service, model).Inc()
	m.queryDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordModelSwitch(service, model string) {
	if model == "" {
		model = "unknown"
	}
	m.modelSwitchesTotal.WithLabelValues(service, model).Inc()
}

func (m *HTTPServerMetrics) RecordEpisodeRequested(service string) {
	m.episodesRequestedTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
