package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mjtree"

// Metrics holds the engine and HTTP collectors.
type Metrics struct {
	registry *prometheus.Registry

	parses         *prometheus.CounterVec
	parseDuration  prometheus.Histogram
	serializeBytes prometheus.Histogram
	mutations      *prometheus.CounterVec
	violations     prometheus.Histogram
	renders        *prometheus.CounterVec
	renderDuration prometheus.Histogram

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_total",
			Help:      "Total number of markup parses",
		}, []string{"result"}),
		parseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Duration of markup parses",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		serializeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "serialize_bytes",
			Help:      "Size of serialized documents",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Total number of tree mutations by operation and outcome",
		}, []string{"op", "result"}),
		violations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_violations",
			Help:      "Nesting violations found per validation run",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_total",
			Help:      "Total number of render requests by outcome",
		}, []string{"result"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Duration of render requests",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.parses, m.parseDuration, m.serializeBytes, m.mutations,
		m.violations, m.renders, m.renderDuration,
		m.requests, m.requestDuration,
	)
	return m
}

// Registry exposes the underlying registry, e.g. to add process collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record engine events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnParse: func(_ context.Context, e *domain.ParseEvent) {
			m.parses.WithLabelValues(result(e.Err == nil)).Inc()
			m.parseDuration.Observe(e.Duration.Seconds())
		},
		OnSerialize: func(_ context.Context, e *domain.SerializeEvent) {
			m.serializeBytes.Observe(float64(e.Bytes))
		},
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			m.mutations.WithLabelValues(e.Op, result(e.OK)).Inc()
		},
		OnValidate: func(_ context.Context, e *domain.ValidationEvent) {
			m.violations.Observe(float64(e.Violations))
		},
		OnRender: func(_ context.Context, e *domain.RenderEvent) {
			switch {
			case e.Err != nil:
				m.renders.WithLabelValues("error").Inc()
			case e.Stale:
				m.renders.WithLabelValues("stale").Inc()
			default:
				m.renders.WithLabelValues("ok").Inc()
			}
			m.renderDuration.Observe(e.Duration.Seconds())
		},
	}
}

// Middleware records request counts and latency, labelled by chi route pattern
// so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working behind the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
