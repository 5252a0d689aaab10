package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cbtsheet/internal/sheet"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector owns the service metrics and the access log. It also observes
// every call made to the sheet endpoint.
type Collector struct {
	log      *zap.Logger
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sheetCalls      *prometheus.CounterVec
	sheetDuration   *prometheus.HistogramVec
}

func NewCollector(log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Collector{
		log:      log.Named("http"),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbtsheet_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cbtsheet_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),
		sheetCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbtsheet_sheet_calls_total",
			Help: "Calls made to the spreadsheet endpoint.",
		}, []string{"action", "method", "outcome"}),
		sheetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cbtsheet_sheet_call_duration_seconds",
			Help:    "Duration of calls to the spreadsheet endpoint.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"action"}),
	}
	c.registry.MustRegister(
		c.requests,
		c.requestDuration,
		c.sheetCalls,
		c.sheetDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		route := routePattern(r)

		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.requestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		c.log.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Float64("latency_ms", float64(elapsed.Microseconds())/1000.0),
			zap.String("remote_ip", strings.TrimSpace(r.RemoteAddr)),
		)
	})
}

// ObserveCall counts a sheet call. Writes are labelled by WriteStatus, reads
// by ok/error.
func (c *Collector) ObserveCall(ctx context.Context, call sheet.Call) {
	c.sheetCalls.WithLabelValues(call.Action, call.Method, callOutcome(call)).Inc()
	c.sheetDuration.WithLabelValues(call.Action).Observe(call.Elapsed.Seconds())
	if call.Err != nil {
		c.log.Warn("sheet call failed",
			zap.String("request_id", middleware.GetReqID(ctx)),
			zap.String("action", call.Action),
			zap.String("method", call.Method),
			zap.Error(call.Err),
		)
	}
}

func (c *Collector) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func callOutcome(call sheet.Call) string {
	if call.Method == http.MethodPost {
		if call.Err != nil {
			return sheet.WriteTransportFailed.String()
		}
		return sheet.WriteAccepted.String()
	}
	if call.Err != nil {
		return "error"
	}
	return "ok"
}

// routePattern prefers the matched chi pattern so label cardinality stays
// bounded; unmatched paths fall back to a normalized URL path.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return normalizedPath(r.URL.Path)
}

func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
