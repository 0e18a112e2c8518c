// Package metrics exposes Prometheus counters for ticket activity and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miyuou/smartticket/internal/core/events"
	"github.com/miyuou/smartticket/internal/policy"
)

const namespace = "smartticket"

// Recorder is what the rest of the service reports to.
type Recorder interface {
	RecordTicketEvent(eventType string)
	RecordImportRows(imported, failed int)
	RecordDenied(op policy.Operation, reason policy.Reason)
	RecordHTTPResponse(method string, statusCode int, duration time.Duration)
}

type Collector struct {
	ticketEvents *prometheus.CounterVec
	importRows   *prometheus.CounterVec
	denied       *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	httpLatency  prometheus.Histogram
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ticketEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_events_total",
			Help:      "Ticket lifecycle events by type.",
		}, []string{"event_type"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Imported CSV rows by outcome.",
		}, []string{"outcome"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Requests denied by the access policy.",
		}, []string{"operation", "reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "HTTP responses by method and status code.",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.ticketEvents, c.importRows, c.denied, c.httpStatus, c.httpLatency)
	return c
}

func (c *Collector) RecordTicketEvent(eventType string) {
	c.ticketEvents.WithLabelValues(eventType).Inc()
}

func (c *Collector) RecordImportRows(imported, failed int) {
	c.importRows.WithLabelValues("imported").Add(float64(imported))
	c.importRows.WithLabelValues("failed").Add(float64(failed))
}

func (c *Collector) RecordDenied(op policy.Operation, reason policy.Reason) {
	c.denied.WithLabelValues(string(op), string(reason)).Inc()
}

func (c *Collector) RecordHTTPResponse(method string, statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// EventHandler feeds bus events into the collector.
func (c *Collector) EventHandler() events.Handler {
	return func(ctx context.Context, event events.Event) error {
		c.RecordTicketEvent(event.EventType())
		if e, ok := event.(*events.TicketsImportedEvent); ok {
			c.RecordImportRows(e.Imported, e.Failed)
		}
		return nil
	}
}

// Subscribe registers the collector for every ticket event type.
func (c *Collector) Subscribe(bus *events.EventBus) {
	h := c.EventHandler()
	for _, t := range events.TicketEventTypes {
		bus.Subscribe(t, h)
	}
}

// Middleware records status and latency of every response.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.RecordHTTPResponse(r.Method, status, time.Since(start))
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
