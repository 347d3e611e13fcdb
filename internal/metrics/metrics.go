// Package metrics holds the Prometheus instruments for the HTTP layer and
// the document store, and the /metrics handler that exposes them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/postboard/internal/docstore"
)

// Metrics owns one registry. Tests create their own so nothing leaks
// between them through the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        prometheus.Gauge

	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec
}

func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests currently being served",
		}),

		storeOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docstore_operations_total",
			Help: "Document store operations by collection, operation and result",
		}, []string{"collection", "op", "result"}), // result: ok|absent|error

		storeOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docstore_operation_duration_seconds",
			Help:    "Document store operation latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"collection", "op"}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInflight,
		m.storeOpsTotal,
		m.storeOpDuration,
	} {
		if err := registerCollector(m.registry, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records count, latency and in-flight requests. The route label
// is chi's route pattern (e.g. /posts/{id}) so ids don't explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInflight.Inc()
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		defer func() {
			m.httpInflight.Dec()

			method := strings.ToUpper(r.Method)
			route := routeLabel(r)
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			m.httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

// RegisterPool exposes pgx pool statistics.
func (m *Metrics) RegisterPool(pool *pgxpool.Pool) error {
	return registerCollector(m.registry, newPoolCollector(pool))
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// registerCollector registers c on reg, ignoring duplicates.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

// InstrumentCollection wraps c so every operation is counted and timed.
func (m *Metrics) InstrumentCollection(c docstore.Collection) docstore.Collection {
	return &instrumentedCollection{next: c, m: m}
}

type instrumentedCollection struct {
	next docstore.Collection
	m    *Metrics
}

var _ docstore.Collection = (*instrumentedCollection)(nil)

func (c *instrumentedCollection) Name() string { return c.next.Name() }

func (c *instrumentedCollection) Insert(ctx context.Context, doc bson.D) (bson.Raw, error) {
	defer c.observe("insert", time.Now())
	raw, err := c.next.Insert(ctx, doc)
	c.count("insert", err)
	return raw, err
}

func (c *instrumentedCollection) FindOne(ctx context.Context, filter docstore.Filter) (bson.Raw, error) {
	defer c.observe("find_one", time.Now())
	raw, err := c.next.FindOne(ctx, filter)
	c.count("find_one", err)
	return raw, err
}

func (c *instrumentedCollection) FindMany(ctx context.Context, filter docstore.Filter) ([]bson.Raw, error) {
	defer c.observe("find_many", time.Now())
	raws, err := c.next.FindMany(ctx, filter)
	c.count("find_many", err)
	return raws, err
}

func (c *instrumentedCollection) FindOneAndUpdate(ctx context.Context, filter docstore.Filter, set bson.D) (bson.Raw, error) {
	defer c.observe("update", time.Now())
	raw, err := c.next.FindOneAndUpdate(ctx, filter, set)
	c.count("update", err)
	return raw, err
}

func (c *instrumentedCollection) FindOneAndDelete(ctx context.Context, filter docstore.Filter) (bson.Raw, error) {
	defer c.observe("delete", time.Now())
	raw, err := c.next.FindOneAndDelete(ctx, filter)
	c.count("delete", err)
	return raw, err
}

func (c *instrumentedCollection) observe(op string, start time.Time) {
	c.m.storeOpDuration.WithLabelValues(c.next.Name(), op).Observe(time.Since(start).Seconds())
}

func (c *instrumentedCollection) count(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, docstore.ErrNoDocument):
		result = "absent"
	case err != nil:
		result = "error"
	}
	c.m.storeOpsTotal.WithLabelValues(c.next.Name(), op, result).Inc()
}

// poolCollector reports pgxpool connection gauges at scrape time.
type poolCollector struct {
	pool *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

func newPoolCollector(pool *pgxpool.Pool) *poolCollector {
	return &poolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("pgxpool_acquired_conns", "Connections currently in use", nil, nil),
		idleDesc:     prometheus.NewDesc("pgxpool_idle_conns", "Idle connections", nil, nil),
		totalDesc:    prometheus.NewDesc("pgxpool_total_conns", "Total connections in the pool", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
}
