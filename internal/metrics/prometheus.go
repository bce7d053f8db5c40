package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Clark-Hu/sdqa/internal/formatter"
)

// Manager owns every collector of the process. It implements
// formatter.Recorder.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	ratingsWritten *prometheus.CounterVec
	ratingsRead    *prometheus.CounterVec
	writeFailures  *prometheus.CounterVec
	writeDuration  *prometheus.HistogramVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ formatter.Recorder = (*Manager)(nil)

// NewManager creates a manager on a fresh registry unless WithRegistry is
// given. Go runtime and process collectors are always included.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sdqa",
		subsystem:        "ratings",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.ratingsWritten = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "written_total",
		Help:      "Ratings persisted, by scope and storage kind",
	}, []string{"scope", "storage"})

	m.ratingsRead = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "read_total",
		Help:      "Ratings loaded, by scope and storage kind",
	}, []string{"scope", "storage"})

	m.writeFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "write_failures_total",
		Help:      "Failed batch writes, by storage kind and failure reason",
	}, []string{"storage", "reason"})

	m.writeDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "write_duration_seconds",
		Help:      "Duration of successful batch writes",
		Buckets:   m.histogramBuckets,
	}, []string{"storage"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by route and method",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveWrite implements formatter.Recorder.
func (m *Manager) ObserveWrite(scope string, kind formatter.StorageKind, ratings int, elapsed time.Duration) {
	m.ratingsWritten.WithLabelValues(scope, string(kind)).Add(float64(ratings))
	m.writeDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveRead implements formatter.Recorder.
func (m *Manager) ObserveRead(scope string, kind formatter.StorageKind, ratings int) {
	m.ratingsRead.WithLabelValues(scope, string(kind)).Add(float64(ratings))
}

// WriteFailed implements formatter.Recorder.
func (m *Manager) WriteFailed(kind formatter.StorageKind, reason string) {
	m.writeFailures.WithLabelValues(string(kind), reason).Inc()
}

// ObserveHTTP records one served request.
func (m *Manager) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RegisterPool exports pgx pool statistics as gauges.
func (m *Manager) RegisterPool(stats func() *pgxpool.Stat) {
	gauge := func(name, help string, value func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			s := stats()
			if s == nil {
				return 0
			}
			return value(s)
		})
	}
	m.registry.MustRegister(
		gauge("total_conns", "Connections currently in the pool",
			func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("acquired_conns", "Connections currently acquired",
			func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("idle_conns", "Idle connections",
			func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("max_conns", "Configured pool size",
			func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
	)
}

// RegisterSQLDB exports database/sql pool statistics.
func (m *Manager) RegisterSQLDB(db *sql.DB, name string) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
