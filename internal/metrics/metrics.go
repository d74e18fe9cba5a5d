// Package metrics exposes the panel's Prometheus instrumentation. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"theta-panel/internal/camera"
)

const namespace = "theta_panel"

type Metrics struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	pollAttempts *prometheus.HistogramVec
	streams      *prometheus.GaugeVec
	relayedBytes *prometheus.CounterVec
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

func New(store *camera.Store) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Asynchronous camera commands by final outcome.",
		}, []string{"command", "outcome"}),
		pollAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_status_polls",
			Help:      "Status polls issued before a command settled.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 30},
		}, []string{"command"}),
		streams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Upstream camera streams currently relayed.",
		}, []string{"kind"}),
		relayedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_bytes_total",
			Help:      "Bytes copied from the camera to clients.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Panel HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Panel HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.commands,
		m.pollAttempts,
		m.streams,
		m.relayedBytes,
		m.requests,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if store != nil {
		m.registry.MustRegister(&cameraCollector{store: store})
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: promLogger{},
	})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCommand matches camera.Observer.
func (m *Metrics) ObserveCommand(command string, attempts int, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
	if attempts > 0 {
		m.pollAttempts.WithLabelValues(command).Observe(float64(attempts))
	}
}

// StreamOpened marks a relay of the given kind as active until the returned
// func is called.
func (m *Metrics) StreamOpened(kind string) (closed func()) {
	if m == nil {
		return func() {}
	}
	g := m.streams.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}

func (m *Metrics) AddRelayed(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.relayedBytes.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

var cameraInfoDesc = prometheus.NewDesc(
	namespace+"_camera_info", "Configured camera profile.", []string{"ip", "port", "mode", "digest"}, nil,
)

// cameraCollector reports the profile held by the store at scrape time.
type cameraCollector struct {
	store *camera.Store
}

func (c *cameraCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cameraInfoDesc
}

func (c *cameraCollector) Collect(ch chan<- prometheus.Metric) {
	cfg := c.store.Get()
	ch <- prometheus.MustNewConstMetric(cameraInfoDesc, prometheus.GaugeValue, 1,
		cfg.IP, strconv.Itoa(cfg.Port), cfg.Mode, strconv.FormatBool(cfg.UsesDigest()))
}

type promLogger struct{}

func (promLogger) Println(v ...interface{}) {
	log.Error().Msg(fmt.Sprint(v...))
}
